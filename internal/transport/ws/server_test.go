package ws

import (
	"encoding/json"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"minepath.ai/internal/protocol"
	"minepath.ai/internal/service"
	"minepath.ai/internal/world/blocks"
	"minepath.ai/internal/world/chunkfile"
	"minepath.ai/internal/world/store"
)

func dialTestServer(t *testing.T) *websocket.Conn {
	t.Helper()
	st, err := store.New(store.Options{
		ChunkSize: [3]int{16, 16, 16},
		CellType:  chunkfile.CellInt32,
		DataDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	svc, err := service.New(service.Config{Store: st, Blocks: blocks.Default()})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	srv := httptest.NewServer(NewServer(svc, log.New(testWriter{t}, "[ws] ", 0)).Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return b
}

func handshake(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	sendJSON(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"})
	var w protocol.WelcomeMsg
	if err := json.Unmarshal(readFrame(t, conn), &w); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	return w
}

func TestHandshakeAndQuery(t *testing.T) {
	conn := dialTestServer(t)
	w := handshake(t, conn)
	if w.Type != protocol.TypeWelcome || w.ChunkSize != [3]int{16, 16, 16} {
		t.Fatalf("welcome: %+v", w)
	}

	v := int32(7)
	sendJSON(t, conn, protocol.ObserveMsg{Type: protocol.TypeObserve, ID: "o1", Cells: []protocol.CellWrite{{Pos: [3]int{1, 64, 1}, Value: &v}}})
	var ok protocol.OKMsg
	if err := json.Unmarshal(readFrame(t, conn), &ok); err != nil || ok.Type != protocol.TypeOK || ok.ID != "o1" {
		t.Fatalf("observe reply: %+v err=%v", ok, err)
	}

	sendJSON(t, conn, protocol.QueryMsg{Type: protocol.TypeQuery, ID: "q1", Positions: [][3]int{{1, 64, 1}, {9, 64, 9}}})
	var cells protocol.CellsMsg
	if err := json.Unmarshal(readFrame(t, conn), &cells); err != nil {
		t.Fatalf("cells: %v", err)
	}
	if cells.Cells[0].Value == nil || *cells.Cells[0].Value != 7 {
		t.Fatalf("cell 0: %+v", cells.Cells[0])
	}
	if cells.Cells[1].Value != nil {
		t.Fatalf("cell 1 should be absent")
	}
}

func TestRouteOverWire(t *testing.T) {
	conn := dialTestServer(t)
	handshake(t, conn)

	sendJSON(t, conn, protocol.RouteMsg{Type: protocol.TypeRoute, ID: "r1", Start: [3]int{0, 64, 0}, Goal: [3]int{0, 64, 3}, Facing: "south"})
	var res protocol.RouteResultMsg
	if err := json.Unmarshal(readFrame(t, conn), &res); err != nil {
		t.Fatalf("route result: %v", err)
	}
	if res.Type != protocol.TypeRouteRes || len(res.Path) != 3 || res.Cost != 3 {
		t.Fatalf("result: %+v", res)
	}
}

func TestSchemaRejection(t *testing.T) {
	conn := dialTestServer(t)
	handshake(t, conn)

	// facing outside the enum fails validation before dispatch.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ROUTE","id":"r1","start":[0,64,0],"goal":[1,64,0],"facing":"upward"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	var em protocol.ErrorMsg
	if err := json.Unmarshal(readFrame(t, conn), &em); err != nil {
		t.Fatalf("error frame: %v", err)
	}
	if em.Type != protocol.TypeError || em.Code != protocol.ErrProtoBadRequest || em.ID != "r1" {
		t.Fatalf("error: %+v", em)
	}
}

func TestBadHelloCloses(t *testing.T) {
	conn := dialTestServer(t)
	sendJSON(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.1"})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close on bad protocol_version")
	}
}
