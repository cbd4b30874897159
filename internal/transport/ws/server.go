package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"minepath.ai/internal/protocol"
	"minepath.ai/internal/service"
)

const outQueue = 32

type Server struct {
	svc *service.Service
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(svc *service.Service, logger *log.Logger) *Server {
	s := &Server{
		svc: svc,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out, ok := s.handshake(conn)
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			s.dispatch(ctx, msg, out)
		}
	}
}

// dispatch validates one frame and hands it to the service. ROUTE and
// TOUR run in their own goroutine so cheap requests are not queued
// behind a long search; the service's worker pool bounds them.
func (s *Server) dispatch(ctx context.Context, msg []byte, out chan []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		s.send(out, errFrame("", protocol.ErrProtoBadRequest, "malformed JSON"))
		return
	}
	if err := protocol.ValidateRequest(base.Type, msg); err != nil {
		s.send(out, errFrame(base.ID, protocol.ErrProtoBadRequest, err.Error()))
		return
	}

	switch base.Type {
	case protocol.TypeObserve:
		var m protocol.ObserveMsg
		if json.Unmarshal(msg, &m) == nil {
			s.send(out, s.svc.Observe(m))
		}
	case protocol.TypeQuery:
		var m protocol.QueryMsg
		if json.Unmarshal(msg, &m) == nil {
			s.send(out, s.svc.Query(m))
		}
	case protocol.TypeRoute:
		var m protocol.RouteMsg
		if json.Unmarshal(msg, &m) == nil {
			go s.send(out, s.svc.Route(ctx, m))
		}
	case protocol.TypeTour:
		var m protocol.TourMsg
		if json.Unmarshal(msg, &m) == nil {
			go s.send(out, s.svc.Tour(ctx, m))
		}
	case protocol.TypeSave:
		var m protocol.SaveMsg
		if json.Unmarshal(msg, &m) == nil {
			s.send(out, s.svc.Save(ctx, m))
		}
	case protocol.TypeLoad:
		var m protocol.LoadMsg
		if json.Unmarshal(msg, &m) == nil {
			s.send(out, s.svc.Load(ctx, m))
		}
	case protocol.TypeSnapshot:
		var m protocol.SnapshotMsg
		if json.Unmarshal(msg, &m) == nil {
			s.send(out, s.svc.Snapshot(m))
		}
	default:
		s.send(out, errFrame(base.ID, protocol.ErrProtoBadRequest, "unknown type "+base.Type))
	}
}

func (s *Server) send(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Printf("ws: marshal reply: %v", err)
		return
	}
	select {
	case out <- b:
	default:
		s.log.Printf("ws: slow client, dropping frame")
	}
}

func errFrame(id, code, msg string) protocol.ErrorMsg {
	return protocol.ErrorMsg{Type: protocol.TypeError, ID: id, Code: code, Message: msg}
}

func (s *Server) handshake(conn *websocket.Conn) (out chan []byte, ok bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return nil, false
	}
	if err := protocol.ValidateRequest(protocol.TypeHello, msg); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad HELLO"), time.Now().Add(time.Second))
		return nil, false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return nil, false
	}

	if err := writeJSON(conn, s.svc.Welcome()); err != nil {
		return nil, false
	}
	return make(chan []byte, outQueue), true
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
