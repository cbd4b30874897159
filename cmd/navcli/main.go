// navcli is a one-shot command line client for navd.
//
//	navcli -url ws://localhost:8080/v1/ws get 3 64 2
//	navcli set 3 64 2 7
//	navcli route 0 64 0 12 64 9 -facing east
//	navcli tour 0,64,0 5,64,5 9,64,2 -metric path
//	navcli save all
//	navcli snapshot
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"minepath.ai/internal/protocol"
)

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		facing = flag.String("facing", "north", "starting facing for route")
		metric = flag.String("metric", "", "tour metric (euclidean, manhattan, path)")
	)
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	logger := log.New(os.Stderr, "[navcli] ", 0)

	req, err := buildRequest(args, *facing, *metric)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      "navcli",
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		logger.Fatalf("handshake: %v", err)
	}

	if err := conn.WriteJSON(req); err != nil {
		logger.Fatalf("send: %v", err)
	}
	_, reply, err := conn.ReadMessage()
	if err != nil {
		logger.Fatalf("read reply: %v", err)
	}
	fmt.Println(string(reply))

	var em protocol.ErrorMsg
	if json.Unmarshal(reply, &em) == nil && em.Type == protocol.TypeError {
		os.Exit(1)
	}
}

func buildRequest(args []string, facing, metric string) (any, error) {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "get":
		p, err := parseVec(rest)
		if err != nil {
			return nil, err
		}
		return protocol.QueryMsg{Type: protocol.TypeQuery, ID: "cli", Positions: [][3]int{p}}, nil

	case "set":
		if len(rest) != 4 {
			return nil, fmt.Errorf("set wants x y z value")
		}
		p, err := parseVec(rest[:3])
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(rest[3], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("value: %v", err)
		}
		val := int32(v)
		return protocol.ObserveMsg{Type: protocol.TypeObserve, ID: "cli", Cells: []protocol.CellWrite{{Pos: p, Value: &val}}}, nil

	case "clear":
		p, err := parseVec(rest)
		if err != nil {
			return nil, err
		}
		return protocol.ObserveMsg{Type: protocol.TypeObserve, ID: "cli", Cells: []protocol.CellWrite{{Pos: p}}}, nil

	case "route":
		if len(rest) != 6 {
			return nil, fmt.Errorf("route wants x1 y1 z1 x2 y2 z2")
		}
		start, err := parseVec(rest[:3])
		if err != nil {
			return nil, err
		}
		goal, err := parseVec(rest[3:])
		if err != nil {
			return nil, err
		}
		return protocol.RouteMsg{Type: protocol.TypeRoute, ID: "cli", Start: start, Goal: goal, Facing: facing}, nil

	case "tour":
		if len(rest) < 1 {
			return nil, fmt.Errorf("tour wants at least one x,y,z node")
		}
		nodes := make([][3]int, 0, len(rest))
		for _, s := range rest {
			p, err := parseVec(strings.Split(s, ","))
			if err != nil {
				return nil, fmt.Errorf("node %q: %v", s, err)
			}
			nodes = append(nodes, p)
		}
		return protocol.TourMsg{Type: protocol.TypeTour, ID: "cli", Nodes: nodes, Metric: metric}, nil

	case "save", "load":
		m := protocol.SaveMsg{Type: protocol.TypeSave, ID: "cli"}
		if cmd == "load" {
			m.Type = protocol.TypeLoad
		}
		if len(rest) == 1 && rest[0] == "all" {
			m.Scope = "all"
			return m, nil
		}
		p, err := parseVec(rest)
		if err != nil {
			return nil, err
		}
		m.Pos = &p
		return m, nil

	case "snapshot":
		return protocol.SnapshotMsg{Type: protocol.TypeSnapshot, ID: "cli"}, nil
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

func parseVec(parts []string) ([3]int, error) {
	var p [3]int
	if len(parts) != 3 {
		return p, fmt.Errorf("want 3 coordinates, got %d", len(parts))
	}
	for i, s := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return p, err
		}
		p[i] = v
	}
	return p, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: navcli [flags] get|set|clear|route|tour|save|load|snapshot ...")
	flag.PrintDefaults()
	os.Exit(2)
}
