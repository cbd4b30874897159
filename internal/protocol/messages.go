package protocol

import (
	"fmt"

	"minepath.ai/internal/nav/geom"
)

// HelloMsg is the first frame a client sends on a fresh connection.
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
}

// WelcomeMsg answers HELLO with the server's world parameters.
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	ChunkSize       [3]int `json:"chunk_size"`
	CellType        string `json:"cell_type"`
}

// CellWrite sets one cell; a null value clears it.
type CellWrite struct {
	Pos   [3]int `json:"pos"`
	Value *int32 `json:"value"`
}

// CellRead reports one cell; value is null when the cell is absent.
type CellRead struct {
	Pos   [3]int `json:"pos"`
	Value *int32 `json:"value"`
}

type ObserveMsg struct {
	Type  string      `json:"type"`
	ID    string      `json:"id"`
	Cells []CellWrite `json:"cells"`
}

type QueryMsg struct {
	Type      string   `json:"type"`
	ID        string   `json:"id"`
	Positions [][3]int `json:"positions"`
}

type CellsMsg struct {
	Type  string     `json:"type"`
	ID    string     `json:"id"`
	Cells []CellRead `json:"cells"`
}

type RouteMsg struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Start     [3]int `json:"start"`
	Goal      [3]int `json:"goal"`
	Facing    string `json:"facing"`
	Heuristic string `json:"heuristic,omitempty"`
}

type RouteResultMsg struct {
	Type  string   `json:"type"`
	ID    string   `json:"id"`
	JobID string   `json:"job_id"`
	Path  [][3]int `json:"path"`
	Cost  float64  `json:"cost"`
}

type TourMsg struct {
	Type   string   `json:"type"`
	ID     string   `json:"id"`
	Nodes  [][3]int `json:"nodes"`
	Start  *[3]int  `json:"start,omitempty"`
	End    *[3]int  `json:"end,omitempty"`
	Metric string   `json:"metric,omitempty"`
}

type TourResultMsg struct {
	Type  string   `json:"type"`
	ID    string   `json:"id"`
	JobID string   `json:"job_id"`
	Order [][3]int `json:"order"`
	Cost  float64  `json:"cost"`
}

// SaveMsg persists one chunk (by any cell position inside it) or,
// with scope "all", every materialized chunk.
type SaveMsg struct {
	Type  string  `json:"type"`
	ID    string  `json:"id"`
	Pos   *[3]int `json:"pos,omitempty"`
	Scope string  `json:"scope,omitempty"`
}

type LoadMsg struct {
	Type  string  `json:"type"`
	ID    string  `json:"id"`
	Pos   *[3]int `json:"pos,omitempty"`
	Scope string  `json:"scope,omitempty"`
}

type SnapshotMsg struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type OKMsg struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Detail string `json:"detail,omitempty"`
}

type ErrorMsg struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Facing names on the wire.
var facingNames = map[string]geom.Facing{
	"north": geom.North,
	"east":  geom.East,
	"south": geom.South,
	"west":  geom.West,
}

func ParseFacing(s string) (geom.Facing, error) {
	if f, ok := facingNames[s]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("unknown facing %q", s)
}

func Vec(p [3]int) geom.Vec3i { return geom.Vec3i{X: p[0], Y: p[1], Z: p[2]} }

func Arr(v geom.Vec3i) [3]int { return [3]int{v.X, v.Y, v.Z} }
