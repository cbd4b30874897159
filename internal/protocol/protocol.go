package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"

	TypeObserve  = "OBSERVE"
	TypeQuery    = "QUERY"
	TypeCells    = "CELLS"
	TypeRoute    = "ROUTE"
	TypeRouteRes = "ROUTE_RESULT"
	TypeTour     = "TOUR"
	TypeTourRes  = "TOUR_RESULT"
	TypeSave     = "SAVE"
	TypeLoad     = "LOAD"
	TypeSnapshot = "SNAPSHOT"

	TypeOK    = "OK"
	TypeError = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ID              string `json:"id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
