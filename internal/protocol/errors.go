package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Request layer.
	ErrBadRequest  = "E_BAD_REQUEST"
	ErrUnreachable = "E_UNREACHABLE"
	ErrTimeout     = "E_TIMEOUT"
	ErrBusy        = "E_BUSY"
	ErrIO          = "E_IO"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrUnreachable:     {},
	ErrTimeout:         {},
	ErrBusy:            {},
	ErrIO:              {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
