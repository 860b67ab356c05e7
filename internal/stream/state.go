package stream

// State tracks where a Session is in its connection lifecycle. A session
// only moves forward through the states and falls back to StateDisconnected
// on any failure; the supervisor then builds a fresh session.
type State int32

const (
	StateDisconnected State = iota
	StateResolvingKey
	StateConnecting
	StateJoined
	StateStreaming
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateResolvingKey:
		return "resolving_key"
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}
