package session

// State is a session's lifecycle position. Transitions only move forward.
type State int32

const (
	StateActive State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
