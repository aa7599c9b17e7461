package stream

// State is the connection state of a Conn.
type State int32

const (
	Disconnected State = iota
	Connecting
	Open
	Closing
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// StateChange is raised on every connection state transition. Err is set
// when the transition was caused by a transport failure.
type StateChange struct {
	State State
	Err   error
}

// Closed reports whether the change is the terminal "closed" notification.
func (c StateChange) Closed() bool { return c.State == Disconnected }

// Inbox receives what the receive goroutine hands off to the foreground.
// Implementations must be safe for concurrent use.
type Inbox interface {
	PushFrame(frame []byte)
	PushState(change StateChange)
}
