package call

// State is the call lifecycle state. Transitions move strictly forward:
// Idle → Dialing → Connected → Ending → Ended, with Dialing jumping
// straight to Ended when setup fails.
type State int

const (
	StateIdle State = iota
	StateDialing
	StateConnected
	StateEnding
	StateEnded
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDialing:
		return "dialing"
	case StateConnected:
		return "connected"
	case StateEnding:
		return "ending"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}
