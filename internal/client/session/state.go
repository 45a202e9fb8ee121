package session

// State of the session state machine.
type State int

const (
	Anonymous State = iota
	Authenticating
	LoginFailed
	Unlocked
	Locked
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case LoginFailed:
		return "login_failed"
	case Unlocked:
		return "unlocked"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

// Authenticated reports whether the user holds a valid session, regardless of
// whether the vault is currently materialized.
func (s State) Authenticated() bool {
	return s == Unlocked || s == Locked
}
