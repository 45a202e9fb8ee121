// Package calls tracks the call set of the session and enforces that at most
// one call is being set up at any time.
package calls

type Status string

const (
	StatusNew       Status = "new"
	StatusCreate    Status = "create"
	StatusInvite    Status = "invite"
	StatusAccepted  Status = "accepted"
	StatusBye       Status = "bye"
	StatusRejectedA Status = "rejected_a"
	StatusRejectedB Status = "rejected_b"
)

// Pending reports whether a call in this status is still being set up.
func (s Status) Pending() bool {
	switch s {
	case StatusNew, StatusCreate, StatusInvite:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusCreate, StatusInvite, StatusAccepted,
		StatusBye, StatusRejectedA, StatusRejectedB:
		return true
	}
	return false
}

type Call struct {
	ID     string
	Number string
	Status Status
}

// NewCallAllowed is false iff some call is pending. Accepted calls do not
// block a new one.
func NewCallAllowed(calls []Call) bool {
	for _, c := range calls {
		if c.Status.Pending() {
			return false
		}
	}
	return true
}
