package search

// State is the client-side lifecycle state of a search job.
type State int

const (
	Unsubmitted State = iota
	Submitted
	Completed
	Errored
	Cancelled
)

func (s State) String() string {
	switch s {
	case Unsubmitted:
		return "unsubmitted"
	case Submitted:
		return "submitted"
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == Completed || s == Errored || s == Cancelled
}

type event int

const (
	evSubmitAccepted event = iota
	evSubmitRejected
	evDataAvailable
	evErrorCondition
	evCancelAcknowledged
)

// transitions is the complete lifecycle table. Pairs not listed leave the
// state unchanged; terminal states have no outgoing edges.
var transitions = map[State]map[event]State{
	Unsubmitted: {
		evSubmitAccepted: Submitted,
		evSubmitRejected: Errored,
	},
	Submitted: {
		evDataAvailable:      Completed,
		evErrorCondition:     Errored,
		evCancelAcknowledged: Cancelled,
	},
}

func nextState(from State, ev event) State {
	if to, ok := transitions[from][ev]; ok {
		return to
	}
	return from
}
