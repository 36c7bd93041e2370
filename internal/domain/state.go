package domain

type TurnState string

const (
	StatePending   TurnState = "pending"
	StateConfirmed TurnState = "confirmed"
	StateCancelled TurnState = "cancelled"
	StateAttended  TurnState = "attended"
)

// DefaultStates is the state vocabulary used when none is configured.
var DefaultStates = []string{
	string(StatePending),
	string(StateConfirmed),
	string(StateCancelled),
	string(StateAttended),
}

const (
	ReasonTerminalState    = "cannot modify a turn in a terminal state"
	ReasonConfirmAttended  = "cannot confirm an attended turn"
	ReasonConfirmCancelled = "cannot confirm a cancelled turn"
	ReasonCancelAttended   = "cannot cancel an attended turn"
	ReasonAlreadyCancelled = "turn is already cancelled"
)

// Terminal reports whether no further transition may leave s.
func (s TurnState) Terminal() bool {
	return s == StateAttended || s == StateCancelled
}

// Guard is the outcome of evaluating a transition against a turn's current state.
type Guard struct {
	Allowed bool
	Reason  string
	State   TurnState
}

func allow() Guard {
	return Guard{Allowed: true}
}

func reject(reason string, state TurnState) Guard {
	return Guard{Reason: reason, State: state}
}

// Err returns nil for an allowed guard and an InvalidState error otherwise.
func (g Guard) Err() error {
	if g.Allowed {
		return nil
	}
	return InvalidState(g.Reason, g.State)
}

// CanModify guards generic edits: only pending and confirmed turns may change.
func CanModify(current TurnState) Guard {
	if current.Terminal() {
		return reject(ReasonTerminalState, current)
	}
	return allow()
}

// CanConfirm allows re-confirming a confirmed turn.
func CanConfirm(current TurnState) Guard {
	switch current {
	case StateAttended:
		return reject(ReasonConfirmAttended, current)
	case StateCancelled:
		return reject(ReasonConfirmCancelled, current)
	}
	return CanModify(current)
}

func CanCancel(current TurnState) Guard {
	switch current {
	case StateAttended:
		return reject(ReasonCancelAttended, current)
	case StateCancelled:
		return reject(ReasonAlreadyCancelled, current)
	}
	return CanModify(current)
}
