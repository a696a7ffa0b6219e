package membership

// State is a step of the enrollment flow.
type State string

const (
	StateIdle                    State = "Idle"
	StatePlanChosen              State = "PlanChosen"
	StateSubmittingSignup        State = "SubmittingSignup"
	StateAwaitingExternalPayment State = "AwaitingExternalPayment"
	StateResumedSuccess          State = "ResumedSuccess"
	StateResumedFailure          State = "ResumedFailure"
)

// Resolved reports whether s is one of the two resumed outcomes.
func (s State) Resolved() bool {
	return s == StateResumedSuccess || s == StateResumedFailure
}

// transitions lists the allowed edges. Resume and Cancel are allowed from
// Idle because a fresh process starts there after the provider redirect. A
// failed submission returns to PlanChosen outside this table.
var transitions = map[State][]State{
	StateIdle:                    {StatePlanChosen, StateResumedSuccess, StateResumedFailure},
	StatePlanChosen:              {StatePlanChosen, StateSubmittingSignup, StateIdle},
	StateSubmittingSignup:        {StateAwaitingExternalPayment, StateResumedSuccess},
	StateAwaitingExternalPayment: {StateResumedSuccess, StateResumedFailure, StateIdle},
	StateResumedSuccess:          {StateIdle},
	StateResumedFailure:          {StateIdle},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
