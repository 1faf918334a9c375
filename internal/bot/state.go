package bot

import "fmt"

// SessionState is the lifecycle position of a Bot.
type SessionState int

const (
	StateUninit SessionState = iota
	StateInitializing
	StateInitialized
	StateLoggingIn
	StateLoggedIn
	StateLoggingOut
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateUninit:
		return "Uninit"
	case StateInitializing:
		return "Initializing"
	case StateInitialized:
		return "Initialized"
	case StateLoggingIn:
		return "LoggingIn"
	case StateLoggedIn:
		return "LoggedIn"
	case StateLoggingOut:
		return "LoggingOut"
	case StateClosing:
		return "Closing"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// validTransitions lists the allowed targets per state. Failed steps fall back to
// the state they started from.
var validTransitions = map[SessionState][]SessionState{
	StateUninit:       {StateInitializing},
	StateInitializing: {StateInitialized, StateUninit, StateClosing},
	StateInitialized:  {StateLoggingIn, StateClosing},
	StateLoggingIn:    {StateLoggedIn, StateInitialized, StateClosing},
	StateLoggedIn:     {StateLoggingOut, StateClosing},
	StateLoggingOut:   {StateInitialized, StateLoggedIn, StateClosing},
	StateClosing:      {StateUninit},
}

// CanTransitionTo reports whether target is reachable in one step.
func (s SessionState) CanTransitionTo(target SessionState) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Initialized reports whether a browser session exists in this state.
func (s SessionState) Initialized() bool {
	switch s {
	case StateInitialized, StateLoggingIn, StateLoggedIn, StateLoggingOut:
		return true
	}
	return false
}

// LoggedIn reports whether credentials have been accepted in this state.
func (s SessionState) LoggedIn() bool {
	return s == StateLoggedIn || s == StateLoggingOut
}

// TransitionError is an attempt to move between unconnected states.
type TransitionError struct {
	From SessionState
	To   SessionState
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}
