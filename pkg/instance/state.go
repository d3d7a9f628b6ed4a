package instance

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("instance is not tracked")
	ErrInvalidTransition = errors.New("invalid instance state transition")
)

type State string

const (
	StateStopped     State = "STOPPED"
	StateStarting    State = "STARTING"
	StateRunning     State = "RUNNING"
	StateStopping    State = "STOPPING"
	StateStartFailed State = "START_FAILED"
	StateStopFailed  State = "STOP_FAILED"
)

var AllStates = []State{
	StateStopped,
	StateStarting,
	StateRunning,
	StateStopping,
	StateStartFailed,
	StateStopFailed,
}

// transitions lists the states an instance may move to from each state.
// STOPPED is never stored: an untracked instance is stopped.
var transitions = map[State][]State{
	StateStopped:     {StateStarting},
	StateStartFailed: {StateStarting, StateStopping},
	StateStopFailed:  {StateStarting, StateStopping},
	StateRunning:     {StateStopping},
	StateStarting:    {StateRunning, StateStartFailed},
	StateStopping:    {StateStopped, StateStopFailed},
}

func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}

	return false
}

type TransitionError struct {
	InstanceID string
	From       State
	To         State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("instance %s cannot go from %s to %s", e.InstanceID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
