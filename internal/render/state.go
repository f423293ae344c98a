package render

import (
	"fmt"
)

// State is a render session lifecycle state.
type State string

const (
	StateInitialized     State = "initialized"
	StateValidated       State = "validated"
	StatePartitioned     State = "partitioned"
	StateFleetDispatched State = "fleet_dispatched"
	StateFleetCompleted  State = "fleet_completed"
	StateMerged          State = "merged"
	StateFinalized       State = "finalized"
	StateFailed          State = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == StateFinalized || s == StateFailed
}

// Stage names the step a failure is attributed to.
type Stage string

const (
	StageValidate  Stage = "validate"
	StagePartition Stage = "partition"
	StageFleet     Stage = "fleet"
	StageMerge     Stage = "merge"
	StageFinalize  Stage = "finalize"
)

// StageError is the Failed state: the stage that failed and its cause.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s failed", e.Stage)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// transitions lists the legal successor of each non-terminal state.
var transitions = map[State]State{
	StateInitialized:     StateValidated,
	StateValidated:       StatePartitioned,
	StatePartitioned:     StateFleetDispatched,
	StateFleetDispatched: StateFleetCompleted,
	StateFleetCompleted:  StateMerged,
	StateMerged:          StateFinalized,
}

func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return transitions[from] == to
}
