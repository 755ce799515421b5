// Package progression decides the stored status and step of a progress record.
// Resolve is pure: persistence and notification happen around it.
package progression

import (
	"fmt"

	"achievementsAPI/internal/types/progress"
)

// State is a record's status and step.
type State struct {
	Status progress.Status
	Step   int
}

// Input describes one requested transition. Existing is nil when the record is
// being created.
type Input struct {
	// Target of the achievement. Zero or negative means there is no step gate.
	Target    int
	Requested *progress.Status
	Step      *int
	Existing  *State
}

// TargetNotReachedError rejects an explicit FINISHED below the target.
type TargetNotReachedError struct {
	Step   int
	Target int
}

func (e *TargetNotReachedError) Error() string {
	return fmt.Sprintf("step %d has not reached target %d", e.Step, e.Target)
}

// Resolve applies, in order: explicit BLOCKED, explicit FINISHED, then automatic
// derivation. A BLOCKED record stays blocked until a request names a status.
func Resolve(in Input) (State, error) {
	step := 0
	if in.Existing != nil {
		step = in.Existing.Step
	}
	if in.Step != nil {
		step = *in.Step
	}

	if in.Requested != nil {
		switch *in.Requested {
		case progress.StatusBlocked:
			return State{Status: progress.StatusBlocked, Step: step}, nil
		case progress.StatusFinished:
			if !reached(in.Target, step) {
				return State{}, &TargetNotReachedError{Step: step, Target: in.Target}
			}
			return State{Status: progress.StatusFinished, Step: clamp(in.Target, step)}, nil
		}
	} else if in.Existing != nil && in.Existing.Status == progress.StatusBlocked {
		return State{Status: progress.StatusBlocked, Step: step}, nil
	}

	return derive(in.Target, step), nil
}

func derive(target, step int) State {
	if reached(target, step) {
		return State{Status: progress.StatusFinished, Step: clamp(target, step)}
	}
	return State{Status: progress.StatusInProgress, Step: step}
}

func reached(target, step int) bool {
	return target <= 0 || step >= target
}

func clamp(target, step int) int {
	if target > 0 && step > target {
		return target
	}
	return step
}
