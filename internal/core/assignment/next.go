// Package assignment contains the pure business logic for subject assignments.
// This is part of the Functional Core - no I/O, only pure functions.
package assignment

import (
	"time"

	"github.com/example/expfactory/internal/core/ordering"
	"github.com/example/expfactory/internal/core/progress"
)

// NextPlan is the outcome of resolving what a subject should see next.
type NextPlan struct {
	// Remaining holds the unfinished experiment instance ids in presentation order.
	Remaining []string
	// Transition is the status write to persist, nil when the status stays as it is.
	Transition *progress.Transition
}

// Next returns the first remaining instance id, or "" when none remain.
func (p NextPlan) Next() string {
	if len(p.Remaining) == 0 {
		return ""
	}
	return p.Remaining[0]
}

// PlanNext filters the candidate sequence by the subject's exempt instances and
// decides the assignment status change.
//
// Rules:
//   - Items remain and status is not-started: move to started.
//   - Nothing remains: move to completed. Already completed is left alone, and a
//     failed assignment stays failed (failed only leaves via redo).
func PlanNext(status progress.Status, candidates []string, exempt map[string]bool, now time.Time) NextPlan {
	plan := NextPlan{Remaining: ordering.Unfinished(candidates, exempt)}

	target := status
	if len(plan.Remaining) > 0 {
		if status == progress.StatusNotStarted {
			target = progress.StatusStarted
		}
	} else {
		target = progress.StatusCompleted
	}

	if target == status || !progress.CanTransition(status, target) {
		return plan
	}

	tr, err := progress.ApplyTransition(status, target, now)
	if err == nil {
		plan.Transition = &tr
	}
	return plan
}
