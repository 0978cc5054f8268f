// Package experiment contains the pure business logic for binding experiments at
// commits into battery slots.
package experiment

import (
	"errors"
	"fmt"
	"strings"
)

// LatestCommit is the sentinel commit request that resolves to the origin head.
const LatestCommit = "latest"

// ErrMissingOrigin is returned when an experiment repo has lost its origin.
var ErrMissingOrigin = errors.New("experiment repo has no origin")

// InvalidCommitError reports a requested commit that is absent from the repository history.
type InvalidCommitError struct {
	Commit string
	URL    string
}

func (e *InvalidCommitError) Error() string {
	return fmt.Sprintf("commit '%s' is invalid for %s", e.Commit, e.URL)
}

// IsLatest reports whether the requested commit is the latest sentinel (or empty).
func IsLatest(requested string) bool {
	r := strings.TrimSpace(requested)
	return r == "" || r == LatestCommit
}

// Slot is an existing battery placement as seen by the binding planner.
type Slot struct {
	BatteryExperimentID string
	ExperimentRepoID    string
	InstanceID          string
	Order               int
}

// SlotPlan describes how to place an instance into a battery.
type SlotPlan struct {
	// ReplaceID is the battery experiment row to re-point; empty means insert a new row.
	ReplaceID string
	Order     int
}

// PlanSlot decides whether binding experimentRepoID replaces an existing slot.
// A battery holds at most one instance per experiment repo: an existing slot for the same
// repo is re-pointed at the new instance and moved to order.
func PlanSlot(slots []Slot, experimentRepoID string, order int) SlotPlan {
	for _, s := range slots {
		if s.ExperimentRepoID == experimentRepoID {
			return SlotPlan{ReplaceID: s.BatteryExperimentID, Order: order}
		}
	}
	return SlotPlan{Order: order}
}

// NextOrder returns the order value that appends after every existing slot.
func NextOrder(slots []Slot) int {
	next := 0
	for _, s := range slots {
		if s.Order >= next {
			next = s.Order + 1
		}
	}
	return next
}
