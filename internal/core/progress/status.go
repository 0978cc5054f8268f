// Package progress contains the status state machine shared by assignments and results.
// This is part of the Functional Core - no I/O, only pure functions.
package progress

import (
	"fmt"
	"time"
)

// Status is the progress of a subject through a battery or a single experiment.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusStarted    Status = "started"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRedo       Status = "redo"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNotStarted, StatusStarted, StatusCompleted, StatusFailed, StatusRedo:
		return Status(s), nil
	}
	return "", fmt.Errorf("invalid status %q (expected not-started, started, completed, failed or redo)", s)
}

// Exempts reports whether a result in this status keeps its experiment from being served again.
// Redo results do not exempt.
func (s Status) Exempts() bool {
	return s == StatusCompleted || s == StatusFailed
}

// legalTransitions lists the allowed targets for each source status.
// Any status may move to redo; see CanTransition.
var legalTransitions = map[Status][]Status{
	StatusNotStarted: {StatusStarted, StatusCompleted},
	StatusStarted:    {StatusCompleted, StatusFailed},
	StatusRedo:       {StatusStarted, StatusCompleted},
}

// CanTransition reports whether from -> to is a legal status change.
// Staying in the same status is always allowed (and is a no-op).
func CanTransition(from, to Status) bool {
	if from == to || to == StatusRedo {
		return true
	}
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition is the write produced by a status change: the new status and the
// timestamp column that must be set with it.
type Transition struct {
	From        Status
	To          Status
	StartedAt   *time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time
}

// NoOp reports whether the transition leaves the status unchanged.
func (t Transition) NoOp() bool {
	return t.From == t.To
}

// ApplyTransition validates from -> to and returns the resulting write.
// The caller passes the current time to enable testing.
func ApplyTransition(from, to Status, now time.Time) (Transition, error) {
	if !CanTransition(from, to) {
		return Transition{}, fmt.Errorf("cannot change status from %s to %s", from, to)
	}

	t := Transition{From: from, To: to}
	if t.NoOp() {
		return t, nil
	}

	switch to {
	case StatusStarted:
		t.StartedAt = &now
	case StatusCompleted:
		t.CompletedAt = &now
	case StatusFailed:
		t.FailedAt = &now
	}
	return t, nil
}
