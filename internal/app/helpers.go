package app

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/example/expfactory/internal/core/progress"
	"github.com/example/expfactory/internal/ports/secondary"
)

// Audit log entity types.
const (
	entityOrigin         = "origin"
	entityExperimentRepo = "experiment_repo"
	entityInstance       = "instance"
	entityFramework      = "framework"
	entityBattery        = "battery"
	entitySubject        = "subject"
	entityAssignment     = "assignment"
	entityResult         = "result"
)

// globalRand draws from the math/rand/v2 top-level source, which is safe for concurrent use.
type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// auditCreate records a create in the audit log. logWriter is optional.
func auditCreate(ctx context.Context, w secondary.LogWriter, entityType, entityID string) {
	if w != nil {
		_ = w.LogCreate(ctx, entityType, entityID)
	}
}

// auditUpdate records a field change in the audit log. logWriter is optional.
func auditUpdate(ctx context.Context, w secondary.LogWriter, entityType, entityID, field, oldValue, newValue string) {
	if w != nil {
		_ = w.LogUpdate(ctx, entityType, entityID, field, oldValue, newValue)
	}
}

// auditDelete records a delete in the audit log. logWriter is optional.
func auditDelete(ctx context.Context, w secondary.LogWriter, entityType, entityID string) {
	if w != nil {
		_ = w.LogDelete(ctx, entityType, entityID)
	}
}

// toStatusUpdate converts a status transition into the persisted write.
func toStatusUpdate(tr progress.Transition) secondary.StatusUpdate {
	return secondary.StatusUpdate{
		Status:      string(tr.To),
		StartedAt:   tr.StartedAt,
		CompletedAt: tr.CompletedAt,
		FailedAt:    tr.FailedAt,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func boolValue(b *bool, fallback bool) bool {
	if b == nil {
		return fallback
	}
	return *b
}
