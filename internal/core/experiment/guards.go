package experiment

import (
	"fmt"
	"strings"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// CreateExperimentRepoContext provides context for experiment repo creation guards.
type CreateExperimentRepoContext struct {
	Name         string
	OriginID     string
	OriginActive bool
}

// BindContext provides context for binding an experiment repo into a battery.
type BindContext struct {
	ExperimentRepoID string
	Active           bool
}

// CanCreateExperimentRepo evaluates whether an experiment repo can be registered.
// Rules:
// - Name must not be empty
// - Origin must be active (archived origins take no new experiments)
func CanCreateExperimentRepo(ctx CreateExperimentRepoContext) GuardResult {
	if strings.TrimSpace(ctx.Name) == "" {
		return GuardResult{Allowed: false, Reason: "experiment name cannot be empty"}
	}
	if !ctx.OriginActive {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("origin %s is archived", ctx.OriginID),
		}
	}
	return GuardResult{Allowed: true}
}

// CanBind evaluates whether an experiment repo can be placed into a battery.
// Rules:
// - Experiment repo must be active
func CanBind(ctx BindContext) GuardResult {
	if !ctx.Active {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("experiment %s is inactive", ctx.ExperimentRepoID),
		}
	}
	return GuardResult{Allowed: true}
}
