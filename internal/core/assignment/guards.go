package assignment

import (
	"fmt"
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

// CreateAssignmentContext provides context for assignment creation guards.
type CreateAssignmentContext struct {
	SubjectID     string
	SubjectActive bool
	BatteryID     string
	BatteryStatus string
}

// CanCreateAssignment evaluates whether a subject can be assigned to a battery.
// Rules:
// - Subject must be active
// - Battery must be draft or published (templates are not deployed, inactive blocks new subjects)
func CanCreateAssignment(ctx CreateAssignmentContext) GuardResult {
	if !ctx.SubjectActive {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("subject %s is inactive", ctx.SubjectID),
		}
	}

	switch ctx.BatteryStatus {
	case "draft", "published":
		return GuardResult{Allowed: true}
	case "inactive":
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("battery %s is inactive and cannot take new subjects", ctx.BatteryID),
		}
	default:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("cannot assign subjects to battery %s with status %s (duplicate it into a draft first)", ctx.BatteryID, ctx.BatteryStatus),
		}
	}
}
