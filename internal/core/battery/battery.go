// Package battery contains the pure business logic for battery lifecycle and duplication.
// Guards are pure functions that evaluate preconditions without side effects.
package battery

import (
	"fmt"
	"strings"
)

// Status is the lifecycle stage of a battery.
type Status string

const (
	StatusTemplate  Status = "template"
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusInactive  Status = "inactive"
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

// CreateBatteryContext provides context for battery creation guards.
type CreateBatteryContext struct {
	Title string
}

// TransitionContext provides context for lifecycle transition guards.
type TransitionContext struct {
	BatteryID string
	From      Status
	To        Status
}

// EditContext provides context for membership edit guards.
type EditContext struct {
	BatteryID   string
	Status      Status
	HasChildren bool // true if drafts were duplicated from this battery
}

// DuplicateContext provides context for duplication guards.
type DuplicateContext struct {
	BatteryID string
	NewStatus Status
}

var transitions = map[Status][]Status{
	StatusDraft:     {StatusPublished, StatusInactive},
	StatusPublished: {StatusInactive},
	StatusInactive:  {StatusPublished},
}

// CanCreateBattery evaluates whether a battery can be created.
// Rules:
// - Title must not be empty
func CanCreateBattery(ctx CreateBatteryContext) GuardResult {
	if strings.TrimSpace(ctx.Title) == "" {
		return GuardResult{Allowed: false, Reason: "battery title cannot be empty"}
	}
	return GuardResult{Allowed: true}
}

// CanTransition evaluates a lifecycle change.
// Rules:
// - draft -> published | inactive
// - published -> inactive
// - inactive -> published
// - templates never change status; they are duplicated instead
func CanTransition(ctx TransitionContext) GuardResult {
	if ctx.From == StatusTemplate {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("battery %s is a template; duplicate it to create a draft", ctx.BatteryID),
		}
	}
	for _, allowed := range transitions[ctx.From] {
		if allowed == ctx.To {
			return GuardResult{Allowed: true}
		}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("cannot move battery %s from %s to %s", ctx.BatteryID, ctx.From, ctx.To),
	}
}

// CanEdit evaluates whether a battery's experiments can be added, removed or reordered.
// Rules:
// - draft batteries are editable
// - templates are editable only until something has been duplicated from them
// - published and inactive batteries are frozen
func CanEdit(ctx EditContext) GuardResult {
	switch ctx.Status {
	case StatusDraft:
		return GuardResult{Allowed: true}
	case StatusTemplate:
		if ctx.HasChildren {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("template %s has drafts duplicated from it and can no longer change", ctx.BatteryID),
			}
		}
		return GuardResult{Allowed: true}
	default:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("battery %s is %s and cannot be edited", ctx.BatteryID, ctx.Status),
		}
	}
}

// CanDuplicate evaluates whether a battery can be duplicated into the requested status.
// Rules:
// - Duplicates start as draft or template
func CanDuplicate(ctx DuplicateContext) GuardResult {
	if ctx.NewStatus != StatusDraft && ctx.NewStatus != StatusTemplate {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("duplicates of %s must start as draft or template, not %s", ctx.BatteryID, ctx.NewStatus),
		}
	}
	return GuardResult{Allowed: true}
}

// RootTemplateID returns the template a duplicate of (id, templateID) should point at.
// Duplicates always reference the root template, never a chain of copies.
func RootTemplateID(id, templateID string) string {
	if templateID == "" {
		return id
	}
	return templateID
}
