package origin

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

// CreateOriginContext provides context for origin creation guards.
type CreateOriginContext struct {
	URL        string
	ParseError error
	Name       string
	Path       string
	Exists     bool // true if an origin with this (name, path) or url already exists
}

// ArchiveOriginContext provides context for archive/restore guards.
type ArchiveOriginContext struct {
	OriginID string
	Active   bool
}

// CanCreateOrigin evaluates whether an origin can be registered.
// Rules:
// - URL must parse as a git url
// - (name, path) must be unique
func CanCreateOrigin(ctx CreateOriginContext) GuardResult {
	if ctx.ParseError != nil {
		return GuardResult{Allowed: false, Reason: ctx.ParseError.Error()}
	}
	if ctx.Exists {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("repository %q already registered at %s", ctx.Name, ctx.Path),
		}
	}
	return GuardResult{Allowed: true}
}

// CanArchiveOrigin evaluates whether an origin can be archived.
// Rules:
// - Origin must be active
func CanArchiveOrigin(ctx ArchiveOriginContext) GuardResult {
	if !ctx.Active {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("origin %s is already archived", ctx.OriginID),
		}
	}
	return GuardResult{Allowed: true}
}

// CanRestoreOrigin evaluates whether an origin can be restored.
// Rules:
// - Origin must be archived
func CanRestoreOrigin(ctx ArchiveOriginContext) GuardResult {
	if ctx.Active {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("origin %s is not archived", ctx.OriginID),
		}
	}
	return GuardResult{Allowed: true}
}

// CanDeleteOrigin evaluates whether an origin can be deleted.
// Rules:
// - Origin must be archived first; its experiments lose their origin
func CanDeleteOrigin(ctx ArchiveOriginContext) GuardResult {
	if ctx.Active {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("archive origin %s before deleting it", ctx.OriginID),
		}
	}
	return GuardResult{Allowed: true}
}
