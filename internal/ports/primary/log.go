package primary

import "context"

// Audit actions.
const (
	LogActionCreate = "create"
	LogActionUpdate = "update"
	LogActionDelete = "delete"
)

// LogService reads and prunes the audit trail written by the other services.
type LogService interface {
	// ListLogs returns entries newest first. A zero Limit means DefaultLogLimit.
	ListLogs(ctx context.Context, filters LogFilters) ([]*LogEntry, error)

	GetLog(ctx context.Context, id string) (*LogEntry, error)

	// PruneLogs deletes entries older than olderThanDays and returns how many went.
	PruneLogs(ctx context.Context, olderThanDays int) (int, error)

	// SummarizeLogs counts the entries matching filters per entity type and action.
	SummarizeLogs(ctx context.Context, filters LogFilters) (*LogSummary, error)
}

// DefaultLogLimit and MaxLogLimit bound how many entries one query returns.
const (
	DefaultLogLimit = 50
	MaxLogLimit     = 1000
)

// LogEntry is one recorded change to an origin, experiment, battery, subject,
// assignment or result.
type LogEntry struct {
	ID         string
	ActorID    string
	EntityType string
	EntityID   string
	Action     string
	FieldName  string // set on updates
	OldValue   string
	NewValue   string
	CreatedAt  string
}

// LogFilters narrows a log query. Empty fields match everything.
type LogFilters struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     string
	Limit      int
}

// LogSummary counts entries keyed by entity type, then action.
type LogSummary struct {
	Total  int
	Counts map[string]map[string]int
}
