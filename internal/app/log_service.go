package app

import (
	"context"
	"fmt"

	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/ports/secondary"
)

// auditedEntities are the entity types the services write to the audit log.
var auditedEntities = map[string]bool{
	entityOrigin:         true,
	entityExperimentRepo: true,
	entityInstance:       true,
	entityFramework:      true,
	entityBattery:        true,
	entitySubject:        true,
	entityAssignment:     true,
	entityResult:         true,
}

// LogServiceImpl serves the audit trail.
type LogServiceImpl struct {
	logRepo secondary.AuditLogRepository
}

// NewLogService creates a LogService over the audit log repository.
func NewLogService(logRepo secondary.AuditLogRepository) *LogServiceImpl {
	return &LogServiceImpl{logRepo: logRepo}
}

// ListLogs returns audit entries newest first.
func (s *LogServiceImpl) ListLogs(ctx context.Context, filters primary.LogFilters) ([]*primary.LogEntry, error) {
	query, err := auditQuery(filters)
	if err != nil {
		return nil, err
	}

	records, err := s.logRepo.List(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}

	entries := make([]*primary.LogEntry, len(records))
	for i, r := range records {
		entries[i] = toLogEntry(r)
	}
	return entries, nil
}

// GetLog returns one audit entry.
func (s *LogServiceImpl) GetLog(ctx context.Context, id string) (*primary.LogEntry, error) {
	if id == "" {
		return nil, fmt.Errorf("log id cannot be empty")
	}
	record, err := s.logRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toLogEntry(record), nil
}

// PruneLogs deletes audit entries older than olderThanDays.
func (s *LogServiceImpl) PruneLogs(ctx context.Context, olderThanDays int) (int, error) {
	if olderThanDays < 1 {
		return 0, fmt.Errorf("retention must be at least one day, got %d", olderThanDays)
	}
	return s.logRepo.PruneOlderThan(ctx, olderThanDays)
}

// SummarizeLogs counts matching entries per entity type and action.
// The count covers at most MaxLogLimit entries unless filters.Limit is smaller.
func (s *LogServiceImpl) SummarizeLogs(ctx context.Context, filters primary.LogFilters) (*primary.LogSummary, error) {
	if filters.Limit == 0 {
		filters.Limit = primary.MaxLogLimit
	}
	entries, err := s.ListLogs(ctx, filters)
	if err != nil {
		return nil, err
	}

	summary := &primary.LogSummary{Counts: make(map[string]map[string]int)}
	for _, e := range entries {
		byAction := summary.Counts[e.EntityType]
		if byAction == nil {
			byAction = make(map[string]int)
			summary.Counts[e.EntityType] = byAction
		}
		byAction[e.Action]++
		summary.Total++
	}
	return summary, nil
}

// auditQuery validates filters and clamps the limit.
func auditQuery(filters primary.LogFilters) (secondary.AuditLogFilters, error) {
	switch filters.Action {
	case "", primary.LogActionCreate, primary.LogActionUpdate, primary.LogActionDelete:
	default:
		return secondary.AuditLogFilters{}, fmt.Errorf("unknown action %q: expected create, update or delete", filters.Action)
	}
	if filters.EntityType != "" && !auditedEntities[filters.EntityType] {
		return secondary.AuditLogFilters{}, fmt.Errorf("unknown entity type %q", filters.EntityType)
	}

	limit := filters.Limit
	switch {
	case limit <= 0:
		limit = primary.DefaultLogLimit
	case limit > primary.MaxLogLimit:
		limit = primary.MaxLogLimit
	}

	return secondary.AuditLogFilters{
		EntityType: filters.EntityType,
		EntityID:   filters.EntityID,
		ActorID:    filters.ActorID,
		Action:     filters.Action,
		Limit:      limit,
	}, nil
}

func toLogEntry(r *secondary.AuditLogRecord) *primary.LogEntry {
	return &primary.LogEntry{
		ID:         r.ID,
		ActorID:    r.ActorID,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Action:     r.Action,
		FieldName:  r.FieldName,
		OldValue:   r.OldValue,
		NewValue:   r.NewValue,
		CreatedAt:  r.CreatedAt,
	}
}

var _ primary.LogService = (*LogServiceImpl)(nil)
