package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/expfactory/internal/core/export"
	"github.com/example/expfactory/internal/core/progress"
	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/ports/secondary"
)

// ResultServiceImpl implements the ResultService interface.
type ResultServiceImpl struct {
	resultRepo     secondary.ResultRepository
	assignmentRepo secondary.AssignmentRepository
	batteryExpRepo secondary.BatteryExperimentRepository
	logWriter      secondary.LogWriter
	now            func() time.Time
}

// NewResultService creates a new ResultService with injected dependencies.
// logWriter is optional.
func NewResultService(
	resultRepo secondary.ResultRepository,
	assignmentRepo secondary.AssignmentRepository,
	batteryExpRepo secondary.BatteryExperimentRepository,
	logWriter secondary.LogWriter,
) *ResultServiceImpl {
	return &ResultServiceImpl{
		resultRepo:     resultRepo,
		assignmentRepo: assignmentRepo,
		batteryExpRepo: batteryExpRepo,
		logWriter:      logWriter,
		now:            time.Now,
	}
}

// RecordResult stores an outcome for a battery experiment of an assignment.
// The subject is taken from the assignment.
func (s *ResultServiceImpl) RecordResult(ctx context.Context, req primary.RecordResultRequest) (*primary.Result, error) {
	asg, err := s.assignmentRepo.GetByID(ctx, req.AssignmentID)
	if err != nil {
		return nil, err
	}
	bexp, err := s.batteryExpRepo.GetByID(ctx, req.BatteryExperimentID)
	if err != nil {
		return nil, err
	}
	if bexp.BatteryID != asg.BatteryID {
		return nil, fmt.Errorf("battery experiment %s is not part of battery %s", bexp.ID, asg.BatteryID)
	}

	status := progress.StatusCompleted
	if req.Status != "" {
		status, err = progress.ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
	}

	nextID, err := s.resultRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate result ID: %w", err)
	}

	now := formatTime(s.now())
	record := &secondary.ResultRecord{
		ID:                  nextID,
		AssignmentID:        asg.ID,
		BatteryExperimentID: bexp.ID,
		SubjectID:           asg.SubjectID,
		Status:              string(status),
		Data:                req.Data,
	}
	switch status {
	case progress.StatusStarted:
		record.StartedAt = now
	case progress.StatusCompleted:
		record.CompletedAt = now
	case progress.StatusFailed:
		record.FailedAt = now
	}

	if err := s.resultRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create result: %w", err)
	}
	auditCreate(ctx, s.logWriter, entityResult, nextID)

	return s.GetResult(ctx, nextID)
}

// UpdateResultStatus moves a result through the status state machine.
func (s *ResultServiceImpl) UpdateResultStatus(ctx context.Context, resultID, status string) error {
	record, err := s.resultRepo.GetByID(ctx, resultID)
	if err != nil {
		return err
	}
	to, err := progress.ParseStatus(status)
	if err != nil {
		return err
	}

	tr, err := progress.ApplyTransition(progress.Status(record.Status), to, s.now())
	if err != nil {
		return fmt.Errorf("result %s: %w", resultID, err)
	}
	if tr.NoOp() {
		return nil
	}

	if err := s.resultRepo.UpdateStatus(ctx, resultID, toStatusUpdate(tr)); err != nil {
		return err
	}
	auditUpdate(ctx, s.logWriter, entityResult, resultID, "status", record.Status, status)
	return nil
}

// GetResult retrieves a result by ID.
func (s *ResultServiceImpl) GetResult(ctx context.Context, resultID string) (*primary.Result, error) {
	record, err := s.resultRepo.GetByID(ctx, resultID)
	if err != nil {
		return nil, err
	}
	return s.recordToResult(record), nil
}

// ListResults lists results with optional filters.
func (s *ResultServiceImpl) ListResults(ctx context.Context, filters primary.ResultFilters) ([]*primary.Result, error) {
	records, err := s.resultRepo.List(ctx, secondary.ResultFilters{
		AssignmentID: filters.AssignmentID,
		SubjectID:    filters.SubjectID,
		BatteryID:    filters.BatteryID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	out := make([]*primary.Result, len(records))
	for i, r := range records {
		out[i] = s.recordToResult(r)
	}
	return out, nil
}

// ExportBattery groups every result of a battery by experiment name.
func (s *ResultServiceImpl) ExportBattery(ctx context.Context, batteryID string) (primary.Export, error) {
	return s.export(ctx, secondary.ResultFilters{BatteryID: batteryID})
}

// ExportSubject groups every result of a subject by experiment name.
func (s *ResultServiceImpl) ExportSubject(ctx context.Context, subjectID string) (primary.Export, error) {
	return s.export(ctx, secondary.ResultFilters{SubjectID: subjectID})
}

// ExportResult exports a single result.
func (s *ResultServiceImpl) ExportResult(ctx context.Context, resultID string) (primary.Export, error) {
	if _, err := s.resultRepo.GetByID(ctx, resultID); err != nil {
		return nil, err
	}
	return s.export(ctx, secondary.ResultFilters{ID: resultID})
}

// Helper methods

func (s *ResultServiceImpl) export(ctx context.Context, filters secondary.ResultFilters) (primary.Export, error) {
	records, err := s.resultRepo.ExportRows(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to read results for export: %w", err)
	}

	rows := make([]export.Row, len(records))
	for i, r := range records {
		rows[i] = export.Row{
			ExperimentName: r.ExperimentName,
			SubjectHandle:  r.SubjectHandle,
			SubjectUUID:    r.SubjectUUID,
			Data:           r.Data,
		}
	}

	built := export.Build(rows)
	out := make(primary.Export, len(built))
	for name, entries := range built {
		converted := make([]primary.ExportEntry, len(entries))
		for i, e := range entries {
			converted[i] = primary.ExportEntry{Subject: e.Subject, Data: e.Data}
		}
		out[name] = converted
	}
	return out, nil
}

func (s *ResultServiceImpl) recordToResult(r *secondary.ResultRecord) *primary.Result {
	return &primary.Result{
		ID:                  r.ID,
		AssignmentID:        r.AssignmentID,
		BatteryExperimentID: r.BatteryExperimentID,
		SubjectID:           r.SubjectID,
		Status:              r.Status,
		StartedAt:           r.StartedAt,
		CompletedAt:         r.CompletedAt,
		FailedAt:            r.FailedAt,
		Data:                r.Data,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

// Ensure ResultServiceImpl implements the interface
var _ primary.ResultService = (*ResultServiceImpl)(nil)
