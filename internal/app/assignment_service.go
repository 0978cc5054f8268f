package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/expfactory/internal/core/assignment"
	"github.com/example/expfactory/internal/core/ordering"
	"github.com/example/expfactory/internal/core/progress"
	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/ports/secondary"
)

// AssignmentRepos groups the persistence ports the assignment service reads.
type AssignmentRepos struct {
	Assignments        secondary.AssignmentRepository
	Subjects           secondary.SubjectRepository
	Batteries          secondary.BatteryRepository
	BatteryExperiments secondary.BatteryExperimentRepository
	Instances          secondary.InstanceRepository
	Results            secondary.ResultRepository
	ExperimentRepos    secondary.ExperimentRepoRepository
	Origins            secondary.OriginRepository
}

// AssignmentServiceImpl implements the AssignmentService interface.
type AssignmentServiceImpl struct {
	repos     AssignmentRepos
	resolver  *commitResolver
	src       ordering.Source
	logWriter secondary.LogWriter
	now       func() time.Time
}

// NewAssignmentService creates a new AssignmentService with injected dependencies.
// A nil src draws from the process-wide random source; logWriter is optional.
func NewAssignmentService(repos AssignmentRepos, src ordering.Source, logWriter secondary.LogWriter) *AssignmentServiceImpl {
	if src == nil {
		src = globalRand{}
	}
	return &AssignmentServiceImpl{
		repos: repos,
		resolver: &commitResolver{
			originRepo:   repos.Origins,
			expRepo:      repos.ExperimentRepos,
			instanceRepo: repos.Instances,
		},
		src:       src,
		logWriter: logWriter,
		now:       time.Now,
	}
}

// CreateAssignment assigns a subject to a battery. Random-order batteries get a fixed
// ordering written in the same transaction as the assignment.
func (s *AssignmentServiceImpl) CreateAssignment(ctx context.Context, req primary.CreateAssignmentRequest) (*primary.Assignment, error) {
	subject, err := s.repos.Subjects.GetByID(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	bat, err := s.repos.Batteries.GetByID(ctx, req.BatteryID)
	if err != nil {
		return nil, err
	}

	result := assignment.CanCreateAssignment(assignment.CreateAssignmentContext{
		SubjectID:     subject.ID,
		SubjectActive: subject.Active,
		BatteryID:     bat.ID,
		BatteryStatus: bat.Status,
	})
	if err := result.Error(); err != nil {
		return nil, err
	}

	var order *secondary.ExperimentOrderRecord
	var items []*secondary.OrderItemRecord
	if bat.RandomOrder {
		order, items, err = buildOrdering(ctx, s.repos.BatteryExperiments, bat.ID, s.src)
		if err != nil {
			return nil, err
		}
	}

	record := &secondary.AssignmentRecord{
		SubjectID:  subject.ID,
		BatteryID:  bat.ID,
		Status:     string(progress.StatusNotStarted),
		Note:       req.Note,
		GroupIndex: req.GroupIndex,
	}
	if err := s.repos.Assignments.Create(ctx, record, order, items); err != nil {
		if errors.Is(err, secondary.ErrDuplicateAssignment) {
			return nil, fmt.Errorf("subject %s, battery %s: %w", subject.ID, bat.ID, err)
		}
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	auditCreate(ctx, s.logWriter, entityAssignment, record.ID)

	return s.GetAssignment(ctx, record.ID)
}

// AssignSubjects assigns each subject, reporting those already assigned instead of failing.
func (s *AssignmentServiceImpl) AssignSubjects(ctx context.Context, batteryID string, subjectIDs []string) (*primary.AssignSubjectsResponse, error) {
	resp := &primary.AssignSubjectsResponse{}
	for _, id := range subjectIDs {
		a, err := s.CreateAssignment(ctx, primary.CreateAssignmentRequest{SubjectID: id, BatteryID: batteryID})
		if errors.Is(err, secondary.ErrDuplicateAssignment) {
			resp.Duplicates = append(resp.Duplicates, id)
			continue
		}
		if err != nil {
			return resp, err
		}
		resp.Created = append(resp.Created, a)
	}
	return resp, nil
}

// GetAssignment retrieves an assignment by ID.
func (s *AssignmentServiceImpl) GetAssignment(ctx context.Context, assignmentID string) (*primary.Assignment, error) {
	record, err := s.repos.Assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	return s.recordToAssignment(record), nil
}

// ListAssignments lists assignments with optional filters.
func (s *AssignmentServiceImpl) ListAssignments(ctx context.Context, filters primary.AssignmentFilters) ([]*primary.Assignment, error) {
	records, err := s.repos.Assignments.List(ctx, secondary.AssignmentFilters{
		SubjectID: filters.SubjectID,
		BatteryID: filters.BatteryID,
		Status:    filters.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	out := make([]*primary.Assignment, len(records))
	for i, r := range records {
		out[i] = s.recordToAssignment(r)
	}
	return out, nil
}

// NextExperiment resolves the next experiment the subject should take.
//
// Candidates come from the assignment's persisted ordering when it has one, otherwise
// from the battery's current experiments (shuffled per call for random-order batteries).
// Experiments the subject completed or failed under any assignment are skipped.
func (s *AssignmentServiceImpl) NextExperiment(ctx context.Context, assignmentID string) (*primary.NextExperimentResponse, error) {
	record, err := s.repos.Assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.candidates(ctx, record)
	if err != nil {
		return nil, err
	}

	exemptIDs, err := s.repos.Results.ExemptInstanceIDs(ctx, record.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read finished experiments: %w", err)
	}
	exempt := make(map[string]bool, len(exemptIDs))
	for _, id := range exemptIDs {
		exempt[id] = true
	}

	byID := make(map[string]*secondary.InstanceRecord, len(candidates))
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		byID[c.ID] = c
		ids[i] = c.ID
	}

	plan := assignment.PlanNext(progress.Status(record.Status), ids, exempt, s.now())
	status := record.Status
	if plan.Transition != nil {
		if err := s.repos.Assignments.UpdateStatus(ctx, record.ID, toStatusUpdate(*plan.Transition)); err != nil {
			return nil, fmt.Errorf("failed to update assignment status: %w", err)
		}
		status = string(plan.Transition.To)
		auditUpdate(ctx, s.logWriter, entityAssignment, record.ID, "status", record.Status, status)
	}

	resp := &primary.NextExperimentResponse{
		Remaining: len(plan.Remaining),
		Status:    status,
	}
	if next := plan.Next(); next != "" {
		resp.Instance = s.resolver.toInstance(ctx, byID[next])
	}
	return resp, nil
}

// ResultStatus counts the assignment's results by status.
func (s *AssignmentServiceImpl) ResultStatus(ctx context.Context, assignmentID string) (*primary.ResultStatusSummary, error) {
	if _, err := s.repos.Assignments.GetByID(ctx, assignmentID); err != nil {
		return nil, err
	}
	counts, err := s.repos.Results.CountByStatus(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}
	summary := &primary.ResultStatusSummary{Counts: counts}
	for _, n := range counts {
		summary.Total += n
	}
	return summary, nil
}

// MarkRedo moves an assignment to redo.
func (s *AssignmentServiceImpl) MarkRedo(ctx context.Context, assignmentID string) error {
	record, err := s.repos.Assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return err
	}
	tr, err := progress.ApplyTransition(progress.Status(record.Status), progress.StatusRedo, s.now())
	if err != nil {
		return err
	}
	if tr.NoOp() {
		return nil
	}
	if err := s.repos.Assignments.UpdateStatus(ctx, assignmentID, toStatusUpdate(tr)); err != nil {
		return err
	}
	auditUpdate(ctx, s.logWriter, entityAssignment, assignmentID, "status", record.Status, string(tr.To))
	return nil
}

// AcceptConsent records the subject's consent decision.
func (s *AssignmentServiceImpl) AcceptConsent(ctx context.Context, assignmentID string, accepted bool) error {
	if _, err := s.repos.Assignments.GetByID(ctx, assignmentID); err != nil {
		return err
	}
	if err := s.repos.Assignments.SetConsent(ctx, assignmentID, accepted); err != nil {
		return err
	}
	auditUpdate(ctx, s.logWriter, entityAssignment, assignmentID, "consent_accepted", "", fmt.Sprint(accepted))
	return nil
}

// Helper methods

// candidates returns the instances in the order the subject should see them.
func (s *AssignmentServiceImpl) candidates(ctx context.Context, record *secondary.AssignmentRecord) ([]*secondary.InstanceRecord, error) {
	if record.OrderingID != "" {
		instances, err := s.repos.Instances.ListByOrdering(ctx, record.OrderingID)
		if err != nil {
			return nil, fmt.Errorf("failed to read ordering %s: %w", record.OrderingID, err)
		}
		return instances, nil
	}

	bat, err := s.repos.Batteries.GetByID(ctx, record.BatteryID)
	if err != nil {
		return nil, err
	}
	instances, err := s.repos.Instances.ListByBattery(ctx, bat.ID, bat.RandomOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to read battery %s: %w", bat.ID, err)
	}
	return instances, nil
}

func (s *AssignmentServiceImpl) recordToAssignment(r *secondary.AssignmentRecord) *primary.Assignment {
	return &primary.Assignment{
		ID:              r.ID,
		SubjectID:       r.SubjectID,
		BatteryID:       r.BatteryID,
		Status:          r.Status,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		FailedAt:        r.FailedAt,
		ConsentAccepted: r.ConsentAccepted,
		Note:            r.Note,
		OrderingID:      r.OrderingID,
		GroupIndex:      r.GroupIndex,
		CreatedAt:       r.CreatedAt,
	}
}

// Ensure AssignmentServiceImpl implements the interface
var _ primary.AssignmentService = (*AssignmentServiceImpl)(nil)
