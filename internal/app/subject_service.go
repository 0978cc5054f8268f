package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/ports/secondary"
)

// SubjectServiceImpl implements the SubjectService interface.
type SubjectServiceImpl struct {
	subjectRepo secondary.SubjectRepository
	tagRepo     secondary.TagRepository
	logWriter   secondary.LogWriter
	newUUID     func() string
}

// NewSubjectService creates a new SubjectService with injected dependencies.
// logWriter is optional.
func NewSubjectService(subjectRepo secondary.SubjectRepository, tagRepo secondary.TagRepository, logWriter secondary.LogWriter) *SubjectServiceImpl {
	return &SubjectServiceImpl{
		subjectRepo: subjectRepo,
		tagRepo:     tagRepo,
		logWriter:   logWriter,
		newUUID:     uuid.NewString,
	}
}

// CreateSubject creates a subject with a generated uuid.
func (s *SubjectServiceImpl) CreateSubject(ctx context.Context, req primary.CreateSubjectRequest) (*primary.Subject, error) {
	nextID, err := s.subjectRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate subject ID: %w", err)
	}

	record := &secondary.SubjectRecord{
		ID:         nextID,
		Handle:     req.Handle,
		Email:      req.Email,
		Notes:      req.Notes,
		UUID:       s.newUUID(),
		Active:     true,
		ProlificID: req.ProlificID,
	}
	if err := s.subjectRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create subject: %w", err)
	}
	auditCreate(ctx, s.logWriter, entitySubject, nextID)

	return s.GetSubject(ctx, nextID)
}

// CreateSubjects creates count anonymous subjects.
func (s *SubjectServiceImpl) CreateSubjects(ctx context.Context, count int) ([]*primary.Subject, error) {
	if count < 1 {
		return nil, fmt.Errorf("subject count must be positive, got %d", count)
	}
	subjects := make([]*primary.Subject, 0, count)
	for range count {
		subject, err := s.CreateSubject(ctx, primary.CreateSubjectRequest{})
		if err != nil {
			return subjects, err
		}
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

// GetSubject retrieves a subject by ID.
func (s *SubjectServiceImpl) GetSubject(ctx context.Context, subjectID string) (*primary.Subject, error) {
	record, err := s.subjectRepo.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return s.recordToSubject(ctx, record)
}

// GetSubjectByUUID retrieves a subject by uuid.
func (s *SubjectServiceImpl) GetSubjectByUUID(ctx context.Context, id string) (*primary.Subject, error) {
	record, err := s.subjectRepo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("subject with uuid %q not found", id)
	}
	return s.recordToSubject(ctx, record)
}

// ListSubjects lists subjects with optional filters.
func (s *SubjectServiceImpl) ListSubjects(ctx context.Context, filters primary.SubjectFilters) ([]*primary.Subject, error) {
	records, err := s.subjectRepo.List(ctx, secondary.SubjectFilters{
		Active: filters.Active,
		Tag:    filters.Tag,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}

	subjects := make([]*primary.Subject, len(records))
	for i, r := range records {
		subject, err := s.recordToSubject(ctx, r)
		if err != nil {
			return nil, err
		}
		subjects[i] = subject
	}
	return subjects, nil
}

// SetSubjectActive activates or deactivates a subject.
func (s *SubjectServiceImpl) SetSubjectActive(ctx context.Context, subjectID string, active bool) error {
	record, err := s.subjectRepo.GetByID(ctx, subjectID)
	if err != nil {
		return err
	}
	if record.Active == active {
		return nil
	}
	if err := s.subjectRepo.SetActive(ctx, subjectID, active); err != nil {
		return err
	}
	auditUpdate(ctx, s.logWriter, entitySubject, subjectID, "active", fmt.Sprint(record.Active), fmt.Sprint(active))
	return nil
}

// Helper methods

func (s *SubjectServiceImpl) recordToSubject(ctx context.Context, r *secondary.SubjectRecord) (*primary.Subject, error) {
	tags, err := tagNames(ctx, s.tagRepo, secondary.EntityTypeSubject, r.ID)
	if err != nil {
		return nil, err
	}
	return &primary.Subject{
		ID:         r.ID,
		Handle:     r.Handle,
		Email:      r.Email,
		Notes:      r.Notes,
		UUID:       r.UUID,
		Active:     r.Active,
		ProlificID: r.ProlificID,
		Tags:       tags,
		CreatedAt:  r.CreatedAt,
	}, nil
}

// Ensure SubjectServiceImpl implements the interface
var _ primary.SubjectService = (*SubjectServiceImpl)(nil)
