package primary

import "context"

// SubjectService defines the primary port for subject operations.
type SubjectService interface {
	// CreateSubject creates a subject with a generated uuid.
	CreateSubject(ctx context.Context, req CreateSubjectRequest) (*Subject, error)

	// CreateSubjects creates count anonymous subjects.
	CreateSubjects(ctx context.Context, count int) ([]*Subject, error)

	// GetSubject retrieves a subject by ID.
	GetSubject(ctx context.Context, subjectID string) (*Subject, error)

	// GetSubjectByUUID retrieves a subject by uuid.
	GetSubjectByUUID(ctx context.Context, uuid string) (*Subject, error)

	// ListSubjects lists subjects with optional filters.
	ListSubjects(ctx context.Context, filters SubjectFilters) ([]*Subject, error)

	// SetSubjectActive activates or deactivates a subject.
	SetSubjectActive(ctx context.Context, subjectID string, active bool) error
}

// CreateSubjectRequest contains parameters for creating a subject.
type CreateSubjectRequest struct {
	Handle     string
	Email      string
	Notes      string
	ProlificID string
}

// Subject represents a study participant at the port boundary.
type Subject struct {
	ID         string
	Handle     string
	Email      string
	Notes      string
	UUID       string
	Active     bool
	ProlificID string
	Tags       []string
	CreatedAt  string
}

// SubjectFilters contains filter options for listing subjects.
type SubjectFilters struct {
	Active *bool
	Tag    string
}
