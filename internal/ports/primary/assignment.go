package primary

import "context"

// AssignmentService defines the primary port for assignments and progress resolution.
type AssignmentService interface {
	// CreateAssignment assigns a subject to a battery. When the battery uses random order
	// a fixed ordering is generated in the same transaction.
	CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (*Assignment, error)

	// AssignSubjects assigns each subject to the battery, skipping subjects already assigned.
	AssignSubjects(ctx context.Context, batteryID string, subjectIDs []string) (*AssignSubjectsResponse, error)

	// GetAssignment retrieves an assignment by ID.
	GetAssignment(ctx context.Context, assignmentID string) (*Assignment, error)

	// ListAssignments lists assignments with optional filters.
	ListAssignments(ctx context.Context, filters AssignmentFilters) ([]*Assignment, error)

	// NextExperiment resolves the next experiment the subject should take and the
	// number of experiments left, updating the assignment status.
	NextExperiment(ctx context.Context, assignmentID string) (*NextExperimentResponse, error)

	// ResultStatus counts the assignment's results by status.
	ResultStatus(ctx context.Context, assignmentID string) (*ResultStatusSummary, error)

	// MarkRedo moves an assignment to redo so the subject can take it again.
	MarkRedo(ctx context.Context, assignmentID string) error

	// AcceptConsent records the subject's consent decision.
	AcceptConsent(ctx context.Context, assignmentID string, accepted bool) error
}

// CreateAssignmentRequest contains parameters for creating an assignment.
type CreateAssignmentRequest struct {
	SubjectID  string
	BatteryID  string
	GroupIndex int
	Note       string
}

// AssignSubjectsResponse reports a bulk assignment.
type AssignSubjectsResponse struct {
	Created    []*Assignment
	Duplicates []string // subject IDs already assigned to the battery
}

// NextExperimentResponse is the outcome of progress resolution.
type NextExperimentResponse struct {
	Instance  *ExperimentInstance // Nil when nothing remains
	Remaining int
	Status    string // assignment status after resolution
}

// ResultStatusSummary counts results per status.
type ResultStatusSummary struct {
	Counts map[string]int
	Total  int
}

// Assignment represents an assignment at the port boundary.
type Assignment struct {
	ID              string
	SubjectID       string
	BatteryID       string
	Status          string
	StartedAt       string
	CompletedAt     string
	FailedAt        string
	ConsentAccepted *bool
	Note            string
	OrderingID      string
	GroupIndex      int
	CreatedAt       string
}

// AssignmentFilters contains filter options for listing assignments.
type AssignmentFilters struct {
	SubjectID string
	BatteryID string
	Status    string
}

// Progress status constants shared by assignments and results.
const (
	StatusNotStarted = "not-started"
	StatusStarted    = "started"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusRedo       = "redo"
)
