package primary

import "context"

// ResultService defines the primary port for results and their export.
type ResultService interface {
	// RecordResult stores an outcome for a battery experiment of an assignment.
	RecordResult(ctx context.Context, req RecordResultRequest) (*Result, error)

	// UpdateResultStatus moves a result through the status state machine.
	UpdateResultStatus(ctx context.Context, resultID, status string) error

	// GetResult retrieves a result by ID.
	GetResult(ctx context.Context, resultID string) (*Result, error)

	// ListResults lists results with optional filters.
	ListResults(ctx context.Context, filters ResultFilters) ([]*Result, error)

	// ExportBattery groups every result of a battery by experiment name.
	ExportBattery(ctx context.Context, batteryID string) (Export, error)

	// ExportSubject groups every result of a subject by experiment name.
	ExportSubject(ctx context.Context, subjectID string) (Export, error)

	// ExportResult exports a single result.
	ExportResult(ctx context.Context, resultID string) (Export, error)
}

// RecordResultRequest contains parameters for recording a result.
type RecordResultRequest struct {
	AssignmentID        string
	BatteryExperimentID string
	Status              string // Defaults to completed
	Data                string
}

// Result represents a result at the port boundary.
type Result struct {
	ID                  string
	AssignmentID        string
	BatteryExperimentID string
	SubjectID           string
	Status              string
	StartedAt           string
	CompletedAt         string
	FailedAt            string
	Data                string
	CreatedAt           string
	UpdatedAt           string
}

// ResultFilters contains filter options for listing results.
type ResultFilters struct {
	AssignmentID string
	SubjectID    string
	BatteryID    string
}

// Export maps experiment name to its exported results.
type Export map[string][]ExportEntry

// ExportEntry is one exported result. Data holds the decoded payload, or the raw
// string when it is not JSON.
type ExportEntry struct {
	Subject string `json:"subject" yaml:"subject"`
	Data    any    `json:"data" yaml:"data"`
}
