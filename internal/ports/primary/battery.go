package primary

import (
	"context"
	"time"
)

// BatteryService defines the primary port for battery operations.
type BatteryService interface {
	// CreateBattery creates a template or draft battery.
	CreateBattery(ctx context.Context, req CreateBatteryRequest) (*CreateBatteryResponse, error)

	// GetBattery retrieves a battery by ID.
	GetBattery(ctx context.Context, batteryID string) (*Battery, error)

	// ListBatteries lists batteries with optional filters.
	ListBatteries(ctx context.Context, filters BatteryFilters) ([]*Battery, error)

	// UpdateBattery updates the text and presentation settings of an editable battery.
	UpdateBattery(ctx context.Context, req UpdateBatteryRequest) error

	// SetBatteryStatus moves a battery through its lifecycle.
	SetBatteryStatus(ctx context.Context, batteryID, status string) error

	// DuplicateBattery copies a battery and its experiments into a new draft (or template).
	DuplicateBattery(ctx context.Context, req DuplicateBatteryRequest) (*Battery, error)

	// BindCommit pins an experiment repo at a commit and places it in the battery.
	BindCommit(ctx context.Context, req BindCommitRequest) (*BindCommitResponse, error)

	// ListBatteryExperiments lists the battery's experiments by order.
	ListBatteryExperiments(ctx context.Context, batteryID string) ([]*BatteryExperiment, error)

	// MoveExperiment changes the order of a battery experiment.
	MoveExperiment(ctx context.Context, batteryID, batteryExperimentID string, order int) error

	// RemoveExperiment removes an experiment from the battery.
	RemoveExperiment(ctx context.Context, batteryID, batteryExperimentID string) error

	// SetUseLatest controls whether a battery experiment follows its origin head on pull.
	SetUseLatest(ctx context.Context, batteryID, batteryExperimentID string, useLatest bool) error
}

// CreateBatteryRequest contains parameters for creating a battery.
type CreateBatteryRequest struct {
	Title          string
	Status         string // template (default) or draft
	Consent        string
	Instructions   string
	Advertisement  string
	RandomOrder    *bool // Defaults to true
	Public         bool
	InterTaskBreak time.Duration
}

// CreateBatteryResponse contains the result of creating a battery.
type CreateBatteryResponse struct {
	BatteryID string
	Battery   *Battery
}

// UpdateBatteryRequest contains parameters for updating a battery. Nil fields are kept.
type UpdateBatteryRequest struct {
	BatteryID      string
	Title          *string
	Consent        *string
	Instructions   *string
	Advertisement  *string
	RandomOrder    *bool
	Public         *bool
	InterTaskBreak *time.Duration
}

// DuplicateBatteryRequest contains parameters for duplicating a battery.
type DuplicateBatteryRequest struct {
	BatteryID string
	Status    string // draft (default) or template
}

// BindCommitRequest contains parameters for placing an experiment at a commit.
type BindCommitRequest struct {
	BatteryID        string
	ExperimentRepoID string
	Commit           string // "latest" (default) or a sha
	Order            *int   // Nil appends after the last experiment
	Note             string
}

// BindCommitResponse contains the placed battery experiment.
type BindCommitResponse struct {
	BatteryExperimentID string
	Instance            *ExperimentInstance
	Replaced            bool // true when an existing slot of the same experiment repo was re-pointed
}

// Battery represents a battery at the port boundary.
type Battery struct {
	ID             string
	Title          string
	Status         string
	TemplateID     string
	Consent        string
	Instructions   string
	Advertisement  string
	RandomOrder    bool
	Public         bool
	InterTaskBreak time.Duration
	CreatedAt      string
	UpdatedAt      string
}

// BatteryExperiment is one placement of an instance in a battery.
type BatteryExperiment struct {
	ID               string
	BatteryID        string
	InstanceID       string
	ExperimentRepoID string
	ExperimentName   string
	Commit           string
	Order            int
	UseLatest        bool
}

// BatteryFilters contains filter options for listing batteries.
type BatteryFilters struct {
	Status     string
	TemplateID string
}

// Battery status constants
const (
	BatteryStatusTemplate  = "template"
	BatteryStatusDraft     = "draft"
	BatteryStatusPublished = "published"
	BatteryStatusInactive  = "inactive"
)

// OrderingService defines the primary port for persisted experiment orderings.
type OrderingService interface {
	// GenerateOrder persists a fresh random permutation of the battery's experiments.
	// Every call creates a new ordering.
	GenerateOrder(ctx context.Context, batteryID string) (string, error)

	// GetOrdering retrieves an ordering and its items.
	GetOrdering(ctx context.Context, orderingID string) (*Ordering, error)

	// ListOrderings lists the orderings of a battery.
	ListOrderings(ctx context.Context, batteryID string) ([]*Ordering, error)
}

// Ordering is a persisted sequence of a battery's experiments.
type Ordering struct {
	ID            string
	Name          string
	BatteryID     string
	AutoGenerated bool
	Items         []OrderingItem
	CreatedAt     string
}

// OrderingItem is one position of an ordering.
type OrderingItem struct {
	BatteryExperimentID string
	Position            int
}
