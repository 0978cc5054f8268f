// Package secondary defines the secondary ports (driven adapters) for the application.
package secondary

import (
	"context"
	"time"
)

// StatusUpdate is a status change written together with its timestamp column.
// Nil timestamps are left untouched.
type StatusUpdate struct {
	Status      string
	StartedAt   *time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time
}

// TagRepository defines the secondary port for tag persistence.
type TagRepository interface {
	// Create persists a new tag.
	Create(ctx context.Context, tag *TagRecord) error

	// GetByID retrieves a tag by its ID.
	GetByID(ctx context.Context, id string) (*TagRecord, error)

	// GetByName retrieves a tag by its name (nil, nil if not found).
	GetByName(ctx context.Context, name string) (*TagRecord, error)

	// List retrieves all tags ordered by name.
	List(ctx context.Context) ([]*TagRecord, error)

	// Delete removes a tag from persistence.
	Delete(ctx context.Context, id string) error

	// GetNextID returns the next available tag ID.
	GetNextID(ctx context.Context) (string, error)

	// AddEntityTag attaches a tag to an entity. Attaching twice is a no-op.
	AddEntityTag(ctx context.Context, entityID, entityType, tagID string) error

	// RemoveEntityTag detaches a tag from an entity.
	RemoveEntityTag(ctx context.Context, entityID, entityType, tagID string) error

	// ListEntityTags retrieves the tags attached to an entity ordered by name.
	ListEntityTags(ctx context.Context, entityID, entityType string) ([]*TagRecord, error)
}

// TagRecord represents a tag as stored in persistence.
type TagRecord struct {
	ID          string
	Name        string
	Description string // Empty string means null
	CreatedAt   string
	UpdatedAt   string
}

// Entity types that can carry tags.
const (
	EntityTypeExperimentRepo = "experiment_repo"
	EntityTypeSubject        = "subject"
)

// FrameworkRepository defines the secondary port for framework persistence.
type FrameworkRepository interface {
	Create(ctx context.Context, framework *FrameworkRecord) error
	GetByID(ctx context.Context, id string) (*FrameworkRecord, error)
	// GetByName returns nil, nil when not found.
	GetByName(ctx context.Context, name string) (*FrameworkRecord, error)
	List(ctx context.Context) ([]*FrameworkRecord, error)
	GetNextID(ctx context.Context) (string, error)
}

// FrameworkRecord represents an experiment framework.
type FrameworkRecord struct {
	ID        string
	Name      string
	Template  string
	CreatedAt string
}

// OriginRepository defines the secondary port for repo origin persistence.
type OriginRepository interface {
	// Create persists a new origin.
	Create(ctx context.Context, origin *OriginRecord) error

	// GetByID retrieves an origin by its ID.
	GetByID(ctx context.Context, id string) (*OriginRecord, error)

	// FindExisting returns the origin sharing the url, or the (name, path) pair (nil, nil if none).
	FindExisting(ctx context.Context, url, name, path string) (*OriginRecord, error)

	// List retrieves origins matching the given filters ordered by name.
	List(ctx context.Context, filters OriginFilters) ([]*OriginRecord, error)

	// SetActive archives or restores an origin.
	SetActive(ctx context.Context, id string, active bool) error

	// Delete removes an origin; its experiment repos keep existing without an origin.
	Delete(ctx context.Context, id string) error

	// GetNextID returns the next available origin ID.
	GetNextID(ctx context.Context) (string, error)
}

// OriginRecord represents a repo origin as stored in persistence.
type OriginRecord struct {
	ID        string
	URL       string
	Path      string
	Name      string
	Active    bool
	CreatedAt string
	UpdatedAt string
}

// OriginFilters contains filter options for querying origins.
type OriginFilters struct {
	Active *bool
}

// ExperimentRepoRepository defines the secondary port for experiment repo persistence.
type ExperimentRepoRepository interface {
	Create(ctx context.Context, repo *ExperimentRepoRecord) error
	GetByID(ctx context.Context, id string) (*ExperimentRepoRecord, error)
	List(ctx context.Context, filters ExperimentRepoFilters) ([]*ExperimentRepoRecord, error)
	// Update writes the non-empty fields of repo.
	Update(ctx context.Context, repo *ExperimentRepoRecord) error
	SetActive(ctx context.Context, id string, active bool) error
	GetNextID(ctx context.Context) (string, error)
}

// ExperimentRepoRecord represents an experiment repo as stored in persistence.
type ExperimentRepoRecord struct {
	ID          string
	Name        string
	OriginID    string // Empty string means null - origin deleted or never set
	Branch      string
	Location    string
	FrameworkID string // Empty string means null
	Active      bool
	CogatID     string
	CreatedAt   string
	UpdatedAt   string
}

// ExperimentRepoFilters contains filter options for querying experiment repos.
type ExperimentRepoFilters struct {
	OriginID string
	Active   *bool
	Tag      string
}

// InstanceRepository defines the secondary port for experiment instance persistence.
type InstanceRepository interface {
	// Upsert returns the instance for (ExperimentRepoID, Commit), creating it if needed.
	// An existing row gets its note refreshed when record.Note is non-empty.
	// created reports whether a new row was inserted.
	Upsert(ctx context.Context, record *InstanceRecord) (instance *InstanceRecord, created bool, err error)

	GetByID(ctx context.Context, id string) (*InstanceRecord, error)

	// ListByExperimentRepo retrieves all instances of an experiment repo, newest first.
	ListByExperimentRepo(ctx context.Context, experimentRepoID string) ([]*InstanceRecord, error)

	// ListByOrdering retrieves the instances of a persisted ordering by position.
	ListByOrdering(ctx context.Context, orderingID string) ([]*InstanceRecord, error)

	// ListByBattery retrieves the battery's current instances, by stored order or,
	// when shuffle is set, in a fresh random order.
	ListByBattery(ctx context.Context, batteryID string, shuffle bool) ([]*InstanceRecord, error)
}

// InstanceRecord represents an experiment repo pinned at a commit.
type InstanceRecord struct {
	ID               string
	ExperimentRepoID string
	Commit           string
	CommitDate       string // Empty string means null
	Note             string
	CreatedAt        string
}

// BatteryRepository defines the secondary port for battery persistence.
type BatteryRepository interface {
	Create(ctx context.Context, battery *BatteryRecord) error
	GetByID(ctx context.Context, id string) (*BatteryRecord, error)
	List(ctx context.Context, filters BatteryFilters) ([]*BatteryRecord, error)
	// Update writes the editable text and flag fields of battery.
	Update(ctx context.Context, battery *BatteryRecord) error
	UpdateStatus(ctx context.Context, id, status string) error
	// HasChildren reports whether any battery references id as its template.
	HasChildren(ctx context.Context, id string) (bool, error)
	// Duplicate copies sourceID into a new battery with the given status and template,
	// cloning every battery experiment row. Returns the new battery ID.
	Duplicate(ctx context.Context, sourceID, status, templateID string) (string, error)
	GetNextID(ctx context.Context) (string, error)
}

// BatteryRecord represents a battery as stored in persistence.
type BatteryRecord struct {
	ID                    string
	Title                 string
	Status                string
	TemplateID            string // Empty string means null
	Consent               string
	Instructions          string
	Advertisement         string
	RandomOrder           bool
	Public                bool
	InterTaskBreakSeconds int
	CreatedAt             string
	UpdatedAt             string
}

// BatteryFilters contains filter options for querying batteries.
type BatteryFilters struct {
	Status     string
	TemplateID string
}

// BatteryExperimentRepository defines the secondary port for battery membership persistence.
type BatteryExperimentRepository interface {
	Create(ctx context.Context, record *BatteryExperimentRecord) error
	GetByID(ctx context.Context, id string) (*BatteryExperimentRecord, error)
	// ListByBattery retrieves a battery's rows by order.
	ListByBattery(ctx context.Context, batteryID string) ([]*BatteryExperimentRecord, error)
	// Place re-points a row at an instance and moves it to order.
	Place(ctx context.Context, id, instanceID string, order int) error
	SetUseLatest(ctx context.Context, id string, useLatest bool) error
	Delete(ctx context.Context, id string) error
	// ListUseLatestByOrigin retrieves use_latest rows whose instance belongs to the origin
	// and is not at commit.
	ListUseLatestByOrigin(ctx context.Context, originID, commit string) ([]*BatteryExperimentRecord, error)
	GetNextID(ctx context.Context) (string, error)
}

// BatteryExperimentRecord is one placement of an instance in a battery.
// ExperimentRepoID, ExperimentName and Commit are read-only, joined from the instance.
type BatteryExperimentRecord struct {
	ID               string
	BatteryID        string
	InstanceID       string
	Order            int
	UseLatest        bool
	ExperimentRepoID string
	ExperimentName   string
	Commit           string
}

// OrderingRepository defines the secondary port for persisted experiment orderings.
type OrderingRepository interface {
	// CreateWithItems atomically persists an ordering and its items, assigning IDs.
	// Returns the ordering ID.
	CreateWithItems(ctx context.Context, order *ExperimentOrderRecord, items []*OrderItemRecord) (string, error)
	GetByID(ctx context.Context, id string) (*ExperimentOrderRecord, error)
	ListByBattery(ctx context.Context, batteryID string) ([]*ExperimentOrderRecord, error)
	// ListItems retrieves an ordering's items by position.
	ListItems(ctx context.Context, orderingID string) ([]*OrderItemRecord, error)
}

// ExperimentOrderRecord represents a persisted ordering of a battery.
type ExperimentOrderRecord struct {
	ID            string
	Name          string
	BatteryID     string
	AutoGenerated bool
	CreatedAt     string
}

// OrderItemRecord is one position of an ordering.
type OrderItemRecord struct {
	ID                  string
	OrderingID          string
	BatteryExperimentID string
	Position            int
}

// SubjectRepository defines the secondary port for subject persistence.
type SubjectRepository interface {
	Create(ctx context.Context, subject *SubjectRecord) error
	GetByID(ctx context.Context, id string) (*SubjectRecord, error)
	// GetByUUID returns nil, nil when not found.
	GetByUUID(ctx context.Context, uuid string) (*SubjectRecord, error)
	List(ctx context.Context, filters SubjectFilters) ([]*SubjectRecord, error)
	SetActive(ctx context.Context, id string, active bool) error
	GetNextID(ctx context.Context) (string, error)
}

// SubjectRecord represents a study participant.
type SubjectRecord struct {
	ID         string
	Handle     string
	Email      string
	Notes      string
	UUID       string
	Active     bool
	ProlificID string // Empty string means null
	CreatedAt  string
}

// SubjectFilters contains filter options for querying subjects.
type SubjectFilters struct {
	Active *bool
	Tag    string
}

// AssignmentRepository defines the secondary port for assignment persistence.
type AssignmentRepository interface {
	// Create atomically persists the assignment and, when order is non-nil, its ordering
	// and items, assigning all IDs. Returns ErrDuplicateAssignment if the subject is
	// already assigned to the battery.
	Create(ctx context.Context, assignment *AssignmentRecord, order *ExperimentOrderRecord, items []*OrderItemRecord) error
	GetByID(ctx context.Context, id string) (*AssignmentRecord, error)
	List(ctx context.Context, filters AssignmentFilters) ([]*AssignmentRecord, error)
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error
	SetConsent(ctx context.Context, id string, accepted bool) error
}

// AssignmentRecord binds one subject to one battery.
type AssignmentRecord struct {
	ID              string
	SubjectID       string
	BatteryID       string
	Status          string
	StartedAt       string // Empty string means null
	CompletedAt     string // Empty string means null
	FailedAt        string // Empty string means null
	ConsentAccepted *bool
	Note            string
	OrderingID      string // Empty string means null
	GroupIndex      int
	CreatedAt       string
	UpdatedAt       string
}

// AssignmentFilters contains filter options for querying assignments.
type AssignmentFilters struct {
	SubjectID string
	BatteryID string
	Status    string
}

// ResultRepository defines the secondary port for result persistence.
type ResultRepository interface {
	Create(ctx context.Context, result *ResultRecord) error
	GetByID(ctx context.Context, id string) (*ResultRecord, error)
	List(ctx context.Context, filters ResultFilters) ([]*ResultRecord, error)
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error
	// ExemptInstanceIDs returns the distinct instance ids of the subject's completed or
	// failed results, across all assignments.
	ExemptInstanceIDs(ctx context.Context, subjectID string) ([]string, error)
	// CountByStatus counts an assignment's results per status.
	CountByStatus(ctx context.Context, assignmentID string) (map[string]int, error)
	// ExportRows retrieves results joined with experiment and subject names.
	ExportRows(ctx context.Context, filters ResultFilters) ([]*ResultExportRecord, error)
	GetNextID(ctx context.Context) (string, error)
}

// ResultRecord is one outcome for an (assignment, battery experiment, subject) triple.
type ResultRecord struct {
	ID                  string
	AssignmentID        string // Empty string means null
	BatteryExperimentID string // Empty string means null
	SubjectID           string // Empty string means null
	Status              string
	StartedAt           string
	CompletedAt         string
	FailedAt            string
	Data                string
	CreatedAt           string
	UpdatedAt           string
}

// ResultFilters contains filter options for querying results.
type ResultFilters struct {
	ID           string
	AssignmentID string
	SubjectID    string
	BatteryID    string
}

// ResultExportRecord is a result joined for export.
type ResultExportRecord struct {
	ResultID       string
	ExperimentName string
	SubjectHandle  string
	SubjectUUID    string
	Data           string
}
