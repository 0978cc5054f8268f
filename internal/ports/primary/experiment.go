package primary

import "context"

// ExperimentService defines the primary port for experiment repos, their instances
// and frameworks.
type ExperimentService interface {
	// CreateExperimentRepo registers an experiment located inside an origin.
	CreateExperimentRepo(ctx context.Context, req CreateExperimentRepoRequest) (*CreateExperimentRepoResponse, error)

	// GetExperimentRepo retrieves an experiment repo by ID.
	GetExperimentRepo(ctx context.Context, experimentRepoID string) (*ExperimentRepo, error)

	// ListExperimentRepos lists experiment repos with optional filters.
	ListExperimentRepos(ctx context.Context, filters ExperimentRepoFilters) ([]*ExperimentRepo, error)

	// UpdateExperimentRepo updates the non-empty fields of an experiment repo.
	UpdateExperimentRepo(ctx context.Context, req UpdateExperimentRepoRequest) error

	// SetExperimentRepoActive activates or deactivates an experiment repo.
	SetExperimentRepoActive(ctx context.Context, experimentRepoID string, active bool) error

	// UpsertInstance resolves a commit ("latest" or a sha) and returns the instance for it,
	// creating it when needed.
	UpsertInstance(ctx context.Context, req UpsertInstanceRequest) (*ExperimentInstance, error)

	// ListInstances lists the instances of an experiment repo, newest first.
	ListInstances(ctx context.Context, experimentRepoID string) ([]*ExperimentInstance, error)

	// DeployInstance checks the instance commit out into the deployment directory.
	DeployInstance(ctx context.Context, instanceID string) (*DeployInstanceResponse, error)

	// CreateFramework registers an experiment framework.
	CreateFramework(ctx context.Context, req CreateFrameworkRequest) (*Framework, error)

	// ListFrameworks lists all frameworks.
	ListFrameworks(ctx context.Context) ([]*Framework, error)
}

// CreateExperimentRepoRequest contains parameters for creating an experiment repo.
type CreateExperimentRepoRequest struct {
	Name        string
	OriginID    string
	Branch      string
	Location    string // Defaults to <origin path>/<name>
	FrameworkID string
	CogatID     string
}

// CreateExperimentRepoResponse contains the result of creating an experiment repo.
type CreateExperimentRepoResponse struct {
	ExperimentRepoID string
	ExperimentRepo   *ExperimentRepo
}

// UpdateExperimentRepoRequest contains parameters for updating an experiment repo.
type UpdateExperimentRepoRequest struct {
	ExperimentRepoID string
	Name             string
	Branch           string
	Location         string
	FrameworkID      string
	CogatID          string
}

// ExperimentRepo represents an experiment repo at the port boundary.
type ExperimentRepo struct {
	ID          string
	Name        string
	OriginID    string
	Branch      string
	Location    string
	FrameworkID string
	Active      bool
	CogatID     string
	URL         string // Empty when the origin is missing
	Tags        []string
	CreatedAt   string
	UpdatedAt   string
}

// ExperimentRepoFilters contains filter options for listing experiment repos.
type ExperimentRepoFilters struct {
	OriginID string
	Active   *bool
	Tag      string
}

// UpsertInstanceRequest contains parameters for resolving an instance.
type UpsertInstanceRequest struct {
	ExperimentRepoID string
	Commit           string // "latest", empty, or a sha
	Note             string
}

// ExperimentInstance represents an experiment repo pinned at a commit.
type ExperimentInstance struct {
	ID               string
	ExperimentRepoID string
	Commit           string
	CommitDate       string
	Note             string
	RemoteURL        string
	CreatedAt        string
}

// DeployInstanceResponse reports where an instance was checked out.
type DeployInstanceResponse struct {
	Path            string
	AlreadyDeployed bool
}

// CreateFrameworkRequest contains parameters for creating a framework.
type CreateFrameworkRequest struct {
	Name     string
	Template string
}

// Framework represents an experiment framework at the port boundary.
type Framework struct {
	ID        string
	Name      string
	Template  string
	CreatedAt string
}
