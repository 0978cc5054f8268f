package primary

import "context"

// OriginService defines the primary port for repo origin operations.
type OriginService interface {
	// CreateOrigin registers a git repository and clones it under the repo directory.
	CreateOrigin(ctx context.Context, req CreateOriginRequest) (*CreateOriginResponse, error)

	// GetOrigin retrieves an origin by ID.
	GetOrigin(ctx context.Context, originID string) (*Origin, error)

	// ListOrigins lists origins with optional filters.
	ListOrigins(ctx context.Context, filters OriginFilters) ([]*Origin, error)

	// PullOrigin pulls the origin and moves every use-latest battery slot of its
	// experiments to the new head.
	PullOrigin(ctx context.Context, originID string) (*PullOriginResponse, error)

	// ArchiveOrigin marks an origin inactive.
	ArchiveOrigin(ctx context.Context, originID string) error

	// RestoreOrigin re-activates an archived origin.
	RestoreOrigin(ctx context.Context, originID string) error

	// DeleteOrigin hard-deletes an archived origin. Its experiment repos remain without origin.
	DeleteOrigin(ctx context.Context, originID string) error
}

// CreateOriginRequest contains parameters for registering an origin.
type CreateOriginRequest struct {
	URL string
	// SkipClone records the origin without cloning (the path must already hold a clone).
	SkipClone bool
}

// CreateOriginResponse contains the result of registering an origin.
type CreateOriginResponse struct {
	OriginID string
	Origin   *Origin
}

// PullOriginResponse reports the head after a pull and the battery slots moved to it.
type PullOriginResponse struct {
	Commit    string
	Repointed []string // battery experiment IDs
}

// Origin represents a repo origin at the port boundary.
type Origin struct {
	ID         string
	URL        string
	DisplayURL string
	Path       string
	Name       string
	Active     bool
	CreatedAt  string
	UpdatedAt  string
}

// OriginFilters contains filter options for listing origins.
type OriginFilters struct {
	Active *bool
}
