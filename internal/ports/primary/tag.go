// Package primary defines the primary ports (driving adapters) for the application.
package primary

import "context"

// TagService defines the primary port for tag operations.
type TagService interface {
	// CreateTag creates a new tag.
	CreateTag(ctx context.Context, req CreateTagRequest) (*CreateTagResponse, error)

	// GetTag retrieves a tag by ID.
	GetTag(ctx context.Context, tagID string) (*Tag, error)

	// GetTagByName retrieves a tag by name.
	GetTagByName(ctx context.Context, name string) (*Tag, error)

	// ListTags retrieves all tags.
	ListTags(ctx context.Context) ([]*Tag, error)

	// DeleteTag deletes a tag and detaches it everywhere.
	DeleteTag(ctx context.Context, tagID string) error

	// TagEntities attaches the named tag to every listed entity of entityType.
	TagEntities(ctx context.Context, entityType, tagName string, entityIDs []string) error

	// UntagEntity detaches the named tag from an entity.
	UntagEntity(ctx context.Context, entityType, entityID, tagName string) error

	// ListEntityTags retrieves the tags attached to an entity.
	ListEntityTags(ctx context.Context, entityType, entityID string) ([]*Tag, error)
}

// CreateTagRequest contains parameters for creating a tag.
type CreateTagRequest struct {
	Name        string
	Description string
}

// CreateTagResponse contains the result of creating a tag.
type CreateTagResponse struct {
	TagID string
	Tag   *Tag
}

// Tag represents a tag entity at the port boundary.
type Tag struct {
	ID          string
	Name        string
	Description string
	CreatedAt   string
	UpdatedAt   string
}

// Taggable entity types.
const (
	TagEntityExperiment = "experiment_repo"
	TagEntitySubject    = "subject"
)
