package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/ports/secondary"
)

// TagServiceImpl implements the TagService interface.
type TagServiceImpl struct {
	tagRepo secondary.TagRepository
}

// NewTagService creates a new TagService with injected dependencies.
func NewTagService(tagRepo secondary.TagRepository) *TagServiceImpl {
	return &TagServiceImpl{
		tagRepo: tagRepo,
	}
}

// CreateTag creates a new tag.
func (s *TagServiceImpl) CreateTag(ctx context.Context, req primary.CreateTagRequest) (*primary.CreateTagResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("tag name cannot be empty")
	}

	existing, err := s.tagRepo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check tag name: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("tag %q already exists (%s)", name, existing.ID)
	}

	// Get next ID
	nextID, err := s.tagRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tag ID: %w", err)
	}

	// Create record
	record := &secondary.TagRecord{
		ID:          nextID,
		Name:        name,
		Description: req.Description,
	}

	if err := s.tagRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}

	// Fetch created tag
	created, err := s.tagRepo.GetByID(ctx, nextID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created tag: %w", err)
	}

	return &primary.CreateTagResponse{
		TagID: created.ID,
		Tag:   s.recordToTag(created),
	}, nil
}

// GetTag retrieves a tag by ID.
func (s *TagServiceImpl) GetTag(ctx context.Context, tagID string) (*primary.Tag, error) {
	record, err := s.tagRepo.GetByID(ctx, tagID)
	if err != nil {
		return nil, err
	}
	return s.recordToTag(record), nil
}

// GetTagByName retrieves a tag by name.
func (s *TagServiceImpl) GetTagByName(ctx context.Context, name string) (*primary.Tag, error) {
	record, err := s.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.recordToTag(record), nil
}

// ListTags retrieves all tags.
func (s *TagServiceImpl) ListTags(ctx context.Context) ([]*primary.Tag, error) {
	records, err := s.tagRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return s.recordsToTags(records), nil
}

// DeleteTag deletes a tag.
func (s *TagServiceImpl) DeleteTag(ctx context.Context, tagID string) error {
	return s.tagRepo.Delete(ctx, tagID)
}

// TagEntities attaches the named tag to every listed entity.
func (s *TagServiceImpl) TagEntities(ctx context.Context, entityType, tagName string, entityIDs []string) error {
	if err := validateEntityType(entityType); err != nil {
		return err
	}
	tag, err := s.lookup(ctx, tagName)
	if err != nil {
		return err
	}
	for _, id := range entityIDs {
		if err := s.tagRepo.AddEntityTag(ctx, id, entityType, tag.ID); err != nil {
			return fmt.Errorf("failed to tag %s %s: %w", entityType, id, err)
		}
	}
	return nil
}

// UntagEntity detaches the named tag from an entity.
func (s *TagServiceImpl) UntagEntity(ctx context.Context, entityType, entityID, tagName string) error {
	if err := validateEntityType(entityType); err != nil {
		return err
	}
	tag, err := s.lookup(ctx, tagName)
	if err != nil {
		return err
	}
	return s.tagRepo.RemoveEntityTag(ctx, entityID, entityType, tag.ID)
}

// ListEntityTags retrieves the tags attached to an entity.
func (s *TagServiceImpl) ListEntityTags(ctx context.Context, entityType, entityID string) ([]*primary.Tag, error) {
	if err := validateEntityType(entityType); err != nil {
		return nil, err
	}
	records, err := s.tagRepo.ListEntityTags(ctx, entityID, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return s.recordsToTags(records), nil
}

// Helper methods

func (s *TagServiceImpl) lookup(ctx context.Context, name string) (*secondary.TagRecord, error) {
	record, err := s.tagRepo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("tag %q not found", name)
	}
	return record, nil
}

func validateEntityType(entityType string) error {
	switch entityType {
	case secondary.EntityTypeExperimentRepo, secondary.EntityTypeSubject:
		return nil
	}
	return fmt.Errorf("cannot tag entity type %q", entityType)
}

func (s *TagServiceImpl) recordsToTags(records []*secondary.TagRecord) []*primary.Tag {
	tags := make([]*primary.Tag, len(records))
	for i, r := range records {
		tags[i] = s.recordToTag(r)
	}
	return tags
}

func (s *TagServiceImpl) recordToTag(r *secondary.TagRecord) *primary.Tag {
	return &primary.Tag{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// tagNames lists the names of the tags attached to an entity; used when presenting
// experiment repos and subjects.
func tagNames(ctx context.Context, tagRepo secondary.TagRepository, entityType, entityID string) ([]string, error) {
	if tagRepo == nil {
		return nil, nil
	}
	records, err := tagRepo.ListEntityTags(ctx, entityID, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Name
	}
	return names, nil
}

// Ensure TagServiceImpl implements the interface.
var _ primary.TagService = (*TagServiceImpl)(nil)
