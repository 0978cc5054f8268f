// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/expfactory/internal/ports/secondary"
)

// TagRepository implements secondary.TagRepository with SQLite.
type TagRepository struct {
	db *sql.DB
}

// NewTagRepository creates a new SQLite tag repository.
func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

// Create persists a new tag.
func (r *TagRepository) Create(ctx context.Context, tag *secondary.TagRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO tags (id, name, description) VALUES (?, ?, ?)",
		tag.ID, tag.Name, nullString(tag.Description),
	)
	if err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}

	return nil
}

// GetByID retrieves a tag by its ID.
func (r *TagRepository) GetByID(ctx context.Context, id string) (*secondary.TagRecord, error) {
	record, err := scanTag(r.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM tags WHERE id = ?", id,
	))
	if err != nil {
		return nil, notFound(err, "tag", id)
	}
	return record, nil
}

// GetByName retrieves a tag by its unique name.
func (r *TagRepository) GetByName(ctx context.Context, name string) (*secondary.TagRecord, error) {
	record, err := scanTag(r.db.QueryRowContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM tags WHERE name = ?", name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag by name: %w", err)
	}
	return record, nil
}

// List retrieves all tags ordered by name.
func (r *TagRepository) List(ctx context.Context) ([]*secondary.TagRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, description, created_at, updated_at FROM tags ORDER BY name ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	return collectTags(rows)
}

// Delete removes a tag and, through the foreign key, its entity links.
func (r *TagRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	return checkAffected(result, "tag", id)
}

// GetNextID returns the next available tag ID.
func (r *TagRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "tags", "TAG")
}

// AddEntityTag attaches a tag to an entity.
func (r *TagRepository) AddEntityTag(ctx context.Context, entityID, entityType, tagID string) error {
	id, err := nextID(ctx, r.db, "entity_tags", "ET")
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO entity_tags (id, entity_id, entity_type, tag_id) VALUES (?, ?, ?, ?)",
		id, entityID, entityType, tagID,
	)
	if err != nil {
		return fmt.Errorf("failed to tag %s %s: %w", entityType, entityID, err)
	}
	return nil
}

// RemoveEntityTag detaches a tag from an entity.
func (r *TagRepository) RemoveEntityTag(ctx context.Context, entityID, entityType, tagID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM entity_tags WHERE entity_id = ? AND entity_type = ? AND tag_id = ?",
		entityID, entityType, tagID,
	)
	if err != nil {
		return fmt.Errorf("failed to untag %s %s: %w", entityType, entityID, err)
	}
	return nil
}

// ListEntityTags retrieves the tags attached to an entity.
func (r *TagRepository) ListEntityTags(ctx context.Context, entityID, entityType string) ([]*secondary.TagRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.name, t.description, t.created_at, t.updated_at
		FROM tags t JOIN entity_tags et ON et.tag_id = t.id
		WHERE et.entity_id = ? AND et.entity_type = ?
		ORDER BY t.name ASC`,
		entityID, entityType,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list entity tags: %w", err)
	}
	defer rows.Close()

	return collectTags(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(row rowScanner) (*secondary.TagRecord, error) {
	var (
		description sql.NullString
		createdAt   time.Time
		updatedAt   time.Time
	)

	record := &secondary.TagRecord{}
	if err := row.Scan(&record.ID, &record.Name, &description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	record.Description = description.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

func collectTags(rows *sql.Rows) ([]*secondary.TagRecord, error) {
	var tags []*secondary.TagRecord
	for rows.Next() {
		record, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, record)
	}
	return tags, rows.Err()
}

// Ensure TagRepository implements the interface.
var _ secondary.TagRepository = (*TagRepository)(nil)
