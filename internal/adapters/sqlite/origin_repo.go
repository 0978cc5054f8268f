package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/expfactory/internal/ports/secondary"
)

// OriginRepository implements secondary.OriginRepository with SQLite.
type OriginRepository struct {
	db *sql.DB
}

// NewOriginRepository creates a new SQLite origin repository.
func NewOriginRepository(db *sql.DB) *OriginRepository {
	return &OriginRepository{db: db}
}

const originColumns = "id, url, path, name, active, created_at, updated_at"

// Create persists a new origin.
func (r *OriginRepository) Create(ctx context.Context, origin *secondary.OriginRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO repo_origins (id, url, path, name, active) VALUES (?, ?, ?, ?, 1)",
		origin.ID, origin.URL, origin.Path, origin.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to create origin: %w", err)
	}
	return nil
}

// GetByID retrieves an origin by its ID.
func (r *OriginRepository) GetByID(ctx context.Context, id string) (*secondary.OriginRecord, error) {
	record, err := scanOrigin(r.db.QueryRowContext(ctx,
		"SELECT "+originColumns+" FROM repo_origins WHERE id = ?", id,
	))
	if err != nil {
		return nil, notFound(err, "origin", id)
	}
	return record, nil
}

// FindExisting returns an origin that would collide with a new one.
func (r *OriginRepository) FindExisting(ctx context.Context, url, name, path string) (*secondary.OriginRecord, error) {
	record, err := scanOrigin(r.db.QueryRowContext(ctx,
		"SELECT "+originColumns+" FROM repo_origins WHERE url = ? OR (name = ? AND path = ?) OR name = ? OR path = ? LIMIT 1",
		url, name, path, name, path,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up origin: %w", err)
	}
	return record, nil
}

// List retrieves origins matching the given filters.
func (r *OriginRepository) List(ctx context.Context, filters secondary.OriginFilters) ([]*secondary.OriginRecord, error) {
	query := "SELECT " + originColumns + " FROM repo_origins WHERE 1=1"
	args := []any{}

	if filters.Active != nil {
		query += " AND active = ?"
		args = append(args, boolToInt(*filters.Active))
	}

	query += " ORDER BY name ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list origins: %w", err)
	}
	defer rows.Close()

	var origins []*secondary.OriginRecord
	for rows.Next() {
		record, err := scanOrigin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan origin: %w", err)
		}
		origins = append(origins, record)
	}
	return origins, rows.Err()
}

// SetActive archives or restores an origin.
func (r *OriginRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE repo_origins SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		boolToInt(active), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update origin: %w", err)
	}
	return checkAffected(result, "origin", id)
}

// Delete removes an origin.
func (r *OriginRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM repo_origins WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete origin: %w", err)
	}
	return checkAffected(result, "origin", id)
}

// GetNextID returns the next available origin ID.
func (r *OriginRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "repo_origins", "ORIG")
}

func scanOrigin(row rowScanner) (*secondary.OriginRecord, error) {
	var createdAt, updatedAt time.Time
	record := &secondary.OriginRecord{}
	if err := row.Scan(&record.ID, &record.URL, &record.Path, &record.Name, &record.Active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

var _ secondary.OriginRepository = (*OriginRepository)(nil)

// FrameworkRepository implements secondary.FrameworkRepository with SQLite.
type FrameworkRepository struct {
	db *sql.DB
}

// NewFrameworkRepository creates a new SQLite framework repository.
func NewFrameworkRepository(db *sql.DB) *FrameworkRepository {
	return &FrameworkRepository{db: db}
}

// Create persists a new framework.
func (r *FrameworkRepository) Create(ctx context.Context, framework *secondary.FrameworkRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO frameworks (id, name, template) VALUES (?, ?, ?)",
		framework.ID, framework.Name, framework.Template,
	)
	if err != nil {
		return fmt.Errorf("failed to create framework: %w", err)
	}
	return nil
}

// GetByID retrieves a framework by its ID.
func (r *FrameworkRepository) GetByID(ctx context.Context, id string) (*secondary.FrameworkRecord, error) {
	record, err := scanFramework(r.db.QueryRowContext(ctx,
		"SELECT id, name, template, created_at FROM frameworks WHERE id = ?", id,
	))
	if err != nil {
		return nil, notFound(err, "framework", id)
	}
	return record, nil
}

// GetByName retrieves a framework by name.
func (r *FrameworkRepository) GetByName(ctx context.Context, name string) (*secondary.FrameworkRecord, error) {
	record, err := scanFramework(r.db.QueryRowContext(ctx,
		"SELECT id, name, template, created_at FROM frameworks WHERE name = ?", name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get framework by name: %w", err)
	}
	return record, nil
}

// List retrieves all frameworks ordered by name.
func (r *FrameworkRepository) List(ctx context.Context) ([]*secondary.FrameworkRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, template, created_at FROM frameworks ORDER BY name ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list frameworks: %w", err)
	}
	defer rows.Close()

	var frameworks []*secondary.FrameworkRecord
	for rows.Next() {
		record, err := scanFramework(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan framework: %w", err)
		}
		frameworks = append(frameworks, record)
	}
	return frameworks, rows.Err()
}

// GetNextID returns the next available framework ID.
func (r *FrameworkRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "frameworks", "FRMW")
}

func scanFramework(row rowScanner) (*secondary.FrameworkRecord, error) {
	var createdAt time.Time
	record := &secondary.FrameworkRecord{}
	if err := row.Scan(&record.ID, &record.Name, &record.Template, &createdAt); err != nil {
		return nil, err
	}
	record.CreatedAt = createdAt.Format(time.RFC3339)
	return record, nil
}

var _ secondary.FrameworkRepository = (*FrameworkRepository)(nil)
