package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/expfactory/internal/ports/secondary"
)

// ExperimentRepoRepository implements secondary.ExperimentRepoRepository with SQLite.
type ExperimentRepoRepository struct {
	db *sql.DB
}

// NewExperimentRepoRepository creates a new SQLite experiment repo repository.
func NewExperimentRepoRepository(db *sql.DB) *ExperimentRepoRepository {
	return &ExperimentRepoRepository{db: db}
}

const experimentRepoColumns = "e.id, e.name, e.origin_id, e.branch, e.location, e.framework_id, e.active, e.cogat_id, e.created_at, e.updated_at"

// Create persists a new experiment repo.
func (r *ExperimentRepoRepository) Create(ctx context.Context, repo *secondary.ExperimentRepoRecord) error {
	branch := repo.Branch
	if branch == "" {
		branch = "master"
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO experiment_repos (id, name, origin_id, branch, location, framework_id, active, cogat_id) VALUES (?, ?, ?, ?, ?, ?, 1, ?)",
		repo.ID, repo.Name, nullString(repo.OriginID), branch, repo.Location, nullString(repo.FrameworkID), repo.CogatID,
	)
	if err != nil {
		return fmt.Errorf("failed to create experiment repo: %w", err)
	}
	return nil
}

// GetByID retrieves an experiment repo by its ID.
func (r *ExperimentRepoRepository) GetByID(ctx context.Context, id string) (*secondary.ExperimentRepoRecord, error) {
	record, err := scanExperimentRepo(r.db.QueryRowContext(ctx,
		"SELECT "+experimentRepoColumns+" FROM experiment_repos e WHERE e.id = ?", id,
	))
	if err != nil {
		return nil, notFound(err, "experiment repo", id)
	}
	return record, nil
}

// List retrieves experiment repos matching the given filters.
func (r *ExperimentRepoRepository) List(ctx context.Context, filters secondary.ExperimentRepoFilters) ([]*secondary.ExperimentRepoRecord, error) {
	query := "SELECT " + experimentRepoColumns + " FROM experiment_repos e WHERE 1=1"
	args := []any{}

	if filters.OriginID != "" {
		query += " AND e.origin_id = ?"
		args = append(args, filters.OriginID)
	}

	if filters.Active != nil {
		query += " AND e.active = ?"
		args = append(args, boolToInt(*filters.Active))
	}

	if filters.Tag != "" {
		query += ` AND EXISTS (SELECT 1 FROM entity_tags et JOIN tags t ON t.id = et.tag_id
			WHERE et.entity_type = 'experiment_repo' AND et.entity_id = e.id AND t.name = ?)`
		args = append(args, filters.Tag)
	}

	query += " ORDER BY e.name ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiment repos: %w", err)
	}
	defer rows.Close()

	var repos []*secondary.ExperimentRepoRecord
	for rows.Next() {
		record, err := scanExperimentRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment repo: %w", err)
		}
		repos = append(repos, record)
	}
	return repos, rows.Err()
}

// Update updates an existing experiment repo.
func (r *ExperimentRepoRepository) Update(ctx context.Context, repo *secondary.ExperimentRepoRecord) error {
	query := "UPDATE experiment_repos SET updated_at = CURRENT_TIMESTAMP"
	args := []any{}

	if repo.Name != "" {
		query += ", name = ?"
		args = append(args, repo.Name)
	}
	if repo.Branch != "" {
		query += ", branch = ?"
		args = append(args, repo.Branch)
	}
	if repo.Location != "" {
		query += ", location = ?"
		args = append(args, repo.Location)
	}
	if repo.FrameworkID != "" {
		query += ", framework_id = ?"
		args = append(args, repo.FrameworkID)
	}
	if repo.CogatID != "" {
		query += ", cogat_id = ?"
		args = append(args, repo.CogatID)
	}

	query += " WHERE id = ?"
	args = append(args, repo.ID)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update experiment repo: %w", err)
	}
	return checkAffected(result, "experiment repo", repo.ID)
}

// SetActive activates or deactivates an experiment repo.
func (r *ExperimentRepoRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE experiment_repos SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		boolToInt(active), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update experiment repo: %w", err)
	}
	return checkAffected(result, "experiment repo", id)
}

// GetNextID returns the next available experiment repo ID.
func (r *ExperimentRepoRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "experiment_repos", "EXP")
}

func scanExperimentRepo(row rowScanner) (*secondary.ExperimentRepoRecord, error) {
	var (
		originID    sql.NullString
		frameworkID sql.NullString
		createdAt   time.Time
		updatedAt   time.Time
	)

	record := &secondary.ExperimentRepoRecord{}
	err := row.Scan(&record.ID, &record.Name, &originID, &record.Branch, &record.Location,
		&frameworkID, &record.Active, &record.CogatID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.OriginID = originID.String
	record.FrameworkID = frameworkID.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

var _ secondary.ExperimentRepoRepository = (*ExperimentRepoRepository)(nil)

// InstanceRepository implements secondary.InstanceRepository with SQLite.
type InstanceRepository struct {
	db *sql.DB
}

// NewInstanceRepository creates a new SQLite experiment instance repository.
func NewInstanceRepository(db *sql.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

const instanceColumns = "i.id, i.experiment_repo_id, i.commit_sha, i.commit_date, i.note, i.created_at"

// Upsert returns the instance for (experiment repo, commit), inserting it when missing.
func (r *InstanceRepository) Upsert(ctx context.Context, record *secondary.InstanceRecord) (*secondary.InstanceRecord, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanInstance(tx.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM experiment_instances i WHERE i.experiment_repo_id = ? AND i.commit_sha = ?",
		record.ExperimentRepoID, record.Commit,
	))
	switch {
	case err == nil:
		if record.Note != "" && record.Note != existing.Note {
			if _, err := tx.ExecContext(ctx, "UPDATE experiment_instances SET note = ? WHERE id = ?", record.Note, existing.ID); err != nil {
				return nil, false, fmt.Errorf("failed to update instance note: %w", err)
			}
			existing.Note = record.Note
		}
		if existing.CommitDate == "" && record.CommitDate != "" {
			if _, err := tx.ExecContext(ctx, "UPDATE experiment_instances SET commit_date = ? WHERE id = ?", nullTimeString(record.CommitDate), existing.ID); err != nil {
				return nil, false, fmt.Errorf("failed to update instance commit date: %w", err)
			}
			existing.CommitDate = record.CommitDate
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit instance: %w", err)
		}
		return existing, false, nil
	case err != sql.ErrNoRows:
		return nil, false, fmt.Errorf("failed to look up instance: %w", err)
	}

	id, err := nextID(ctx, tx, "experiment_instances", "INST")
	if err != nil {
		return nil, false, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO experiment_instances (id, experiment_repo_id, commit_sha, commit_date, note) VALUES (?, ?, ?, ?, ?)",
		id, record.ExperimentRepoID, record.Commit, nullTimeString(record.CommitDate), record.Note,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create instance: %w", err)
	}

	created, err := scanInstance(tx.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM experiment_instances i WHERE i.id = ?", id,
	))
	if err != nil {
		return nil, false, notFound(err, "instance", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit instance: %w", err)
	}
	return created, true, nil
}

// GetByID retrieves an instance by its ID.
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*secondary.InstanceRecord, error) {
	record, err := scanInstance(r.db.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM experiment_instances i WHERE i.id = ?", id,
	))
	if err != nil {
		return nil, notFound(err, "instance", id)
	}
	return record, nil
}

// ListByExperimentRepo retrieves all instances of an experiment repo, newest first.
func (r *InstanceRepository) ListByExperimentRepo(ctx context.Context, experimentRepoID string) ([]*secondary.InstanceRecord, error) {
	return r.query(ctx,
		"SELECT "+instanceColumns+" FROM experiment_instances i WHERE i.experiment_repo_id = ? ORDER BY i.created_at DESC, i.id DESC",
		experimentRepoID,
	)
}

// ListByOrdering retrieves the instances of an ordering by position.
func (r *InstanceRepository) ListByOrdering(ctx context.Context, orderingID string) ([]*secondary.InstanceRecord, error) {
	return r.query(ctx,
		`SELECT `+instanceColumns+`
		FROM experiment_order_items oi
		JOIN battery_experiments be ON be.id = oi.battery_experiment_id
		JOIN experiment_instances i ON i.id = be.experiment_instance_id
		WHERE oi.experiment_order_id = ?
		ORDER BY oi.position ASC`,
		orderingID,
	)
}

// ListByBattery retrieves the battery's current instances.
func (r *InstanceRepository) ListByBattery(ctx context.Context, batteryID string, shuffle bool) ([]*secondary.InstanceRecord, error) {
	order := "be.exp_order ASC, be.id ASC"
	if shuffle {
		order = "RANDOM()"
	}
	return r.query(ctx,
		`SELECT `+instanceColumns+`
		FROM battery_experiments be
		JOIN experiment_instances i ON i.id = be.experiment_instance_id
		WHERE be.battery_id = ?
		ORDER BY `+order,
		batteryID,
	)
}

func (r *InstanceRepository) query(ctx context.Context, query string, args ...any) ([]*secondary.InstanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*secondary.InstanceRecord
	for rows.Next() {
		record, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, record)
	}
	return instances, rows.Err()
}

func scanInstance(row rowScanner) (*secondary.InstanceRecord, error) {
	var (
		commitDate sql.NullTime
		createdAt  time.Time
	)

	record := &secondary.InstanceRecord{}
	if err := row.Scan(&record.ID, &record.ExperimentRepoID, &record.Commit, &commitDate, &record.Note, &createdAt); err != nil {
		return nil, err
	}
	record.CommitDate = formatNullTime(commitDate)
	record.CreatedAt = createdAt.Format(time.RFC3339)
	return record, nil
}

var _ secondary.InstanceRepository = (*InstanceRepository)(nil)
