package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/expfactory/internal/ports/secondary"
)

// ResultRepository implements secondary.ResultRepository with SQLite.
type ResultRepository struct {
	db *sql.DB
}

// NewResultRepository creates a new SQLite result repository.
func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = "r.id, r.assignment_id, r.battery_experiment_id, r.subject_id, r.status, r.started_at, r.completed_at, r.failed_at, r.data, r.created_at, r.updated_at"

// Create persists a new result.
func (r *ResultRepository) Create(ctx context.Context, result *secondary.ResultRecord) error {
	status := result.Status
	if status == "" {
		status = "not-started"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO results (id, assignment_id, battery_experiment_id, subject_id, status, started_at, completed_at, failed_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, nullString(result.AssignmentID), nullString(result.BatteryExperimentID), nullString(result.SubjectID),
		status, nullTimeString(result.StartedAt), nullTimeString(result.CompletedAt), nullTimeString(result.FailedAt),
		result.Data,
	)
	if err != nil {
		return fmt.Errorf("failed to create result: %w", err)
	}
	return nil
}

// GetByID retrieves a result by its ID.
func (r *ResultRepository) GetByID(ctx context.Context, id string) (*secondary.ResultRecord, error) {
	record, err := scanResult(r.db.QueryRowContext(ctx,
		"SELECT "+resultColumns+" FROM results r WHERE r.id = ?", id,
	))
	if err != nil {
		return nil, notFound(err, "result", id)
	}
	return record, nil
}

// resultWhere appends filter clauses over the results table aliased r.
func resultWhere(query string, filters secondary.ResultFilters) (string, []any) {
	args := []any{}
	if filters.ID != "" {
		query += " AND r.id = ?"
		args = append(args, filters.ID)
	}
	if filters.AssignmentID != "" {
		query += " AND r.assignment_id = ?"
		args = append(args, filters.AssignmentID)
	}
	if filters.SubjectID != "" {
		query += " AND r.subject_id = ?"
		args = append(args, filters.SubjectID)
	}
	if filters.BatteryID != "" {
		query += " AND r.battery_experiment_id IN (SELECT id FROM battery_experiments WHERE battery_id = ?)"
		args = append(args, filters.BatteryID)
	}
	return query, args
}

// List retrieves results matching the given filters.
func (r *ResultRepository) List(ctx context.Context, filters secondary.ResultFilters) ([]*secondary.ResultRecord, error) {
	query, args := resultWhere("SELECT "+resultColumns+" FROM results r WHERE 1=1", filters)
	query += " ORDER BY r.id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var results []*secondary.ResultRecord
	for rows.Next() {
		record, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, record)
	}
	return results, rows.Err()
}

// UpdateStatus writes a status change and its timestamps in one statement.
func (r *ResultRepository) UpdateStatus(ctx context.Context, id string, update secondary.StatusUpdate) error {
	query, args := statusUpdateSQL("results", id, update)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update result status: %w", err)
	}
	return checkAffected(result, "result", id)
}

// ExemptInstanceIDs returns the instances the subject has completed or failed.
func (r *ResultRepository) ExemptInstanceIDs(ctx context.Context, subjectID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT be.experiment_instance_id
		FROM results r JOIN battery_experiments be ON be.id = r.battery_experiment_id
		WHERE r.subject_id = ? AND r.status IN ('completed', 'failed')
		ORDER BY be.experiment_instance_id`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exempt instances: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan exempt instance: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountByStatus counts an assignment's results per status.
func (r *ResultRepository) CountByStatus(ctx context.Context, assignmentID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM results WHERE assignment_id = ? GROUP BY status",
		assignmentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan result count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// ExportRows retrieves results joined with their experiment and subject.
func (r *ResultRepository) ExportRows(ctx context.Context, filters secondary.ResultFilters) ([]*secondary.ResultExportRecord, error) {
	query, args := resultWhere(
		`SELECT r.id, COALESCE(e.name, ''), COALESCE(s.handle, ''), COALESCE(s.uuid, ''), r.data
		FROM results r
		LEFT JOIN battery_experiments be ON be.id = r.battery_experiment_id
		LEFT JOIN experiment_instances i ON i.id = be.experiment_instance_id
		LEFT JOIN experiment_repos e ON e.id = i.experiment_repo_id
		LEFT JOIN subjects s ON s.id = r.subject_id
		WHERE 1=1`, filters)
	query += " ORDER BY r.id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to export results: %w", err)
	}
	defer rows.Close()

	var records []*secondary.ResultExportRecord
	for rows.Next() {
		record := &secondary.ResultExportRecord{}
		if err := rows.Scan(&record.ResultID, &record.ExperimentName, &record.SubjectHandle, &record.SubjectUUID, &record.Data); err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetNextID returns the next available result ID.
func (r *ResultRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "results", "RES")
}

func scanResult(row rowScanner) (*secondary.ResultRecord, error) {
	var (
		assignmentID        sql.NullString
		batteryExperimentID sql.NullString
		subjectID           sql.NullString
		startedAt           sql.NullTime
		completedAt         sql.NullTime
		failedAt            sql.NullTime
		createdAt           time.Time
		updatedAt           time.Time
	)

	record := &secondary.ResultRecord{}
	err := row.Scan(&record.ID, &assignmentID, &batteryExperimentID, &subjectID, &record.Status,
		&startedAt, &completedAt, &failedAt, &record.Data, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.AssignmentID = assignmentID.String
	record.BatteryExperimentID = batteryExperimentID.String
	record.SubjectID = subjectID.String
	record.StartedAt = formatNullTime(startedAt)
	record.CompletedAt = formatNullTime(completedAt)
	record.FailedAt = formatNullTime(failedAt)
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

var _ secondary.ResultRepository = (*ResultRepository)(nil)
