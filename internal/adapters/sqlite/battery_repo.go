package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/expfactory/internal/ports/secondary"
)

// BatteryRepository implements secondary.BatteryRepository with SQLite.
type BatteryRepository struct {
	db *sql.DB
}

// NewBatteryRepository creates a new SQLite battery repository.
func NewBatteryRepository(db *sql.DB) *BatteryRepository {
	return &BatteryRepository{db: db}
}

const batteryColumns = "id, title, status, template_id, consent, instructions, advertisement, random_order, public, inter_task_break_seconds, created_at, updated_at"

// Create persists a new battery.
func (r *BatteryRepository) Create(ctx context.Context, battery *secondary.BatteryRecord) error {
	status := battery.Status
	if status == "" {
		status = "template"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO batteries (id, title, status, template_id, consent, instructions, advertisement, random_order, public, inter_task_break_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		battery.ID, battery.Title, status, nullString(battery.TemplateID),
		battery.Consent, battery.Instructions, battery.Advertisement,
		boolToInt(battery.RandomOrder), boolToInt(battery.Public), battery.InterTaskBreakSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to create battery: %w", err)
	}
	return nil
}

// GetByID retrieves a battery by its ID.
func (r *BatteryRepository) GetByID(ctx context.Context, id string) (*secondary.BatteryRecord, error) {
	record, err := scanBattery(r.db.QueryRowContext(ctx,
		"SELECT "+batteryColumns+" FROM batteries WHERE id = ?", id,
	))
	if err != nil {
		return nil, notFound(err, "battery", id)
	}
	return record, nil
}

// List retrieves batteries matching the given filters.
func (r *BatteryRepository) List(ctx context.Context, filters secondary.BatteryFilters) ([]*secondary.BatteryRecord, error) {
	query := "SELECT " + batteryColumns + " FROM batteries WHERE 1=1"
	args := []any{}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	if filters.TemplateID != "" {
		query += " AND template_id = ?"
		args = append(args, filters.TemplateID)
	}

	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list batteries: %w", err)
	}
	defer rows.Close()

	var batteries []*secondary.BatteryRecord
	for rows.Next() {
		record, err := scanBattery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan battery: %w", err)
		}
		batteries = append(batteries, record)
	}
	return batteries, rows.Err()
}

// Update writes the editable fields of a battery.
func (r *BatteryRepository) Update(ctx context.Context, battery *secondary.BatteryRecord) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE batteries SET title = ?, consent = ?, instructions = ?, advertisement = ?,
		random_order = ?, public = ?, inter_task_break_seconds = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		battery.Title, battery.Consent, battery.Instructions, battery.Advertisement,
		boolToInt(battery.RandomOrder), boolToInt(battery.Public), battery.InterTaskBreakSeconds,
		battery.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update battery: %w", err)
	}
	return checkAffected(result, "battery", battery.ID)
}

// UpdateStatus updates the status of a battery.
func (r *BatteryRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE batteries SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update battery status: %w", err)
	}
	return checkAffected(result, "battery", id)
}

// HasChildren checks whether any battery was duplicated from id.
func (r *BatteryRepository) HasChildren(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM batteries WHERE template_id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check battery children: %w", err)
	}
	return count > 0, nil
}

// Duplicate copies a battery and its experiment rows in one transaction.
func (r *BatteryRepository) Duplicate(ctx context.Context, sourceID, status, templateID string) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := nextID(ctx, tx, "batteries", "BATT")
	if err != nil {
		return "", err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO batteries (id, title, status, template_id, consent, instructions, advertisement, random_order, public, inter_task_break_seconds)
		SELECT ?, title, ?, ?, consent, instructions, advertisement, random_order, public, inter_task_break_seconds
		FROM batteries WHERE id = ?`,
		id, status, nullString(templateID), sourceID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to duplicate battery: %w", err)
	}
	if err := checkAffected(result, "battery", sourceID); err != nil {
		return "", err
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT experiment_instance_id, exp_order, use_latest FROM battery_experiments WHERE battery_id = ? ORDER BY exp_order ASC, id ASC",
		sourceID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to read battery experiments: %w", err)
	}

	type slot struct {
		instanceID string
		order      int
		useLatest  bool
	}
	var slots []slot
	for rows.Next() {
		var s slot
		if err := rows.Scan(&s.instanceID, &s.order, &s.useLatest); err != nil {
			rows.Close()
			return "", fmt.Errorf("failed to scan battery experiment: %w", err)
		}
		slots = append(slots, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to read battery experiments: %w", err)
	}

	for _, s := range slots {
		beID, err := nextID(ctx, tx, "battery_experiments", "BEXP")
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO battery_experiments (id, battery_id, experiment_instance_id, exp_order, use_latest) VALUES (?, ?, ?, ?, ?)",
			beID, id, s.instanceID, s.order, boolToInt(s.useLatest),
		)
		if err != nil {
			return "", fmt.Errorf("failed to copy battery experiment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit duplicate: %w", err)
	}
	return id, nil
}

// GetNextID returns the next available battery ID.
func (r *BatteryRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "batteries", "BATT")
}

func scanBattery(row rowScanner) (*secondary.BatteryRecord, error) {
	var (
		templateID sql.NullString
		createdAt  time.Time
		updatedAt  time.Time
	)

	record := &secondary.BatteryRecord{}
	err := row.Scan(&record.ID, &record.Title, &record.Status, &templateID,
		&record.Consent, &record.Instructions, &record.Advertisement,
		&record.RandomOrder, &record.Public, &record.InterTaskBreakSeconds,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.TemplateID = templateID.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

var _ secondary.BatteryRepository = (*BatteryRepository)(nil)

// BatteryExperimentRepository implements secondary.BatteryExperimentRepository with SQLite.
type BatteryExperimentRepository struct {
	db *sql.DB
}

// NewBatteryExperimentRepository creates a new SQLite battery experiment repository.
func NewBatteryExperimentRepository(db *sql.DB) *BatteryExperimentRepository {
	return &BatteryExperimentRepository{db: db}
}

const batteryExperimentSelect = `SELECT be.id, be.battery_id, be.experiment_instance_id, be.exp_order, be.use_latest,
	i.experiment_repo_id, e.name, i.commit_sha
	FROM battery_experiments be
	JOIN experiment_instances i ON i.id = be.experiment_instance_id
	JOIN experiment_repos e ON e.id = i.experiment_repo_id`

// Create persists a new battery experiment row.
func (r *BatteryExperimentRepository) Create(ctx context.Context, record *secondary.BatteryExperimentRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO battery_experiments (id, battery_id, experiment_instance_id, exp_order, use_latest) VALUES (?, ?, ?, ?, ?)",
		record.ID, record.BatteryID, record.InstanceID, record.Order, boolToInt(record.UseLatest),
	)
	if err != nil {
		return fmt.Errorf("failed to create battery experiment: %w", err)
	}
	return nil
}

// GetByID retrieves a battery experiment row by its ID.
func (r *BatteryExperimentRepository) GetByID(ctx context.Context, id string) (*secondary.BatteryExperimentRecord, error) {
	record, err := scanBatteryExperiment(r.db.QueryRowContext(ctx, batteryExperimentSelect+" WHERE be.id = ?", id))
	if err != nil {
		return nil, notFound(err, "battery experiment", id)
	}
	return record, nil
}

// ListByBattery retrieves a battery's rows by order.
func (r *BatteryExperimentRepository) ListByBattery(ctx context.Context, batteryID string) ([]*secondary.BatteryExperimentRecord, error) {
	return r.query(ctx, batteryExperimentSelect+" WHERE be.battery_id = ? ORDER BY be.exp_order ASC, be.id ASC", batteryID)
}

// Place re-points a row at an instance and moves it.
func (r *BatteryExperimentRepository) Place(ctx context.Context, id, instanceID string, order int) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE battery_experiments SET experiment_instance_id = ?, exp_order = ? WHERE id = ?",
		instanceID, order, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update battery experiment: %w", err)
	}
	return checkAffected(result, "battery experiment", id)
}

// SetUseLatest toggles whether the row follows its origin's head.
func (r *BatteryExperimentRepository) SetUseLatest(ctx context.Context, id string, useLatest bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE battery_experiments SET use_latest = ? WHERE id = ?",
		boolToInt(useLatest), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update battery experiment: %w", err)
	}
	return checkAffected(result, "battery experiment", id)
}

// Delete removes a battery experiment row.
func (r *BatteryExperimentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM battery_experiments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete battery experiment: %w", err)
	}
	return checkAffected(result, "battery experiment", id)
}

// ListUseLatestByOrigin retrieves use_latest rows of the origin that are behind commit.
func (r *BatteryExperimentRepository) ListUseLatestByOrigin(ctx context.Context, originID, commit string) ([]*secondary.BatteryExperimentRecord, error) {
	return r.query(ctx,
		batteryExperimentSelect+" WHERE be.use_latest = 1 AND e.origin_id = ? AND i.commit_sha != ? ORDER BY be.id ASC",
		originID, commit,
	)
}

// GetNextID returns the next available battery experiment ID.
func (r *BatteryExperimentRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "battery_experiments", "BEXP")
}

func (r *BatteryExperimentRepository) query(ctx context.Context, query string, args ...any) ([]*secondary.BatteryExperimentRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list battery experiments: %w", err)
	}
	defer rows.Close()

	var records []*secondary.BatteryExperimentRecord
	for rows.Next() {
		record, err := scanBatteryExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan battery experiment: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanBatteryExperiment(row rowScanner) (*secondary.BatteryExperimentRecord, error) {
	record := &secondary.BatteryExperimentRecord{}
	err := row.Scan(&record.ID, &record.BatteryID, &record.InstanceID, &record.Order, &record.UseLatest,
		&record.ExperimentRepoID, &record.ExperimentName, &record.Commit)
	if err != nil {
		return nil, err
	}
	return record, nil
}

var _ secondary.BatteryExperimentRepository = (*BatteryExperimentRepository)(nil)
