package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/example/expfactory/internal/ports/secondary"
)

// OrderingRepository implements secondary.OrderingRepository with SQLite.
type OrderingRepository struct {
	db *sql.DB
}

// NewOrderingRepository creates a new SQLite ordering repository.
func NewOrderingRepository(db *sql.DB) *OrderingRepository {
	return &OrderingRepository{db: db}
}

// CreateWithItems persists an ordering and its items in one transaction.
func (r *OrderingRepository) CreateWithItems(ctx context.Context, order *secondary.ExperimentOrderRecord, items []*secondary.OrderItemRecord) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertOrdering(ctx, tx, order, items); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit ordering: %w", err)
	}
	return order.ID, nil
}

// insertOrdering assigns IDs to order and items and writes them through q.
func insertOrdering(ctx context.Context, q querier, order *secondary.ExperimentOrderRecord, items []*secondary.OrderItemRecord) error {
	id, err := nextID(ctx, q, "experiment_orders", "EORD")
	if err != nil {
		return err
	}
	order.ID = id

	_, err = q.ExecContext(ctx,
		"INSERT INTO experiment_orders (id, name, battery_id, auto_generated) VALUES (?, ?, ?, ?)",
		order.ID, order.Name, order.BatteryID, boolToInt(order.AutoGenerated),
	)
	if err != nil {
		return fmt.Errorf("failed to create ordering: %w", err)
	}

	for _, item := range items {
		itemID, err := nextID(ctx, q, "experiment_order_items", "EOI")
		if err != nil {
			return err
		}
		item.ID = itemID
		item.OrderingID = order.ID

		_, err = q.ExecContext(ctx,
			"INSERT INTO experiment_order_items (id, experiment_order_id, battery_experiment_id, position) VALUES (?, ?, ?, ?)",
			item.ID, item.OrderingID, item.BatteryExperimentID, item.Position,
		)
		if err != nil {
			return fmt.Errorf("failed to create ordering item: %w", err)
		}
	}
	return nil
}

// GetByID retrieves an ordering by its ID.
func (r *OrderingRepository) GetByID(ctx context.Context, id string) (*secondary.ExperimentOrderRecord, error) {
	record, err := scanOrdering(r.db.QueryRowContext(ctx,
		"SELECT id, name, battery_id, auto_generated, created_at FROM experiment_orders WHERE id = ?", id,
	))
	if err != nil {
		return nil, notFound(err, "ordering", id)
	}
	return record, nil
}

// ListByBattery retrieves the orderings of a battery.
func (r *OrderingRepository) ListByBattery(ctx context.Context, batteryID string) ([]*secondary.ExperimentOrderRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, battery_id, auto_generated, created_at FROM experiment_orders WHERE battery_id = ? ORDER BY id ASC",
		batteryID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orderings: %w", err)
	}
	defer rows.Close()

	var orders []*secondary.ExperimentOrderRecord
	for rows.Next() {
		record, err := scanOrdering(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ordering: %w", err)
		}
		orders = append(orders, record)
	}
	return orders, rows.Err()
}

// ListItems retrieves an ordering's items by position.
func (r *OrderingRepository) ListItems(ctx context.Context, orderingID string) ([]*secondary.OrderItemRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, experiment_order_id, battery_experiment_id, position FROM experiment_order_items WHERE experiment_order_id = ? ORDER BY position ASC",
		orderingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ordering items: %w", err)
	}
	defer rows.Close()

	var items []*secondary.OrderItemRecord
	for rows.Next() {
		item := &secondary.OrderItemRecord{}
		if err := rows.Scan(&item.ID, &item.OrderingID, &item.BatteryExperimentID, &item.Position); err != nil {
			return nil, fmt.Errorf("failed to scan ordering item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanOrdering(row rowScanner) (*secondary.ExperimentOrderRecord, error) {
	var createdAt time.Time
	record := &secondary.ExperimentOrderRecord{}
	if err := row.Scan(&record.ID, &record.Name, &record.BatteryID, &record.AutoGenerated, &createdAt); err != nil {
		return nil, err
	}
	record.CreatedAt = createdAt.Format(time.RFC3339)
	return record, nil
}

var _ secondary.OrderingRepository = (*OrderingRepository)(nil)

// AssignmentRepository implements secondary.AssignmentRepository with SQLite.
type AssignmentRepository struct {
	db *sql.DB
}

// NewAssignmentRepository creates a new SQLite assignment repository.
func NewAssignmentRepository(db *sql.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = "id, subject_id, battery_id, status, started_at, completed_at, failed_at, consent_accepted, note, ordering_id, group_index, created_at, updated_at"

// Create persists an assignment and, when given, its ordering in one transaction.
// IDs are generated inside the transaction so concurrent creators never collide on them.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *secondary.AssignmentRecord, order *secondary.ExperimentOrderRecord, items []*secondary.OrderItemRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM assignments WHERE subject_id = ? AND battery_id = ?",
		assignment.SubjectID, assignment.BatteryID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check assignment: %w", err)
	}
	if exists > 0 {
		return secondary.ErrDuplicateAssignment
	}

	if order != nil {
		if err := insertOrdering(ctx, tx, order, items); err != nil {
			return err
		}
		assignment.OrderingID = order.ID
	}

	id, err := nextID(ctx, tx, "assignments", "ASGN")
	if err != nil {
		return err
	}
	assignment.ID = id

	status := assignment.Status
	if status == "" {
		status = "not-started"
	}
	assignment.Status = status

	_, err = tx.ExecContext(ctx,
		"INSERT INTO assignments (id, subject_id, battery_id, status, note, ordering_id, group_index) VALUES (?, ?, ?, ?, ?, ?, ?)",
		assignment.ID, assignment.SubjectID, assignment.BatteryID, status, assignment.Note,
		nullString(assignment.OrderingID), assignment.GroupIndex,
	)
	if err != nil {
		if isDuplicateAssignment(err) {
			return secondary.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isDuplicateAssignment(err) {
			return secondary.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to commit assignment: %w", err)
	}
	return nil
}

// isDuplicateAssignment reports whether err is the (subject_id, battery_id) unique violation.
func isDuplicateAssignment(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
		strings.Contains(sqliteErr.Error(), "assignments.subject_id")
}

// GetByID retrieves an assignment by its ID.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*secondary.AssignmentRecord, error) {
	record, err := scanAssignment(r.db.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id,
	))
	if err != nil {
		return nil, notFound(err, "assignment", id)
	}
	return record, nil
}

// List retrieves assignments matching the given filters.
func (r *AssignmentRepository) List(ctx context.Context, filters secondary.AssignmentFilters) ([]*secondary.AssignmentRecord, error) {
	query := "SELECT " + assignmentColumns + " FROM assignments WHERE 1=1"
	args := []any{}

	if filters.SubjectID != "" {
		query += " AND subject_id = ?"
		args = append(args, filters.SubjectID)
	}
	if filters.BatteryID != "" {
		query += " AND battery_id = ?"
		args = append(args, filters.BatteryID)
	}
	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*secondary.AssignmentRecord
	for rows.Next() {
		record, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, record)
	}
	return assignments, rows.Err()
}

// UpdateStatus writes a status change and its timestamps in one statement.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, id string, update secondary.StatusUpdate) error {
	query, args := statusUpdateSQL("assignments", id, update)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update assignment status: %w", err)
	}
	return checkAffected(result, "assignment", id)
}

// SetConsent records whether the subject accepted the battery's consent.
func (r *AssignmentRepository) SetConsent(ctx context.Context, id string, accepted bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE assignments SET consent_accepted = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		boolToInt(accepted), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update assignment consent: %w", err)
	}
	return checkAffected(result, "assignment", id)
}

// statusUpdateSQL builds the UPDATE for a status change on assignments or results.
func statusUpdateSQL(table, id string, update secondary.StatusUpdate) (string, []any) {
	query := "UPDATE " + table + " SET status = ?, updated_at = CURRENT_TIMESTAMP"
	args := []any{update.Status}

	if update.StartedAt != nil {
		query += ", started_at = ?"
		args = append(args, nullTimePtr(update.StartedAt))
	}
	if update.CompletedAt != nil {
		query += ", completed_at = ?"
		args = append(args, nullTimePtr(update.CompletedAt))
	}
	if update.FailedAt != nil {
		query += ", failed_at = ?"
		args = append(args, nullTimePtr(update.FailedAt))
	}

	query += " WHERE id = ?"
	args = append(args, id)
	return query, args
}

func scanAssignment(row rowScanner) (*secondary.AssignmentRecord, error) {
	var (
		startedAt   sql.NullTime
		completedAt sql.NullTime
		failedAt    sql.NullTime
		consent     sql.NullBool
		orderingID  sql.NullString
		createdAt   time.Time
		updatedAt   time.Time
	)

	record := &secondary.AssignmentRecord{}
	err := row.Scan(&record.ID, &record.SubjectID, &record.BatteryID, &record.Status,
		&startedAt, &completedAt, &failedAt, &consent, &record.Note, &orderingID,
		&record.GroupIndex, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.StartedAt = formatNullTime(startedAt)
	record.CompletedAt = formatNullTime(completedAt)
	record.FailedAt = formatNullTime(failedAt)
	if consent.Valid {
		accepted := consent.Bool
		record.ConsentAccepted = &accepted
	}
	record.OrderingID = orderingID.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	record.UpdatedAt = updatedAt.Format(time.RFC3339)
	return record, nil
}

var _ secondary.AssignmentRepository = (*AssignmentRepository)(nil)
