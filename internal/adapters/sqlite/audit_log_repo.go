package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/expfactory/internal/ports/secondary"
)

// AuditLogRepository implements secondary.AuditLogRepository with SQLite.
type AuditLogRepository struct {
	db *sql.DB
}

// NewAuditLogRepository creates a new SQLite audit log repository.
func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

const auditLogColumns = "id, actor_id, entity_type, entity_id, action, field_name, old_value, new_value, created_at"

// Create persists a new log entry.
func (r *AuditLogRepository) Create(ctx context.Context, log *secondary.AuditLogRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, actor_id, entity_type, entity_id, action, field_name, old_value, new_value) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.ActorID,
		log.EntityType,
		log.EntityID,
		log.Action,
		nullString(log.FieldName),
		nullString(log.OldValue),
		nullString(log.NewValue),
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// GetByID retrieves a log entry by its ID.
func (r *AuditLogRepository) GetByID(ctx context.Context, id string) (*secondary.AuditLogRecord, error) {
	record, err := scanAuditLog(r.db.QueryRowContext(ctx,
		"SELECT "+auditLogColumns+" FROM audit_log WHERE id = ?", id,
	))
	if err != nil {
		return nil, notFound(err, "audit log", id)
	}
	return record, nil
}

// List retrieves log entries matching the given filters.
func (r *AuditLogRepository) List(ctx context.Context, filters secondary.AuditLogFilters) ([]*secondary.AuditLogRecord, error) {
	query := "SELECT " + auditLogColumns + " FROM audit_log WHERE 1=1"
	args := []any{}

	if filters.EntityType != "" {
		query += " AND entity_type = ?"
		args = append(args, filters.EntityType)
	}

	if filters.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filters.EntityID)
	}

	if filters.ActorID != "" {
		query += " AND actor_id = ?"
		args = append(args, filters.ActorID)
	}

	if filters.Action != "" {
		query += " AND action = ?"
		args = append(args, filters.Action)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*secondary.AuditLogRecord
	for rows.Next() {
		record, err := scanAuditLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, record)
	}
	return logs, rows.Err()
}

// PruneOlderThan deletes entries older than the given number of days.
func (r *AuditLogRepository) PruneOlderThan(ctx context.Context, days int) (int, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM audit_log WHERE created_at < datetime('now', ?)",
		fmt.Sprintf("-%d days", days),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit logs: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

// GetNextID returns the next available log ID.
func (r *AuditLogRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "audit_log", "LOG")
}

func scanAuditLog(row rowScanner) (*secondary.AuditLogRecord, error) {
	var (
		fieldName sql.NullString
		oldValue  sql.NullString
		newValue  sql.NullString
		createdAt time.Time
	)

	record := &secondary.AuditLogRecord{}
	err := row.Scan(&record.ID, &record.ActorID, &record.EntityType, &record.EntityID, &record.Action,
		&fieldName, &oldValue, &newValue, &createdAt)
	if err != nil {
		return nil, err
	}

	record.FieldName = fieldName.String
	record.OldValue = oldValue.String
	record.NewValue = newValue.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	return record, nil
}

var _ secondary.AuditLogRepository = (*AuditLogRepository)(nil)
