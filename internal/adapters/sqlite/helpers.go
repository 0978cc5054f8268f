// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so ID generation and inserts can
// run inside a caller's transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// nextID returns the next PREFIX-NNN identifier for table.
func nextID(ctx context.Context, q querier, table, prefix string) (string, error) {
	var maxID int
	prefixLen := len(prefix) + 2
	err := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM %s", prefixLen, table),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next %s ID: %w", table, err)
	}

	return fmt.Sprintf("%s-%03d", prefix, maxID+1), nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTimeString converts an RFC3339 record timestamp into a column value.
// Empty or unparseable strings become NULL.
func nullTimeString(s string) sql.NullTime {
	if s == "" {
		return sql.NullTime{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func formatNullTime(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// notFound maps a missing row to the usual "<entity> <id> not found" error.
func notFound(err error, entity, id string) error {
	if err == sql.ErrNoRows {
		return fmt.Errorf("%s %s not found", entity, id)
	}
	return fmt.Errorf("failed to get %s: %w", entity, err)
}

// checkAffected returns a not-found error when an UPDATE or DELETE touched no rows.
func checkAffected(result sql.Result, entity, id string) error {
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("%s %s not found", entity, id)
	}
	return nil
}
