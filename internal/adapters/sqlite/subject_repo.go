package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/expfactory/internal/ports/secondary"
)

// SubjectRepository implements secondary.SubjectRepository with SQLite.
type SubjectRepository struct {
	db *sql.DB
}

// NewSubjectRepository creates a new SQLite subject repository.
func NewSubjectRepository(db *sql.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

const subjectColumns = "s.id, s.handle, s.email, s.notes, s.uuid, s.active, s.prolific_id, s.created_at"

// Create persists a new subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *secondary.SubjectRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO subjects (id, handle, email, notes, uuid, active, prolific_id) VALUES (?, ?, ?, ?, ?, 1, ?)",
		subject.ID, subject.Handle, subject.Email, subject.Notes, subject.UUID, nullString(subject.ProlificID),
	)
	if err != nil {
		return fmt.Errorf("failed to create subject: %w", err)
	}
	return nil
}

// GetByID retrieves a subject by its ID.
func (r *SubjectRepository) GetByID(ctx context.Context, id string) (*secondary.SubjectRecord, error) {
	record, err := scanSubject(r.db.QueryRowContext(ctx,
		"SELECT "+subjectColumns+" FROM subjects s WHERE s.id = ?", id,
	))
	if err != nil {
		return nil, notFound(err, "subject", id)
	}
	return record, nil
}

// GetByUUID retrieves a subject by its uuid.
func (r *SubjectRepository) GetByUUID(ctx context.Context, uuid string) (*secondary.SubjectRecord, error) {
	record, err := scanSubject(r.db.QueryRowContext(ctx,
		"SELECT "+subjectColumns+" FROM subjects s WHERE s.uuid = ?", uuid,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subject by uuid: %w", err)
	}
	return record, nil
}

// List retrieves subjects matching the given filters.
func (r *SubjectRepository) List(ctx context.Context, filters secondary.SubjectFilters) ([]*secondary.SubjectRecord, error) {
	query := "SELECT " + subjectColumns + " FROM subjects s WHERE 1=1"
	args := []any{}

	if filters.Active != nil {
		query += " AND s.active = ?"
		args = append(args, boolToInt(*filters.Active))
	}
	if filters.Tag != "" {
		query += ` AND EXISTS (SELECT 1 FROM entity_tags et JOIN tags t ON t.id = et.tag_id
			WHERE et.entity_type = 'subject' AND et.entity_id = s.id AND t.name = ?)`
		args = append(args, filters.Tag)
	}

	query += " ORDER BY s.id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []*secondary.SubjectRecord
	for rows.Next() {
		record, err := scanSubject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		subjects = append(subjects, record)
	}
	return subjects, rows.Err()
}

// SetActive activates or deactivates a subject.
func (r *SubjectRepository) SetActive(ctx context.Context, id string, active bool) error {
	result, err := r.db.ExecContext(ctx, "UPDATE subjects SET active = ? WHERE id = ?", boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to update subject: %w", err)
	}
	return checkAffected(result, "subject", id)
}

// GetNextID returns the next available subject ID.
func (r *SubjectRepository) GetNextID(ctx context.Context) (string, error) {
	return nextID(ctx, r.db, "subjects", "SUBJ")
}

func scanSubject(row rowScanner) (*secondary.SubjectRecord, error) {
	var (
		prolificID sql.NullString
		createdAt  time.Time
	)

	record := &secondary.SubjectRecord{}
	err := row.Scan(&record.ID, &record.Handle, &record.Email, &record.Notes, &record.UUID,
		&record.Active, &prolificID, &createdAt)
	if err != nil {
		return nil, err
	}
	record.ProlificID = prolificID.String
	record.CreatedAt = createdAt.Format(time.RFC3339)
	return record, nil
}

var _ secondary.SubjectRepository = (*SubjectRepository)(nil)
