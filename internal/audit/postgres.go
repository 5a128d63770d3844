package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed audit repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores one access record.
func (r *PostgresRepository) Insert(ctx context.Context, rec *AccessRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	const q = `
		INSERT INTO access_audit
			(id, observer_id, subject_id, capability, decision, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.ObserverID, rec.SubjectID, rec.Capability,
		string(rec.Decision), rec.RequestID, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert access record: %w", err)
	}
	return nil
}

// RecentForSubject returns records about the subject, newest first.
func (r *PostgresRepository) RecentForSubject(ctx context.Context, subjectID string, limit int) ([]AccessRecord, error) {
	const q = `
		SELECT id, observer_id, subject_id, capability, decision, request_id, created_at
		FROM access_audit
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query access records: %w", err)
	}
	defer rows.Close()

	var out []AccessRecord
	for rows.Next() {
		var rec AccessRecord
		var decision string
		if err := rows.Scan(&rec.ID, &rec.ObserverID, &rec.SubjectID,
			&rec.Capability, &decision, &rec.RequestID, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan access record: %w", err)
		}
		rec.Decision = Decision(decision)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteOlderThan removes records about the subject created before cutoff.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, subjectID string, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM access_audit WHERE subject_id = $1 AND created_at < $2`

	res, err := r.db.ExecContext(ctx, q, subjectID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete access records: %w", err)
	}
	return res.RowsAffected()
}
