package alert

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed alert repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new alert.
func (r *PostgresRepository) Insert(ctx context.Context, a *Alert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	const q = `
		INSERT INTO alerts
			(id, subject_id, alert_type, message, severity, lat, lon, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.SubjectID, string(a.Type), a.Message, string(a.Severity),
		a.Lat, a.Lon, a.Read, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// ListBySubject returns the subject's alerts, newest first.
func (r *PostgresRepository) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*Alert, error) {
	const q = `
		SELECT id, subject_id, alert_type, message, severity, lat, lon, read, created_at
		FROM alerts
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []*Alert
	for rows.Next() {
		a := &Alert{}
		var typ, sev string
		if err := rows.Scan(
			&a.ID, &a.SubjectID, &typ, &a.Message, &sev,
			&a.Lat, &a.Lon, &a.Read, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Type = Type(typ)
		a.Severity = Severity(sev)
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkRead toggles an alert's read flag on.
func (r *PostgresRepository) MarkRead(ctx context.Context, id string) error {
	const q = `UPDATE alerts SET read = TRUE WHERE id = $1`

	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlertNotFound
	}
	return nil
}

// DeleteReadOlderThan removes read alerts created before cutoff.
func (r *PostgresRepository) DeleteReadOlderThan(ctx context.Context, subjectID string, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM alerts WHERE subject_id = $1 AND read AND created_at < $2`

	res, err := r.db.ExecContext(ctx, q, subjectID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete read alerts: %w", err)
	}
	return res.RowsAffected()
}

// PostgresRetentionRepository implements RetentionRepository backed by PostgreSQL.
type PostgresRetentionRepository struct {
	db *sql.DB
}

// NewPostgresRetentionRepository creates a new Postgres-backed retention repository.
func NewPostgresRetentionRepository(db *sql.DB) *PostgresRetentionRepository {
	return &PostgresRetentionRepository{db: db}
}

// SetPolicy upserts a subject's retention window.
func (r *PostgresRetentionRepository) SetPolicy(ctx context.Context, subjectID string, hours int) error {
	if !ValidRetentionHours(hours) {
		return ErrInvalidRetention
	}

	const q = `
		INSERT INTO retention_policies (subject_id, retention_hours, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (subject_id)
		DO UPDATE SET retention_hours = EXCLUDED.retention_hours, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, q, subjectID, hours); err != nil {
		return fmt.Errorf("set retention policy: %w", err)
	}
	return nil
}

// GetPolicy returns the subject's policy or the default window.
func (r *PostgresRetentionRepository) GetPolicy(ctx context.Context, subjectID string) (RetentionPolicy, error) {
	const q = `
		SELECT subject_id, retention_hours, updated_at
		FROM retention_policies
		WHERE subject_id = $1`

	p := RetentionPolicy{}
	err := r.db.QueryRowContext(ctx, q, subjectID).Scan(&p.SubjectID, &p.RetentionHours, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RetentionPolicy{SubjectID: subjectID, RetentionHours: DefaultRetentionHours}, nil
	}
	if err != nil {
		return RetentionPolicy{}, fmt.Errorf("get retention policy: %w", err)
	}
	return p, nil
}
