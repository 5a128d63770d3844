package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository backed by PostgreSQL.
// All statements are parameterized; no SQL is built from input.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed sample repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append stores a new sample.
func (r *PostgresRepository) Append(ctx context.Context, sample *Sample) error {
	if sample.ID == "" {
		sample.ID = uuid.New().String()
	}
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = time.Now()
	}

	const q = `
		INSERT INTO location_samples
			(id, subject_id, lat, lon, accuracy, altitude, speed, heading,
			 battery_level, charging, status, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, q,
		sample.ID, sample.SubjectID, sample.Lat, sample.Lon,
		sample.Accuracy, sample.Altitude, sample.Speed, sample.Heading,
		sample.BatteryLevel, sample.Charging, sample.Status, sample.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append sample: %w", err)
	}
	return nil
}

// Recent returns up to limit samples for a subject, newest first.
func (r *PostgresRepository) Recent(ctx context.Context, subjectID string, limit int) ([]*Sample, error) {
	const q = `
		SELECT id, subject_id, lat, lon, accuracy, altitude, speed, heading,
		       battery_level, charging, status, recorded_at
		FROM location_samples
		WHERE subject_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent samples: %w", err)
	}
	defer rows.Close()

	var out []*Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Latest returns the newest sample for a subject.
func (r *PostgresRepository) Latest(ctx context.Context, subjectID string) (*Sample, error) {
	const q = `
		SELECT id, subject_id, lat, lon, accuracy, altitude, speed, heading,
		       battery_level, charging, status, recorded_at
		FROM location_samples
		WHERE subject_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1`

	row := r.db.QueryRowContext(ctx, q, subjectID)
	s, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSampleNotFound
	}
	return s, err
}

// EnvelopeBetween returns the statistical envelope of samples in the window.
func (r *PostgresRepository) EnvelopeBetween(ctx context.Context, subjectID string, since, until time.Time) (*Envelope, error) {
	const q = `
		SELECT COUNT(*),
		       COALESCE(AVG(lat), 0), COALESCE(AVG(lon), 0),
		       COALESCE(MIN(lat), 0), COALESCE(MAX(lat), 0),
		       COALESCE(MIN(lon), 0), COALESCE(MAX(lon), 0)
		FROM location_samples
		WHERE subject_id = $1 AND recorded_at >= $2 AND recorded_at < $3`

	env := &Envelope{}
	err := r.db.QueryRowContext(ctx, q, subjectID, since, until).Scan(
		&env.Count, &env.AvgLat, &env.AvgLon,
		&env.MinLat, &env.MaxLat, &env.MinLon, &env.MaxLon,
	)
	if err != nil {
		return nil, fmt.Errorf("query envelope: %w", err)
	}
	return env, nil
}

// FrequencyBuckets groups samples by grid cell filtered by hour and weekday.
func (r *PostgresRepository) FrequencyBuckets(ctx context.Context, subjectID string, hour int, weekday time.Weekday, since time.Time, limit int) ([]FrequencyCell, error) {
	const q = `
		SELECT ROUND(lat::numeric, 3)::float8,
		       ROUND(lon::numeric, 3)::float8,
		       COUNT(*) AS frequency
		FROM location_samples
		WHERE subject_id = $1
		  AND EXTRACT(HOUR FROM recorded_at)::int = $2
		  AND EXTRACT(DOW FROM recorded_at)::int = $3
		  AND recorded_at >= $4
		GROUP BY 1, 2
		ORDER BY frequency DESC, 1, 2
		LIMIT $5`

	rows, err := r.db.QueryContext(ctx, q, subjectID, hour, int(weekday), since, limit)
	if err != nil {
		return nil, fmt.Errorf("query frequency buckets: %w", err)
	}
	defer rows.Close()

	return scanCells(rows)
}

// ChargingClusters groups charging samples by grid cell.
func (r *PostgresRepository) ChargingClusters(ctx context.Context, subjectID string, since time.Time, minCount int) ([]FrequencyCell, error) {
	const q = `
		SELECT ROUND(lat::numeric, 3)::float8,
		       ROUND(lon::numeric, 3)::float8,
		       COUNT(*) AS frequency
		FROM location_samples
		WHERE subject_id = $1 AND charging AND recorded_at >= $2
		GROUP BY 1, 2
		HAVING COUNT(*) > $3
		ORDER BY frequency DESC, 1, 2`

	rows, err := r.db.QueryContext(ctx, q, subjectID, since, minCount)
	if err != nil {
		return nil, fmt.Errorf("query charging clusters: %w", err)
	}
	defer rows.Close()

	return scanCells(rows)
}

// DeleteOlderThan removes samples recorded before cutoff.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, subjectID string, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM location_samples WHERE subject_id = $1 AND recorded_at < $2`

	res, err := r.db.ExecContext(ctx, q, subjectID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old samples: %w", err)
	}
	return res.RowsAffected()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (*Sample, error) {
	s := &Sample{}
	err := row.Scan(
		&s.ID, &s.SubjectID, &s.Lat, &s.Lon,
		&s.Accuracy, &s.Altitude, &s.Speed, &s.Heading,
		&s.BatteryLevel, &s.Charging, &s.Status, &s.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan sample: %w", err)
	}
	return s, nil
}

func scanCells(rows *sql.Rows) ([]FrequencyCell, error) {
	var out []FrequencyCell
	for rows.Next() {
		var cell FrequencyCell
		if err := rows.Scan(&cell.Lat, &cell.Lon, &cell.Count); err != nil {
			return nil, fmt.Errorf("scan frequency cell: %w", err)
		}
		out = append(out, cell)
	}
	return out, rows.Err()
}
