package safezone

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

// NewPostgresRepository creates a new Postgres-backed safe zone repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new zone.
func (r *PostgresRepository) Insert(ctx context.Context, zone *Zone) error {
	if zone.RadiusMeters <= 0 {
		return ErrInvalidRadius
	}
	if zone.ID == "" {
		zone.ID = uuid.New().String()
	}
	if zone.CreatedAt.IsZero() {
		zone.CreatedAt = time.Now()
	}

	const q = `
		INSERT INTO safe_zones
			(id, owner_id, name, lat, lon, radius_meters, active,
			 notify_enter, notify_exit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, q,
		zone.ID, zone.OwnerID, zone.Name, zone.Lat, zone.Lon,
		zone.RadiusMeters, zone.Active, zone.NotifyEnter, zone.NotifyExit,
		zone.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert safe zone: %w", err)
	}
	return nil
}

// ActiveForOwner returns the owner's active zones.
func (r *PostgresRepository) ActiveForOwner(ctx context.Context, ownerID string) ([]*Zone, error) {
	const q = `
		SELECT id, owner_id, name, lat, lon, radius_meters, active,
		       notify_enter, notify_exit, created_at
		FROM safe_zones
		WHERE owner_id = $1 AND active
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query active zones: %w", err)
	}
	defer rows.Close()

	var out []*Zone
	for rows.Next() {
		z := &Zone{}
		if err := rows.Scan(
			&z.ID, &z.OwnerID, &z.Name, &z.Lat, &z.Lon, &z.RadiusMeters,
			&z.Active, &z.NotifyEnter, &z.NotifyExit, &z.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan safe zone: %w", err)
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

// GetByID retrieves a zone.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Zone, error) {
	const q = `
		SELECT id, owner_id, name, lat, lon, radius_meters, active,
		       notify_enter, notify_exit, created_at
		FROM safe_zones
		WHERE id = $1`

	z := &Zone{}
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&z.ID, &z.OwnerID, &z.Name, &z.Lat, &z.Lon, &z.RadiusMeters,
		&z.Active, &z.NotifyEnter, &z.NotifyExit, &z.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrZoneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get safe zone: %w", err)
	}
	return z, nil
}

// Deactivate soft-deletes a zone.
func (r *PostgresRepository) Deactivate(ctx context.Context, id, ownerID string) error {
	const q = `UPDATE safe_zones SET active = FALSE WHERE id = $1 AND owner_id = $2`

	res, err := r.db.ExecContext(ctx, q, id, ownerID)
	if err != nil {
		return fmt.Errorf("deactivate safe zone: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrZoneNotFound
	}
	return nil
}
