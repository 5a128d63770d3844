package grant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepository implements Repository backed by PostgreSQL.
// Idempotency is enforced by primary keys on the directed pairs.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed grant repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// UpsertGrant inserts or replaces the grant for its directed pair.
func (r *PostgresRepository) UpsertGrant(ctx context.Context, g Grant) error {
	const q = `
		INSERT INTO permission_grants
			(grantor_id, grantee_id, view_location, view_battery,
			 view_history, send_messages, privacy_tier, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (grantor_id, grantee_id)
		DO UPDATE SET
			view_location = EXCLUDED.view_location,
			view_battery  = EXCLUDED.view_battery,
			view_history  = EXCLUDED.view_history,
			send_messages = EXCLUDED.send_messages,
			privacy_tier      = EXCLUDED.privacy_tier,
			updated_at        = NOW()`

	_, err := r.db.ExecContext(ctx, q,
		g.GrantorID, g.GranteeID, g.ViewLocation, g.ViewBattery,
		g.ViewHistory, g.SendMessages, g.PrivacyTier,
	)
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

// GetGrant returns the grant from grantor to grantee.
func (r *PostgresRepository) GetGrant(ctx context.Context, grantorID, granteeID string) (*Grant, error) {
	const q = `
		SELECT grantor_id, grantee_id, view_location, view_battery,
		       view_history, send_messages, privacy_tier, updated_at
		FROM permission_grants
		WHERE grantor_id = $1 AND grantee_id = $2`

	g := &Grant{}
	err := r.db.QueryRowContext(ctx, q, grantorID, granteeID).Scan(
		&g.GrantorID, &g.GranteeID, &g.ViewLocation, &g.ViewBattery,
		&g.ViewHistory, &g.SendMessages, &g.PrivacyTier, &g.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get grant: %w", err)
	}
	return g, nil
}

// GrantsFrom returns every grant the grantor has issued.
func (r *PostgresRepository) GrantsFrom(ctx context.Context, grantorID string) ([]Grant, error) {
	const q = `
		SELECT grantor_id, grantee_id, view_location, view_battery,
		       view_history, send_messages, privacy_tier, updated_at
		FROM permission_grants
		WHERE grantor_id = $1
		ORDER BY grantee_id`

	rows, err := r.db.QueryContext(ctx, q, grantorID)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(
			&g.GrantorID, &g.GranteeID, &g.ViewLocation, &g.ViewBattery,
			&g.ViewHistory, &g.SendMessages, &g.PrivacyTier, &g.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpsertSupervisorGrant inserts or replaces a supervisor capability set.
func (r *PostgresRepository) UpsertSupervisorGrant(ctx context.Context, g SupervisorGrant) error {
	const q = `
		INSERT INTO supervisor_grants
			(supervisor_id, target_id, view_location, view_battery,
			 view_history, receive_alerts, view_messages,
			 send_messages, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (supervisor_id, target_id)
		DO UPDATE SET
			view_location  = EXCLUDED.view_location,
			view_battery   = EXCLUDED.view_battery,
			view_history   = EXCLUDED.view_history,
			receive_alerts = EXCLUDED.receive_alerts,
			view_messages  = EXCLUDED.view_messages,
			send_messages  = EXCLUDED.send_messages,
			updated_at         = NOW()`

	_, err := r.db.ExecContext(ctx, q,
		g.SupervisorID, g.TargetID, g.ViewLocation, g.ViewBattery,
		g.ViewHistory, g.ReceiveAlerts, g.ViewMessages, g.SendMessages,
	)
	if err != nil {
		return fmt.Errorf("upsert supervisor grant: %w", err)
	}
	return nil
}

// GetSupervisorGrant returns the supervisor's grant for a target.
func (r *PostgresRepository) GetSupervisorGrant(ctx context.Context, supervisorID, targetID string) (*SupervisorGrant, error) {
	const q = `
		SELECT supervisor_id, target_id, view_location, view_battery,
		       view_history, receive_alerts, view_messages,
		       send_messages, updated_at
		FROM supervisor_grants
		WHERE supervisor_id = $1 AND target_id = $2`

	g := &SupervisorGrant{}
	err := r.db.QueryRowContext(ctx, q, supervisorID, targetID).Scan(
		&g.SupervisorID, &g.TargetID, &g.ViewLocation, &g.ViewBattery,
		&g.ViewHistory, &g.ReceiveAlerts, &g.ViewMessages, &g.SendMessages,
		&g.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get supervisor grant: %w", err)
	}
	return g, nil
}
