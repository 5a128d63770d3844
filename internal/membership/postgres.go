package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new Postgres-backed membership repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert records a membership fact.
func (r *PostgresRepository) Upsert(ctx context.Context, fact Fact) error {
	const q = `
		INSERT INTO membership_facts (group_id, subject_id, role, since)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (group_id, subject_id)
		DO UPDATE SET role = EXCLUDED.role`

	if _, err := r.db.ExecContext(ctx, q, fact.GroupID, fact.SubjectID, string(fact.Role)); err != nil {
		return fmt.Errorf("upsert membership: %w", err)
	}
	return nil
}

// Remove deletes a membership fact.
func (r *PostgresRepository) Remove(ctx context.Context, groupID, subjectID string) error {
	const q = `DELETE FROM membership_facts WHERE group_id = $1 AND subject_id = $2`

	res, err := r.db.ExecContext(ctx, q, groupID, subjectID)
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrFactNotFound
	}
	return nil
}

// GroupsFor returns the ids of every group the subject belongs to.
func (r *PostgresRepository) GroupsFor(ctx context.Context, subjectID string) ([]string, error) {
	const q = `SELECT group_id FROM membership_facts WHERE subject_id = $1 ORDER BY group_id`

	rows, err := r.db.QueryContext(ctx, q, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// MembersOf returns the facts for every member of a group.
func (r *PostgresRepository) MembersOf(ctx context.Context, groupID string) ([]Fact, error) {
	const q = `
		SELECT group_id, subject_id, role, since
		FROM membership_facts
		WHERE group_id = $1
		ORDER BY subject_id`

	rows, err := r.db.QueryContext(ctx, q, groupID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var fact Fact
		var role string
		if err := rows.Scan(&fact.GroupID, &fact.SubjectID, &role, &fact.Since); err != nil {
			return nil, fmt.Errorf("scan membership fact: %w", err)
		}
		fact.Role = Role(role)
		out = append(out, fact)
	}
	return out, rows.Err()
}

// RoleIn returns the subject's role in a group.
func (r *PostgresRepository) RoleIn(ctx context.Context, groupID, subjectID string) (Role, error) {
	const q = `SELECT role FROM membership_facts WHERE group_id = $1 AND subject_id = $2`

	var role string
	err := r.db.QueryRowContext(ctx, q, groupID, subjectID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrFactNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query role: %w", err)
	}
	return Role(role), nil
}

// IsAdminOfSubject reports whether observer administers a group containing subject.
func (r *PostgresRepository) IsAdminOfSubject(ctx context.Context, observerID, subjectID string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM membership_facts obs
			JOIN membership_facts sub ON obs.group_id = sub.group_id
			WHERE obs.subject_id = $1 AND sub.subject_id = $2 AND obs.role = 'admin'
		)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, q, observerID, subjectID).Scan(&exists); err != nil {
		return false, fmt.Errorf("query admin relation: %w", err)
	}
	return exists, nil
}

// SharesGroup reports whether two subjects have a group in common.
func (r *PostgresRepository) SharesGroup(ctx context.Context, a, b string) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1
			FROM membership_facts x
			JOIN membership_facts y ON x.group_id = y.group_id
			WHERE x.subject_id = $1 AND y.subject_id = $2
		)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, q, a, b).Scan(&exists); err != nil {
		return false, fmt.Errorf("query shared group: %w", err)
	}
	return exists, nil
}

// DistinctSubjects returns every subject id that appears in any group.
func (r *PostgresRepository) DistinctSubjects(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT subject_id FROM membership_facts ORDER BY subject_id`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query distinct subjects: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subject id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
