// Package subject provides the minimal subject directory the core needs:
// platform role lookup and display names. Account lifecycle itself is owned
// by an external collaborator.
package subject

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Common errors for subject operations.
var (
	ErrSubjectNotFound = errors.New("subject not found")
)

// PlatformRole is a subject's platform-wide role, distinct from group roles.
type PlatformRole string

// Platform roles.
const (
	RoleMember     PlatformRole = "member"
	RoleSuperAdmin PlatformRole = "super_admin"
)

// Subject is one tracked or observing individual.
type Subject struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"display_name"`
	Role        PlatformRole `json:"role"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Directory defines read and seed operations over subjects.
type Directory interface {
	// Get returns a subject by id, or ErrSubjectNotFound.
	Get(ctx context.Context, id string) (*Subject, error)

	// IsSuperAdmin reports whether the subject holds the platform-wide
	// super-admin role. Unknown subjects are plain members.
	IsSuperAdmin(ctx context.Context, id string) (bool, error)

	// Upsert creates or updates a subject record. Used by the one-time
	// seed and by the membership sync boundary.
	Upsert(ctx context.Context, s Subject) error
}

// InMemoryDirectory is an in-memory implementation of Directory.
// Thread-safe via RWMutex.
type InMemoryDirectory struct {
	mu       sync.RWMutex
	subjects map[string]Subject
}

// NewInMemoryDirectory creates a new in-memory subject directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{subjects: make(map[string]Subject)}
}

// Get returns a subject by id.
func (d *InMemoryDirectory) Get(ctx context.Context, id string) (*Subject, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.subjects[id]
	if !ok {
		return nil, ErrSubjectNotFound
	}
	cp := s
	return &cp, nil
}

// IsSuperAdmin reports whether the subject is a platform super-admin.
func (d *InMemoryDirectory) IsSuperAdmin(ctx context.Context, id string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.subjects[id]
	return ok && s.Role == RoleSuperAdmin, nil
}

// Upsert creates or updates a subject record.
func (d *InMemoryDirectory) Upsert(ctx context.Context, s Subject) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.subjects[s.ID]; ok {
		s.CreatedAt = existing.CreatedAt
	} else if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	d.subjects[s.ID] = s
	return nil
}

// PostgresDirectory implements Directory backed by PostgreSQL.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory creates a new Postgres-backed subject directory.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

// Get returns a subject by id.
func (d *PostgresDirectory) Get(ctx context.Context, id string) (*Subject, error) {
	const q = `SELECT id, display_name, platform_role, created_at FROM subjects WHERE id = $1`

	s := &Subject{}
	var role string
	err := d.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.DisplayName, &role, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	s.Role = PlatformRole(role)
	return s, nil
}

// IsSuperAdmin reports whether the subject is a platform super-admin.
func (d *PostgresDirectory) IsSuperAdmin(ctx context.Context, id string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM subjects WHERE id = $1 AND platform_role = 'super_admin')`

	var isAdmin bool
	if err := d.db.QueryRowContext(ctx, q, id).Scan(&isAdmin); err != nil {
		return false, fmt.Errorf("query super admin: %w", err)
	}
	return isAdmin, nil
}

// Upsert creates or updates a subject record.
func (d *PostgresDirectory) Upsert(ctx context.Context, s Subject) error {
	const q = `
		INSERT INTO subjects (id, display_name, platform_role, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id)
		DO UPDATE SET display_name = EXCLUDED.display_name, platform_role = EXCLUDED.platform_role`

	if _, err := d.db.ExecContext(ctx, q, s.ID, s.DisplayName, string(s.Role)); err != nil {
		return fmt.Errorf("upsert subject: %w", err)
	}
	return nil
}
