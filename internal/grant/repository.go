package grant

import (
	"context"
	"sync"
	"time"
)

// Repository defines the interface for grant data operations.
// Upserts are idempotent: re-applying a grant replaces the flags in place
// and never creates a duplicate row.
type Repository interface {
	// UpsertGrant inserts or replaces the grant for its directed pair.
	UpsertGrant(ctx context.Context, g Grant) error

	// GetGrant returns the grant from grantor to grantee, or ErrGrantNotFound.
	GetGrant(ctx context.Context, grantorID, granteeID string) (*Grant, error)

	// GrantsFrom returns every grant the grantor has issued.
	GrantsFrom(ctx context.Context, grantorID string) ([]Grant, error)

	// UpsertSupervisorGrant inserts or replaces a supervisor's capability
	// set for one target.
	UpsertSupervisorGrant(ctx context.Context, g SupervisorGrant) error

	// GetSupervisorGrant returns the supervisor's grant for a target, or
	// ErrGrantNotFound.
	GetSupervisorGrant(ctx context.Context, supervisorID, targetID string) (*SupervisorGrant, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu          sync.RWMutex
	grants      map[string]Grant           // grantor:grantee -> Grant
	supervisors map[string]SupervisorGrant // supervisor:target -> SupervisorGrant
}

// NewInMemoryRepository creates a new in-memory grant repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		grants:      make(map[string]Grant),
		supervisors: make(map[string]SupervisorGrant),
	}
}

func pairKey(a, b string) string {
	return a + ":" + b
}

// UpsertGrant inserts or replaces the grant for its directed pair.
func (r *InMemoryRepository) UpsertGrant(ctx context.Context, g Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g.UpdatedAt = time.Now()
	r.grants[pairKey(g.GrantorID, g.GranteeID)] = g
	return nil
}

// GetGrant returns the grant from grantor to grantee.
func (r *InMemoryRepository) GetGrant(ctx context.Context, grantorID, granteeID string) (*Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.grants[pairKey(grantorID, granteeID)]
	if !ok {
		return nil, ErrGrantNotFound
	}
	cp := g
	return &cp, nil
}

// GrantsFrom returns every grant the grantor has issued.
func (r *InMemoryRepository) GrantsFrom(ctx context.Context, grantorID string) ([]Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Grant
	for _, g := range r.grants {
		if g.GrantorID == grantorID {
			out = append(out, g)
		}
	}
	return out, nil
}

// UpsertSupervisorGrant inserts or replaces a supervisor capability set.
func (r *InMemoryRepository) UpsertSupervisorGrant(ctx context.Context, g SupervisorGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g.UpdatedAt = time.Now()
	r.supervisors[pairKey(g.SupervisorID, g.TargetID)] = g
	return nil
}

// GetSupervisorGrant returns the supervisor's grant for a target.
func (r *InMemoryRepository) GetSupervisorGrant(ctx context.Context, supervisorID, targetID string) (*SupervisorGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.supervisors[pairKey(supervisorID, targetID)]
	if !ok {
		return nil, ErrGrantNotFound
	}
	cp := g
	return &cp, nil
}
