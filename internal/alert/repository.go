package alert

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for alert data operations.
type Repository interface {
	// Insert stores a new alert.
	Insert(ctx context.Context, a *Alert) error

	// ListBySubject returns the subject's alerts, newest first, capped at limit.
	ListBySubject(ctx context.Context, subjectID string, limit int) ([]*Alert, error)

	// MarkRead toggles an alert's read flag on.
	MarkRead(ctx context.Context, id string) error

	// DeleteReadOlderThan removes read alerts created before cutoff for a
	// subject. Unread alerts are kept regardless of age.
	DeleteReadOlderThan(ctx context.Context, subjectID string, cutoff time.Time) (int64, error)
}

// RetentionRepository stores per-subject retention policies.
type RetentionRepository interface {
	// SetPolicy upserts a subject's retention window. Idempotent per subject.
	SetPolicy(ctx context.Context, subjectID string, hours int) error

	// GetPolicy returns the subject's policy, falling back to the default
	// window when none is configured.
	GetPolicy(ctx context.Context, subjectID string) (RetentionPolicy, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
}

// NewInMemoryRepository creates a new in-memory alert repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{alerts: make(map[string]*Alert)}
}

// Insert stores a new alert.
func (r *InMemoryRepository) Insert(ctx context.Context, a *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *a
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	a.ID = cp.ID
	a.CreatedAt = cp.CreatedAt

	r.alerts[cp.ID] = &cp
	return nil
}

// ListBySubject returns the subject's alerts, newest first.
func (r *InMemoryRepository) ListBySubject(ctx context.Context, subjectID string, limit int) ([]*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Alert
	for _, a := range r.alerts {
		if a.SubjectID == subjectID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkRead toggles an alert's read flag on.
func (r *InMemoryRepository) MarkRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return ErrAlertNotFound
	}
	a.Read = true
	return nil
}

// DeleteReadOlderThan removes read alerts created before cutoff.
func (r *InMemoryRepository) DeleteReadOlderThan(ctx context.Context, subjectID string, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, a := range r.alerts {
		if a.SubjectID == subjectID && a.Read && a.CreatedAt.Before(cutoff) {
			delete(r.alerts, id)
			deleted++
		}
	}
	return deleted, nil
}

// InMemoryRetentionRepository is an in-memory RetentionRepository.
type InMemoryRetentionRepository struct {
	mu       sync.RWMutex
	policies map[string]RetentionPolicy
}

// NewInMemoryRetentionRepository creates a new in-memory retention repository.
func NewInMemoryRetentionRepository() *InMemoryRetentionRepository {
	return &InMemoryRetentionRepository{policies: make(map[string]RetentionPolicy)}
}

// SetPolicy upserts a subject's retention window.
func (r *InMemoryRetentionRepository) SetPolicy(ctx context.Context, subjectID string, hours int) error {
	if !ValidRetentionHours(hours) {
		return ErrInvalidRetention
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[subjectID] = RetentionPolicy{
		SubjectID:      subjectID,
		RetentionHours: hours,
		UpdatedAt:      time.Now(),
	}
	return nil
}

// GetPolicy returns the subject's policy or the default window.
func (r *InMemoryRetentionRepository) GetPolicy(ctx context.Context, subjectID string) (RetentionPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.policies[subjectID]; ok {
		return p, nil
	}
	return RetentionPolicy{SubjectID: subjectID, RetentionHours: DefaultRetentionHours}, nil
}
