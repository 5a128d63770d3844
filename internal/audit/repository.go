package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository stores and queries access records.
type Repository interface {
	// Insert stores one record, assigning ID and CreatedAt when unset.
	Insert(ctx context.Context, rec *AccessRecord) error

	// RecentForSubject returns records about the subject, newest first,
	// at most limit entries.
	RecentForSubject(ctx context.Context, subjectID string, limit int) ([]AccessRecord, error)

	// DeleteOlderThan removes records created before the cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, subjectID string, cutoff time.Time) (int64, error)
}

// InMemoryRepository is a thread-safe in-memory Repository for tests and
// development.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records []AccessRecord
}

// NewInMemoryRepository creates an empty in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Insert stores one record.
func (r *InMemoryRepository) Insert(ctx context.Context, rec *AccessRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *rec
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	rec.ID = cp.ID
	rec.CreatedAt = cp.CreatedAt

	r.records = append(r.records, cp)
	return nil
}

// RecentForSubject returns records about the subject, newest first.
func (r *InMemoryRepository) RecentForSubject(ctx context.Context, subjectID string, limit int) ([]AccessRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []AccessRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].SubjectID != subjectID {
			continue
		}
		out = append(out, r.records[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// DeleteOlderThan removes records about the subject created before cutoff.
func (r *InMemoryRepository) DeleteOlderThan(ctx context.Context, subjectID string, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []AccessRecord
	var removed int64
	for _, rec := range r.records {
		if rec.SubjectID == subjectID && rec.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	r.records = kept
	return removed, nil
}
