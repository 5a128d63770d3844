// Package safezone provides models and repositories for subject-owned safe
// zones. Zones are soft-deleted (deactivated) so alert history keeps its
// referential integrity.
package safezone

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kinpoint/kinpoint/internal/geo"
)

// Common errors for safe zone operations.
var (
	ErrZoneNotFound  = errors.New("safe zone not found")
	ErrInvalidRadius = errors.New("safe zone radius must be positive")
)

// Zone is a circular safe area owned by one subject.
type Zone struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Name         string    `json:"name"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	RadiusMeters float64   `json:"radius_meters"`
	Active       bool      `json:"active"`
	NotifyEnter  bool      `json:"notify_enter"`
	NotifyExit   bool      `json:"notify_exit"`
	CreatedAt    time.Time `json:"created_at"`
}

// Center returns the zone's center point.
func (z *Zone) Center() geo.Point {
	return geo.Point{Lat: z.Lat, Lon: z.Lon}
}

// Contains reports whether p falls within the zone radius.
func (z *Zone) Contains(p geo.Point) bool {
	return geo.DistanceMeters(z.Center(), p) <= z.RadiusMeters
}

// Repository defines the interface for safe zone data operations.
type Repository interface {
	// Insert stores a new zone. Radius must be strictly positive.
	Insert(ctx context.Context, zone *Zone) error

	// ActiveForOwner returns the owner's active zones.
	ActiveForOwner(ctx context.Context, ownerID string) ([]*Zone, error)

	// GetByID retrieves a zone, active or not.
	GetByID(ctx context.Context, id string) (*Zone, error)

	// Deactivate soft-deletes a zone. The row is kept for alert history.
	Deactivate(ctx context.Context, id, ownerID string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	zones map[string]*Zone
}

// NewInMemoryRepository creates a new in-memory safe zone repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{zones: make(map[string]*Zone)}
}

// Insert stores a new zone.
func (r *InMemoryRepository) Insert(ctx context.Context, zone *Zone) error {
	if zone.RadiusMeters <= 0 {
		return ErrInvalidRadius
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *zone
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	zone.ID = cp.ID
	zone.CreatedAt = cp.CreatedAt

	r.zones[cp.ID] = &cp
	return nil
}

// ActiveForOwner returns the owner's active zones.
func (r *InMemoryRepository) ActiveForOwner(ctx context.Context, ownerID string) ([]*Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Zone
	for _, z := range r.zones {
		if z.OwnerID == ownerID && z.Active {
			cp := *z
			out = append(out, &cp)
		}
	}
	return out, nil
}

// GetByID retrieves a zone.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Zone, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	z, ok := r.zones[id]
	if !ok {
		return nil, ErrZoneNotFound
	}
	cp := *z
	return &cp, nil
}

// Deactivate soft-deletes a zone.
func (r *InMemoryRepository) Deactivate(ctx context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	z, ok := r.zones[id]
	if !ok || z.OwnerID != ownerID {
		return ErrZoneNotFound
	}
	z.Active = false
	return nil
}
