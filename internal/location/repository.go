package location

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kinpoint/kinpoint/internal/geo"
)

// Repository defines the read/write contract for location samples.
// The query side is the Pattern Store Accessor the risk detectors consume:
// all reads are parameterized by subject and bounded windows.
type Repository interface {
	// Append stores a new sample. Samples are never updated or reordered.
	Append(ctx context.Context, sample *Sample) error

	// Recent returns up to limit samples for a subject, newest first.
	Recent(ctx context.Context, subjectID string, limit int) ([]*Sample, error)

	// Latest returns the newest sample for a subject, or ErrSampleNotFound.
	Latest(ctx context.Context, subjectID string) (*Sample, error)

	// EnvelopeBetween returns the statistical envelope (centroid + bounding
	// box) of the subject's samples recorded at or after since and strictly
	// before until. The exclusive upper bound lets callers summarize history
	// without the sample under analysis skewing its own baseline.
	// An envelope with Count == 0 means no history, not an error.
	EnvelopeBetween(ctx context.Context, subjectID string, since, until time.Time) (*Envelope, error)

	// FrequencyBuckets groups the subject's samples recorded at or after
	// since by ~100 m grid cell, filtered to the given hour-of-day and
	// weekday, ordered by visit count descending, capped at limit.
	FrequencyBuckets(ctx context.Context, subjectID string, hour int, weekday time.Weekday, since time.Time, limit int) ([]FrequencyCell, error)

	// ChargingClusters groups the subject's charging samples recorded at or
	// after since by grid cell, keeping cells with more than minCount visits.
	ChargingClusters(ctx context.Context, subjectID string, since time.Time, minCount int) ([]FrequencyCell, error)

	// DeleteOlderThan removes samples recorded before cutoff for a subject.
	// Returns the number of samples removed.
	DeleteOlderThan(ctx context.Context, subjectID string, cutoff time.Time) (int64, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex. Used by tests and development.
type InMemoryRepository struct {
	mu      sync.RWMutex
	samples map[string][]*Sample // subjectID -> samples ordered by RecordedAt asc
}

// NewInMemoryRepository creates a new in-memory sample repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		samples: make(map[string][]*Sample),
	}
}

// Append stores a new sample.
func (r *InMemoryRepository) Append(ctx context.Context, sample *Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *sample
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.RecordedAt.IsZero() {
		cp.RecordedAt = time.Now()
	}
	sample.ID = cp.ID
	sample.RecordedAt = cp.RecordedAt

	list := append(r.samples[cp.SubjectID], &cp)
	// Keep ascending RecordedAt order so window scans stay simple.
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].RecordedAt.Before(list[j].RecordedAt)
	})
	r.samples[cp.SubjectID] = list
	return nil
}

// Recent returns up to limit samples for a subject, newest first.
func (r *InMemoryRepository) Recent(ctx context.Context, subjectID string, limit int) ([]*Sample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.samples[subjectID]
	if limit <= 0 || limit > len(list) {
		limit = len(list)
	}

	out := make([]*Sample, 0, limit)
	for i := len(list) - 1; i >= len(list)-limit; i-- {
		cp := *list[i]
		out = append(out, &cp)
	}
	return out, nil
}

// Latest returns the newest sample for a subject.
func (r *InMemoryRepository) Latest(ctx context.Context, subjectID string) (*Sample, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.samples[subjectID]
	if len(list) == 0 {
		return nil, ErrSampleNotFound
	}
	cp := *list[len(list)-1]
	return &cp, nil
}

// EnvelopeBetween returns the statistical envelope of samples in the window.
func (r *InMemoryRepository) EnvelopeBetween(ctx context.Context, subjectID string, since, until time.Time) (*Envelope, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	env := &Envelope{}
	var sumLat, sumLon float64
	for _, s := range r.samples[subjectID] {
		if s.RecordedAt.Before(since) || !s.RecordedAt.Before(until) {
			continue
		}
		if env.Count == 0 {
			env.MinLat, env.MaxLat = s.Lat, s.Lat
			env.MinLon, env.MaxLon = s.Lon, s.Lon
		} else {
			if s.Lat < env.MinLat {
				env.MinLat = s.Lat
			}
			if s.Lat > env.MaxLat {
				env.MaxLat = s.Lat
			}
			if s.Lon < env.MinLon {
				env.MinLon = s.Lon
			}
			if s.Lon > env.MaxLon {
				env.MaxLon = s.Lon
			}
		}
		sumLat += s.Lat
		sumLon += s.Lon
		env.Count++
	}

	if env.Count > 0 {
		env.AvgLat = sumLat / float64(env.Count)
		env.AvgLon = sumLon / float64(env.Count)
	}
	return env, nil
}

// FrequencyBuckets groups samples by grid cell filtered by hour and weekday.
func (r *InMemoryRepository) FrequencyBuckets(ctx context.Context, subjectID string, hour int, weekday time.Weekday, since time.Time, limit int) ([]FrequencyCell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]*FrequencyCell)
	for _, s := range r.samples[subjectID] {
		if s.RecordedAt.Before(since) {
			continue
		}
		if s.RecordedAt.Hour() != hour || s.RecordedAt.Weekday() != weekday {
			continue
		}
		key := geo.GridKey(s.Point())
		cell, ok := counts[key]
		if !ok {
			cell = &FrequencyCell{
				Lat: geo.RoundToGrid(s.Lat),
				Lon: geo.RoundToGrid(s.Lon),
			}
			counts[key] = cell
		}
		cell.Count++
	}

	return rankCells(counts, limit), nil
}

// ChargingClusters groups charging samples by grid cell.
func (r *InMemoryRepository) ChargingClusters(ctx context.Context, subjectID string, since time.Time, minCount int) ([]FrequencyCell, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]*FrequencyCell)
	for _, s := range r.samples[subjectID] {
		if !s.Charging || s.RecordedAt.Before(since) {
			continue
		}
		key := geo.GridKey(s.Point())
		cell, ok := counts[key]
		if !ok {
			cell = &FrequencyCell{
				Lat: geo.RoundToGrid(s.Lat),
				Lon: geo.RoundToGrid(s.Lon),
			}
			counts[key] = cell
		}
		cell.Count++
	}

	ranked := rankCells(counts, 0)
	out := ranked[:0]
	for _, cell := range ranked {
		if cell.Count > minCount {
			out = append(out, cell)
		}
	}
	return out, nil
}

// DeleteOlderThan removes samples recorded before cutoff.
func (r *InMemoryRepository) DeleteOlderThan(ctx context.Context, subjectID string, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.samples[subjectID]
	kept := list[:0]
	var deleted int64
	for _, s := range list {
		if s.RecordedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	r.samples[subjectID] = kept
	return deleted, nil
}

// rankCells orders cells by count descending, breaking ties by grid key for
// reproducible output, and caps the result at limit (0 = unbounded).
func rankCells(counts map[string]*FrequencyCell, limit int) []FrequencyCell {
	out := make([]FrequencyCell, 0, len(counts))
	for _, cell := range counts {
		out = append(out, *cell)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Lat != out[j].Lat {
			return out[i].Lat < out[j].Lat
		}
		return out[i].Lon < out[j].Lon
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
