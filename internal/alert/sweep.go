package alert

import (
	"context"
	"log/slog"
	"time"
)

// SubjectLister enumerates the subjects whose history is subject to cleanup.
type SubjectLister interface {
	DistinctSubjects(ctx context.Context) ([]string, error)
}

// SampleStore is the slice of the location store the sweeper needs.
type SampleStore interface {
	DeleteOlderThan(ctx context.Context, subjectID string, cutoff time.Time) (int64, error)
}

// Sweeper enforces per-subject retention windows: expired location samples
// are removed, as are read alerts past the window. Unread alerts survive.
type Sweeper struct {
	subjects  SubjectLister
	samples   SampleStore
	alerts    Repository
	retention RetentionRepository
	accessLog SampleStore
	logger    *slog.Logger
}

// NewSweeper creates a retention sweeper.
func NewSweeper(subjects SubjectLister, samples SampleStore, alerts Repository, retention RetentionRepository, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		subjects:  subjects,
		samples:   samples,
		alerts:    alerts,
		retention: retention,
		logger:    logger,
	}
}

// SetAccessLog registers an optional access-audit store whose records are
// pruned on the same per-subject window.
func (s *Sweeper) SetAccessLog(store SampleStore) {
	s.accessLog = store
}

// SweepResult summarizes one cleanup pass.
type SweepResult struct {
	Subjects       int
	SamplesDeleted int64
	AlertsDeleted  int64
	AccessDeleted  int64
}

// Sweep runs one cleanup pass across all known subjects. Per-subject
// failures are logged and skipped so one bad subject cannot stall the pass.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	ids, err := s.subjects.DistinctSubjects(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{Subjects: len(ids)}
	for _, id := range ids {
		policy, err := s.retention.GetPolicy(ctx, id)
		if err != nil {
			s.logger.Warn("retention policy lookup failed", "subject_id", id, "error", err)
			continue
		}
		cutoff := now.Add(-policy.Window())

		deleted, err := s.samples.DeleteOlderThan(ctx, id, cutoff)
		if err != nil {
			s.logger.Warn("sample cleanup failed", "subject_id", id, "error", err)
		} else {
			res.SamplesDeleted += deleted
		}

		deleted, err = s.alerts.DeleteReadOlderThan(ctx, id, cutoff)
		if err != nil {
			s.logger.Warn("alert cleanup failed", "subject_id", id, "error", err)
		} else {
			res.AlertsDeleted += deleted
		}

		if s.accessLog != nil {
			deleted, err = s.accessLog.DeleteOlderThan(ctx, id, cutoff)
			if err != nil {
				s.logger.Warn("access log cleanup failed", "subject_id", id, "error", err)
			} else {
				res.AccessDeleted += deleted
			}
		}
	}

	if res.SamplesDeleted > 0 || res.AlertsDeleted > 0 || res.AccessDeleted > 0 {
		s.logger.Info("retention sweep completed",
			"subjects", res.Subjects,
			"samples_deleted", res.SamplesDeleted,
			"alerts_deleted", res.AlertsDeleted,
			"access_deleted", res.AccessDeleted,
		)
	}
	return res, nil
}
