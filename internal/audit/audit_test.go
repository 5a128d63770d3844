package audit

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestInMemoryRepository_RecentForSubject(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	for i, obs := range []string{"dad", "mom", "stranger"} {
		rec := &AccessRecord{
			ObserverID: obs,
			SubjectID:  "kid",
			Capability: "location",
			Decision:   DecisionAllowed,
			CreatedAt:  time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := repo.Insert(ctx, rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if rec.ID == "" {
			t.Fatal("insert did not assign an ID")
		}
	}
	if err := repo.Insert(ctx, &AccessRecord{
		ObserverID: "dad", SubjectID: "other", Capability: "location",
		Decision: DecisionDenied,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.RecentForSubject(ctx, "kid", 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2 (limited)", len(got))
	}
	if got[0].ObserverID != "stranger" || got[1].ObserverID != "mom" {
		t.Errorf("order = %s, %s; want newest first", got[0].ObserverID, got[1].ObserverID)
	}
}

func TestInMemoryRepository_DeleteOlderThan(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	for _, age := range []time.Duration{48 * time.Hour, 2 * time.Hour} {
		if err := repo.Insert(ctx, &AccessRecord{
			ObserverID: "dad", SubjectID: "kid", Capability: "location",
			Decision: DecisionAllowed, CreatedAt: now.Add(-age),
		}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	removed, err := repo.DeleteOlderThan(ctx, "kid", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	left, _ := repo.RecentForSubject(ctx, "kid", 0)
	if len(left) != 1 {
		t.Errorf("remaining = %d, want 1", len(left))
	}
}

type failingRepo struct{}

func (failingRepo) Insert(ctx context.Context, rec *AccessRecord) error {
	return errors.New("store down")
}

func (failingRepo) RecentForSubject(ctx context.Context, subjectID string, limit int) ([]AccessRecord, error) {
	return nil, errors.New("store down")
}

func (failingRepo) DeleteOlderThan(ctx context.Context, subjectID string, cutoff time.Time) (int64, error) {
	return 0, errors.New("store down")
}

func TestTrailRecordsDecisions(t *testing.T) {
	repo := NewInMemoryRepository()
	trail := NewTrail(repo, slog.Default())
	ctx := context.Background()

	trail.RecordAccess(ctx, "dad", "kid", "location", true)
	trail.RecordAccess(ctx, "stranger", "kid", "location", false)

	got, err := repo.RecentForSubject(ctx, "kid", 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[0].Decision != DecisionDenied || got[1].Decision != DecisionAllowed {
		t.Errorf("decisions = %s, %s; want denied then allowed newest first",
			got[0].Decision, got[1].Decision)
	}
}

func TestTrailSurvivesStoreFailure(t *testing.T) {
	trail := NewTrail(failingRepo{}, slog.Default())

	// Must not panic or propagate the failure.
	trail.RecordAccess(context.Background(), "dad", "kid", "location", true)
}
