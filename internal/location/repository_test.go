package location

import (
	"context"
	"errors"
	"testing"
	"time"
)

func appendAt(t *testing.T, repo *InMemoryRepository, subjectID string, lat, lon float64, at time.Time) *Sample {
	t.Helper()
	s := &Sample{SubjectID: subjectID, Lat: lat, Lon: lon, RecordedAt: at}
	if err := repo.Append(context.Background(), s); err != nil {
		t.Fatalf("append: %v", err)
	}
	return s
}

func TestRecentNewestFirst(t *testing.T) {
	repo := NewInMemoryRepository()
	now := time.Now()

	appendAt(t, repo, "kid", 1, 1, now.Add(-3*time.Hour))
	appendAt(t, repo, "kid", 2, 2, now.Add(-1*time.Hour))
	appendAt(t, repo, "kid", 3, 3, now.Add(-2*time.Hour))
	appendAt(t, repo, "other", 9, 9, now)

	got, err := repo.Recent(context.Background(), "kid", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("samples = %d, want 2 (limited)", len(got))
	}
	if got[0].Lat != 2 || got[1].Lat != 3 {
		t.Errorf("order = %.0f, %.0f; want newest first (2 then 3)", got[0].Lat, got[1].Lat)
	}
}

func TestLatest(t *testing.T) {
	repo := NewInMemoryRepository()
	now := time.Now()

	if _, err := repo.Latest(context.Background(), "kid"); !errors.Is(err, ErrSampleNotFound) {
		t.Errorf("Latest(no samples) = %v, want ErrSampleNotFound", err)
	}

	appendAt(t, repo, "kid", 1, 1, now.Add(-time.Hour))
	newest := appendAt(t, repo, "kid", 2, 2, now)

	got, err := repo.Latest(context.Background(), "kid")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.ID != newest.ID {
		t.Errorf("latest = %s, want %s", got.ID, newest.ID)
	}
}

func TestEnvelopeBetweenExcludesUpperBound(t *testing.T) {
	repo := NewInMemoryRepository()
	base := time.Now().Add(-24 * time.Hour)

	appendAt(t, repo, "kid", 10, 20, base)
	appendAt(t, repo, "kid", 12, 22, base.Add(time.Hour))
	outlier := appendAt(t, repo, "kid", 50, 60, base.Add(2*time.Hour))

	env, err := repo.EnvelopeBetween(context.Background(), "kid", base, outlier.RecordedAt)
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if env.Count != 2 {
		t.Fatalf("count = %d, want 2 (sample at the bound excluded)", env.Count)
	}
	if env.AvgLat != 11 || env.AvgLon != 21 {
		t.Errorf("centroid = (%v, %v), want (11, 21)", env.AvgLat, env.AvgLon)
	}
	if env.MaxLat != 12 || env.MinLat != 10 {
		t.Errorf("lat span = [%v, %v], want [10, 12]", env.MinLat, env.MaxLat)
	}

	empty, err := repo.EnvelopeBetween(context.Background(), "nobody", base, time.Now())
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if empty.Count != 0 {
		t.Errorf("empty envelope count = %d, want 0", empty.Count)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	repo := NewInMemoryRepository()
	now := time.Now()

	appendAt(t, repo, "kid", 1, 1, now.Add(-72*time.Hour))
	appendAt(t, repo, "kid", 2, 2, now.Add(-48*time.Hour))
	appendAt(t, repo, "kid", 3, 3, now.Add(-time.Hour))

	removed, err := repo.DeleteOlderThan(context.Background(), "kid", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	left, err := repo.Recent(context.Background(), "kid", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(left) != 1 || left[0].Lat != 3 {
		t.Errorf("remaining = %+v, want only the fresh sample", left)
	}
}

func TestChargingClusters(t *testing.T) {
	repo := NewInMemoryRepository()
	now := time.Now()
	ctx := context.Background()

	// Three charges at home, one while moving. Same coordinates land in
	// the same ~100 m grid cell.
	for i := 0; i < 3; i++ {
		s := &Sample{
			SubjectID: "kid", Lat: 10.0001, Lon: 20.0001, Charging: true,
			RecordedAt: now.Add(-time.Duration(i) * time.Hour),
		}
		if err := repo.Append(ctx, s); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.Append(ctx, &Sample{
		SubjectID: "kid", Lat: 30, Lon: 40, Charging: true,
		RecordedAt: now.Add(-time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	cells, err := repo.ChargingClusters(ctx, "kid", now.Add(-24*time.Hour), 2)
	if err != nil {
		t.Fatalf("clusters: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("cells = %d, want 1 (single-visit cell filtered)", len(cells))
	}
	if cells[0].Count != 3 {
		t.Errorf("count = %d, want 3", cells[0].Count)
	}
}
