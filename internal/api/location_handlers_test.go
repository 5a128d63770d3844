package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/kinpoint/kinpoint/internal/dispatch"
	"github.com/kinpoint/kinpoint/internal/geo"
	"github.com/kinpoint/kinpoint/internal/grant"
	"github.com/kinpoint/kinpoint/internal/location"
	"github.com/kinpoint/kinpoint/internal/membership"
)

func intp(v int) *int { return &v }

func TestIngestEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.join(t, "fam", "kid", membership.RoleMember)

	rr := e.do(t, http.MethodPost, "/api/v1/locations", "kid", IngestRequest{
		Lat:          10.0,
		Lon:          20.0,
		BatteryLevel: intp(15),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body: %s", rr.Code, rr.Body.String())
	}

	var res dispatch.IngestResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Stage != dispatch.StageDelivered {
		t.Errorf("stage = %s, want %s", res.Stage, dispatch.StageDelivered)
	}
	if len(res.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1 (low battery)", len(res.Alerts))
	}
	if res.Sample.SubjectID != "kid" {
		t.Errorf("sample subject = %q, want kid (caller, not body)", res.Sample.SubjectID)
	}
}

func TestIngestEndpointValidation(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodPost, "/api/v1/locations", "kid", IngestRequest{
		Lat: 200.0,
		Lon: 0,
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if detail := decodeError(t, rr); detail.Code != ErrCodeValidation {
		t.Errorf("code = %q, want %q", detail.Code, ErrCodeValidation)
	}
}

func TestLatestPrivilegedLookup(t *testing.T) {
	e := newTestEnv(t)
	e.join(t, "fam", "dad", membership.RoleAdmin)
	e.join(t, "fam", "kid", membership.RoleMember)

	if err := e.samples.Append(context.Background(), &location.Sample{
		SubjectID: "kid", Lat: 1, Lon: 2, RecordedAt: time.Now(),
	}); err != nil {
		t.Fatalf("append sample: %v", err)
	}

	t.Run("group admin allowed", func(t *testing.T) {
		rr := e.do(t, http.MethodGet, "/api/v1/subjects/kid/location", "dad", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body: %s", rr.Code, rr.Body.String())
		}
		var sample location.Sample
		if err := json.Unmarshal(rr.Body.Bytes(), &sample); err != nil {
			t.Fatalf("decode sample: %v", err)
		}
		if sample.Lat != 1 || sample.Lon != 2 {
			t.Errorf("got (%v,%v), want (1,2)", sample.Lat, sample.Lon)
		}
	})

	t.Run("stranger denied, not not-found", func(t *testing.T) {
		rr := e.do(t, http.MethodGet, "/api/v1/subjects/kid/location", "stranger", nil)
		if rr.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rr.Code)
		}
		if detail := decodeError(t, rr); detail.Code != ErrCodeAuthorizationDenied {
			t.Errorf("code = %q, want %q", detail.Code, ErrCodeAuthorizationDenied)
		}
	})

	t.Run("authorized but no samples is 404", func(t *testing.T) {
		e.join(t, "fam", "grandma", membership.RoleMember)
		rr := e.do(t, http.MethodGet, "/api/v1/subjects/grandma/location", "dad", nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rr.Code)
		}
	})
}

func TestCircleListing(t *testing.T) {
	e := newTestEnv(t)
	e.join(t, "fam", "mom", membership.RoleAdmin)
	e.join(t, "fam", "kid", membership.RoleMember)
	e.join(t, "fam", "teen", membership.RoleMember)

	now := time.Now()
	for _, s := range []*location.Sample{
		{SubjectID: "kid", Lat: 1, Lon: 1, BatteryLevel: intp(80), RecordedAt: now},
		{SubjectID: "teen", Lat: 2, Lon: 2, BatteryLevel: intp(60), RecordedAt: now},
	} {
		if err := e.samples.Append(context.Background(), s); err != nil {
			t.Fatalf("append sample: %v", err)
		}
	}

	// teen revokes location to mom; kid revokes only battery.
	if err := e.grants.UpsertGrant(context.Background(), grant.Grant{
		GrantorID: "teen", GranteeID: "mom",
	}); err != nil {
		t.Fatalf("upsert grant: %v", err)
	}
	if err := e.grants.UpsertGrant(context.Background(), grant.Grant{
		GrantorID: "kid", GranteeID: "mom",
		ViewLocation: true, ViewHistory: true, SendMessages: true,
	}); err != nil {
		t.Fatalf("upsert grant: %v", err)
	}

	rr := e.do(t, http.MethodGet, "/api/v1/locations", "mom", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Positions []CirclePosition `json:"positions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode positions: %v", err)
	}

	if len(resp.Positions) != 1 {
		t.Fatalf("positions = %d, want 1 (teen revoked location)", len(resp.Positions))
	}
	pos := resp.Positions[0]
	if pos.SubjectID != "kid" {
		t.Errorf("subject = %q, want kid", pos.SubjectID)
	}
	if pos.BatteryLevel != nil {
		t.Errorf("battery = %v, want stripped (revoked)", *pos.BatteryLevel)
	}
	if len(pos.Geohash) != geo.GeohashPrecision {
		t.Errorf("geohash = %q, want %d characters", pos.Geohash, geo.GeohashPrecision)
	}
}

func TestHistoryRequiresCapability(t *testing.T) {
	e := newTestEnv(t)
	e.join(t, "fam", "kid", membership.RoleMember)
	e.join(t, "fam", "aunt", membership.RoleMember)

	for i := 0; i < 3; i++ {
		if err := e.samples.Append(context.Background(), &location.Sample{
			SubjectID: "kid", Lat: float64(i), Lon: 0,
			RecordedAt: time.Now().Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("append sample: %v", err)
		}
	}

	// Plain co-membership is not enough for history.
	rr := e.do(t, http.MethodGet, "/api/v1/subjects/kid/history", "aunt", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 without history grant", rr.Code)
	}

	if err := e.grants.UpsertGrant(context.Background(), grant.Grant{
		GrantorID: "kid", GranteeID: "aunt", ViewHistory: true,
	}); err != nil {
		t.Fatalf("upsert grant: %v", err)
	}

	rr = e.do(t, http.MethodGet, "/api/v1/subjects/kid/history?limit=2", "aunt", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Samples []location.Sample `json:"samples"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(resp.Samples) != 2 {
		t.Errorf("samples = %d, want limit 2", len(resp.Samples))
	}
}
