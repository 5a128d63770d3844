package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/kinpoint/kinpoint/internal/audit"
	"github.com/kinpoint/kinpoint/internal/location"
	"github.com/kinpoint/kinpoint/internal/membership"
)

func TestAccessLogRecordsViews(t *testing.T) {
	e := newTestEnv(t)
	e.join(t, "fam", "dad", membership.RoleAdmin)
	e.join(t, "fam", "kid", membership.RoleMember)

	if err := e.samples.Append(context.Background(), &location.Sample{
		SubjectID: "kid", Lat: 1, Lon: 1, RecordedAt: time.Now(),
	}); err != nil {
		t.Fatalf("append sample: %v", err)
	}

	// An allowed view and a denied attempt both leave records.
	if rr := e.do(t, http.MethodGet, "/api/v1/subjects/kid/location", "dad", nil); rr.Code != http.StatusOK {
		t.Fatalf("dad's view status = %d, want 200", rr.Code)
	}
	if rr := e.do(t, http.MethodGet, "/api/v1/subjects/kid/location", "stranger", nil); rr.Code != http.StatusForbidden {
		t.Fatalf("stranger's view status = %d, want 403", rr.Code)
	}

	rr := e.do(t, http.MethodGet, "/api/v1/subjects/kid/access-log", "kid", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("access log status = %d, want 200, body: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Records []audit.AccessRecord `json:"records"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode access log: %v", err)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(resp.Records))
	}
	// Newest first: the stranger's denial, then dad's allowed view.
	if resp.Records[0].ObserverID != "stranger" || resp.Records[0].Decision != audit.DecisionDenied {
		t.Errorf("first record = %+v, want stranger denied", resp.Records[0])
	}
	if resp.Records[1].ObserverID != "dad" || resp.Records[1].Decision != audit.DecisionAllowed {
		t.Errorf("second record = %+v, want dad allowed", resp.Records[1])
	}
}

func TestAccessLogVisibleToSubjectOnly(t *testing.T) {
	e := newTestEnv(t)
	e.join(t, "fam", "dad", membership.RoleAdmin)
	e.join(t, "fam", "kid", membership.RoleMember)

	// Even the group admin cannot read someone else's access log.
	rr := e.do(t, http.MethodGet, "/api/v1/subjects/kid/access-log", "dad", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
	if detail := decodeError(t, rr); detail.Code != ErrCodeAuthorizationDenied {
		t.Errorf("code = %q, want %q", detail.Code, ErrCodeAuthorizationDenied)
	}
}

func TestAccessLogEmptyForQuietSubject(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodGet, "/api/v1/subjects/kid/access-log", "kid", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp struct {
		Records []audit.AccessRecord `json:"records"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode access log: %v", err)
	}
	if len(resp.Records) != 0 {
		t.Errorf("records = %d, want 0", len(resp.Records))
	}
}
