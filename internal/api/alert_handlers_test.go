package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/kinpoint/kinpoint/internal/alert"
	"github.com/kinpoint/kinpoint/internal/membership"
)

func TestAlertListAndMarkRead(t *testing.T) {
	e := newTestEnv(t)

	a := &alert.Alert{
		SubjectID: "kid",
		Type:      alert.TypeBatteryLow,
		Message:   "Battery at 10%",
		Severity:  alert.SeverityLow,
	}
	if err := e.alerts.Insert(context.Background(), a); err != nil {
		t.Fatalf("insert alert: %v", err)
	}

	rr := e.do(t, http.MethodGet, "/api/v1/alerts", "kid", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp struct {
		Alerts []alert.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode alerts: %v", err)
	}
	if len(resp.Alerts) != 1 || resp.Alerts[0].Read {
		t.Fatalf("alerts = %+v, want one unread", resp.Alerts)
	}

	rr = e.do(t, http.MethodPost, "/api/v1/alerts/"+a.ID+"/read", "kid", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("mark read status = %d, want 200", rr.Code)
	}

	rr = e.do(t, http.MethodPost, "/api/v1/alerts/no-such-alert/read", "kid", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown alert status = %d, want 404", rr.Code)
	}
}

func TestAlertsForSubjectRequireAuthorization(t *testing.T) {
	e := newTestEnv(t)
	e.join(t, "fam", "dad", membership.RoleAdmin)
	e.join(t, "fam", "kid", membership.RoleMember)

	if err := e.alerts.Insert(context.Background(), &alert.Alert{
		SubjectID: "kid", Type: alert.TypePanic, Message: "help", Severity: alert.SeverityCritical,
	}); err != nil {
		t.Fatalf("insert alert: %v", err)
	}

	rr := e.do(t, http.MethodGet, "/api/v1/subjects/kid/alerts", "dad", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want 200", rr.Code)
	}

	rr = e.do(t, http.MethodGet, "/api/v1/subjects/kid/alerts", "stranger", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("stranger status = %d, want 403", rr.Code)
	}
}

func TestRetentionPolicyEndpoints(t *testing.T) {
	e := newTestEnv(t)

	t.Run("default window", func(t *testing.T) {
		rr := e.do(t, http.MethodGet, "/api/v1/retention", "kid", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		var policy alert.RetentionPolicy
		if err := json.Unmarshal(rr.Body.Bytes(), &policy); err != nil {
			t.Fatalf("decode policy: %v", err)
		}
		if policy.RetentionHours != alert.DefaultRetentionHours {
			t.Errorf("hours = %d, want default %d", policy.RetentionHours, alert.DefaultRetentionHours)
		}
	})

	t.Run("set valid", func(t *testing.T) {
		rr := e.do(t, http.MethodPut, "/api/v1/retention", "kid", SetRetentionRequest{RetentionHours: 72})
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200, body: %s", rr.Code, rr.Body.String())
		}
		var policy alert.RetentionPolicy
		if err := json.Unmarshal(rr.Body.Bytes(), &policy); err != nil {
			t.Fatalf("decode policy: %v", err)
		}
		if policy.RetentionHours != 72 {
			t.Errorf("hours = %d, want 72", policy.RetentionHours)
		}
	})

	t.Run("out of range rejected", func(t *testing.T) {
		for _, hours := range []int{0, -5, 721} {
			rr := e.do(t, http.MethodPut, "/api/v1/retention", "kid", SetRetentionRequest{RetentionHours: hours})
			if rr.Code != http.StatusBadRequest {
				t.Errorf("hours %d: status = %d, want 400", hours, rr.Code)
			}
			if detail := decodeError(t, rr); detail.Code != ErrCodeInvalidRetention {
				t.Errorf("hours %d: code = %q, want %q", hours, detail.Code, ErrCodeInvalidRetention)
			}
		}
	})
}
