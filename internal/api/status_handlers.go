package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/kinpoint/kinpoint/internal/authz"
	"github.com/kinpoint/kinpoint/internal/grant"
	"github.com/kinpoint/kinpoint/internal/keepalive"
	"github.com/kinpoint/kinpoint/internal/location"
	"github.com/kinpoint/kinpoint/internal/membership"
)

// Tranquility grades a subject's presence by the age of their last sample.
// No coordinates are exposed, so even reassurance-only observers may read it.
const (
	TranquilitySafe      = "safe"      // last sample under 15 minutes old
	TranquilityOK        = "ok"        // under 1 hour
	TranquilityAttention = "attention" // under 3 hours
	TranquilityConcern   = "concern"   // older, or never reported
)

// Presence age bounds for the tranquility grades.
const (
	tranquilitySafeWindow      = 15 * time.Minute
	tranquilityOKWindow        = time.Hour
	tranquilityAttentionWindow = 3 * time.Hour
)

// TranquilityResponse is the coordinate-free presence summary.
type TranquilityResponse struct {
	SubjectID  string     `json:"subject_id"`
	Status     string     `json:"status"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// StatusHandlers holds dependencies for presence and supervision status
// endpoints.
type StatusHandlers struct {
	samples     location.Repository
	resolver    *authz.Resolver
	memberships membership.Repository
	grants      grant.Repository
	supervisor  *keepalive.Supervisor
	clock       func() time.Time
}

// NewStatusHandlers creates a new StatusHandlers instance.
func NewStatusHandlers(samples location.Repository, resolver *authz.Resolver, memberships membership.Repository, grants grant.Repository, supervisor *keepalive.Supervisor) *StatusHandlers {
	return &StatusHandlers{
		samples:     samples,
		resolver:    resolver,
		memberships: memberships,
		grants:      grants,
		supervisor:  supervisor,
		clock:       time.Now,
	}
}

// TranquilityFor grades the age of the subject's newest sample.
func TranquilityFor(sample *location.Sample, now time.Time) string {
	if sample == nil {
		return TranquilityConcern
	}
	age := now.Sub(sample.RecordedAt)
	switch {
	case age < tranquilitySafeWindow:
		return TranquilitySafe
	case age < tranquilityOKWindow:
		return TranquilityOK
	case age < tranquilityAttentionWindow:
		return TranquilityAttention
	default:
		return TranquilityConcern
	}
}

// Tranquility handles GET /api/v1/subjects/{id}/status. Visible to group
// co-members, anyone the subject has a grant row for (even with every flag
// revoked), and the privileged chain.
func (h *StatusHandlers) Tranquility(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	subjectID := r.PathValue("id")

	allowed, err := h.mayReadPresence(r, caller, subjectID)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Authorization check failed")
		return
	}
	if !allowed {
		WriteError(w, r.Context(), http.StatusForbidden, ErrCodeAuthorizationDenied, "Not authorized to view this subject's status")
		return
	}

	resp := TranquilityResponse{SubjectID: subjectID}
	sample, err := h.samples.Latest(r.Context(), subjectID)
	switch {
	case errors.Is(err, location.ErrSampleNotFound):
		resp.Status = TranquilityFor(nil, h.clock())
	case err != nil:
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load presence")
		return
	default:
		resp.Status = TranquilityFor(sample, h.clock())
		resp.LastSeenAt = &sample.RecordedAt
	}

	writeJSON(w, http.StatusOK, resp)
}

// mayReadPresence is deliberately wider than the location capability: a
// grant row with every flag off still means the subject chose to share
// reassurance with this observer.
func (h *StatusHandlers) mayReadPresence(r *http.Request, caller, subjectID string) (bool, error) {
	if caller == subjectID {
		return true, nil
	}

	shared, err := h.memberships.SharesGroup(r.Context(), caller, subjectID)
	if err != nil {
		return false, err
	}
	if shared {
		return true, nil
	}

	if _, err := h.grants.GetGrant(r.Context(), subjectID, caller); err == nil {
		return true, nil
	} else if !errors.Is(err, grant.ErrGrantNotFound) {
		return false, err
	}

	return h.resolver.CanView(r.Context(), caller, subjectID, authz.CapabilityLocation)
}

// Keepalive handles GET /api/v1/system/keepalive - the supervision loop's
// self-report.
func (h *StatusHandlers) Keepalive(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.supervisor.Status())
}
