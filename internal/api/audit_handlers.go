package api

import (
	"net/http"
	"strconv"

	"github.com/kinpoint/kinpoint/internal/audit"
)

// DefaultAccessLogLimit caps access log listings when no limit is given.
const DefaultAccessLogLimit = 50

// AuditHandlers holds dependencies for access transparency HTTP handlers.
type AuditHandlers struct {
	records audit.Repository
}

// NewAuditHandlers creates a new AuditHandlers instance.
func NewAuditHandlers(records audit.Repository) *AuditHandlers {
	return &AuditHandlers{records: records}
}

// AccessLog handles GET /api/v1/subjects/{id}/access-log. Only the subject
// themselves can see who looked at their data.
func (h *AuditHandlers) AccessLog(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}
	subjectID := r.PathValue("id")

	if caller != subjectID {
		WriteError(w, r.Context(), http.StatusForbidden, ErrCodeAuthorizationDenied,
			"Access logs are visible to their subject only")
		return
	}

	limit := DefaultAccessLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.records.RecentForSubject(r.Context(), subjectID, limit)
	if err != nil {
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to load access log")
		return
	}
	if records == nil {
		records = []audit.AccessRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}
