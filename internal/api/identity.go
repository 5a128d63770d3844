package api

import (
	"net/http"

	"github.com/kinpoint/kinpoint/internal/middleware"
)

// SubjectIDHeader carries the authenticated caller's subject ID. Session
// authentication lives in front of this service; by the time a request
// arrives here the header is trusted.
const SubjectIDHeader = "X-Subject-ID"

// callerID extracts the caller's subject ID from the identity header and
// records it on the request context for logging. When the header is absent
// it writes a 401 and returns false.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get(SubjectIDHeader)
	if id == "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthRequired, "Missing "+SubjectIDHeader+" header")
		return "", false
	}

	ctx := middleware.SetSubjectID(r.Context(), id)
	*r = *r.WithContext(ctx)
	middleware.UpdateResponseContext(w, ctx)
	return id, true
}
