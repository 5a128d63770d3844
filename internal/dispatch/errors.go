package dispatch

import (
	"errors"
	"fmt"
)

// Common errors for the ingestion pipeline.
var (
	// ErrStoreUnavailable wraps persistence failures. The sample is not
	// considered ingested; retrying the whole call is safe because a
	// duplicate append is tolerable.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrAuthorizationDenied marks a privileged request that failed the
	// authorization resolver. It is surfaced as a distinct denial, never
	// downgraded to empty results.
	ErrAuthorizationDenied = errors.New("authorization denied")
)

// ValidationError rejects a malformed sample before any side effect.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
