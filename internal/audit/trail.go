package audit

import (
	"context"
	"log/slog"

	"github.com/kinpoint/kinpoint/internal/middleware"
)

// Trail writes access records for visibility checks. Recording is
// best-effort: a failed insert is logged and never fails the request
// that triggered the check.
type Trail struct {
	records Repository
	logger  *slog.Logger
}

// NewTrail creates an access trail over the given repository.
func NewTrail(records Repository, logger *slog.Logger) *Trail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{records: records, logger: logger}
}

// RecordAccess stores the outcome of one visibility check. The request ID
// is taken from the context when present.
func (t *Trail) RecordAccess(ctx context.Context, observerID, subjectID, capability string, allowed bool) {
	decision := DecisionDenied
	if allowed {
		decision = DecisionAllowed
	}

	rec := &AccessRecord{
		ObserverID: observerID,
		SubjectID:  subjectID,
		Capability: capability,
		Decision:   decision,
		RequestID:  middleware.GetRequestID(ctx),
	}
	if err := t.records.Insert(ctx, rec); err != nil {
		t.logger.LogAttrs(ctx, slog.LevelError, "failed to record access",
			slog.String("observer_id", observerID),
			slog.String("subject_id", subjectID),
			slog.String("capability", capability),
			slog.String("error", err.Error()),
		)
	}
}
