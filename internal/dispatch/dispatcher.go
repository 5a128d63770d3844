// Package dispatch runs the per-sample pipeline: validate, serialize per
// subject, persist, analyze, project findings into alerts, resolve the
// group audience, and fan events out to delivery channels.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kinpoint/kinpoint/internal/alert"
	"github.com/kinpoint/kinpoint/internal/authz"
	"github.com/kinpoint/kinpoint/internal/location"
	"github.com/kinpoint/kinpoint/internal/membership"
	"github.com/kinpoint/kinpoint/internal/risk"
	"github.com/kinpoint/kinpoint/internal/stream"
	"github.com/kinpoint/kinpoint/internal/suggest"
)

// Stage tracks how far a sample progressed through the pipeline.
type Stage string

// Pipeline stages, in order.
const (
	StageIngested         Stage = "INGESTED"
	StagePersisted        Stage = "PERSISTED"
	StageAnalyzed         Stage = "ANALYZED"
	StageAudienceResolved Stage = "AUDIENCE_RESOLVED"
	StageDelivered        Stage = "DELIVERED"
)

// LowBatteryThreshold is the battery percentage below which ingestion
// creates a low-battery alert, independent of the risk detectors.
const LowBatteryThreshold = 20

// DefaultCycleTimeout is the soft bound on one analysis-and-dispatch cycle.
// Persistence is still honored past it; only alerting may be cut short.
const DefaultCycleTimeout = 5 * time.Second

// IngestResult reports what one ingestion cycle produced, for caller-side
// response composition.
type IngestResult struct {
	Sample      *location.Sample     `json:"sample"`
	Findings    []risk.Finding       `json:"findings"`
	Prediction  *risk.Prediction     `json:"prediction,omitempty"`
	Suggestions []suggest.Suggestion `json:"suggestions"`
	Alerts      []*alert.Alert       `json:"alerts"`
	Channels    []string             `json:"channels"`
	Stage       Stage                `json:"stage"`
}

// Dispatcher owns the ingestion pipeline. Safe for concurrent use; samples
// for the same subject are serialized, different subjects run in parallel.
type Dispatcher struct {
	samples     location.Repository
	alerts      alert.Repository
	memberships membership.Repository
	resolver    *authz.Resolver
	analyzer    *risk.Analyzer
	publisher   stream.Publisher
	metrics     *Metrics
	logger      *slog.Logger

	locks        *subjectLocks
	cycleTimeout time.Duration
	clock        func() time.Time
}

// NewDispatcher creates a dispatcher. Metrics may be nil.
func NewDispatcher(
	samples location.Repository,
	alerts alert.Repository,
	memberships membership.Repository,
	resolver *authz.Resolver,
	analyzer *risk.Analyzer,
	publisher stream.Publisher,
	metrics *Metrics,
	logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		samples:      samples,
		alerts:       alerts,
		memberships:  memberships,
		resolver:     resolver,
		analyzer:     analyzer,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
		locks:        newSubjectLocks(),
		cycleTimeout: DefaultCycleTimeout,
		clock:        time.Now,
	}
}

// Ingest runs the full pipeline for one sample. Persistence failure aborts
// the cycle and is returned to the caller; analysis and delivery failures
// degrade, because the sample is already durable by then.
func (d *Dispatcher) Ingest(ctx context.Context, sample *location.Sample) (*IngestResult, error) {
	if err := validateSample(sample); err != nil {
		if d.metrics != nil {
			d.metrics.IncIngestFailures()
		}
		return nil, err
	}

	entry := d.locks.acquire(sample.SubjectID)
	defer d.locks.release(sample.SubjectID, entry)

	if d.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cycleTimeout)
		defer cancel()
	}

	start := d.clock()
	now := start
	if sample.RecordedAt.IsZero() {
		sample.RecordedAt = now
	}

	res := &IngestResult{Sample: sample, Stage: StageIngested}

	if err := d.samples.Append(ctx, sample); err != nil {
		if d.metrics != nil {
			d.metrics.IncIngestFailures()
		}
		return nil, fmt.Errorf("%w: append sample: %w", ErrStoreUnavailable, err)
	}
	res.Stage = StagePersisted
	if d.metrics != nil {
		d.metrics.IncSamplesIngested()
	}

	if sample.BatteryLevel != nil && *sample.BatteryLevel < LowBatteryThreshold {
		a := &alert.Alert{
			SubjectID: sample.SubjectID,
			Type:      alert.TypeBatteryLow,
			Message:   fmt.Sprintf("Battery at %d%%", *sample.BatteryLevel),
			Severity:  alert.SeverityLow,
			Lat:       &sample.Lat,
			Lon:       &sample.Lon,
		}
		d.persistAlert(ctx, res, a)
	}

	assessment := d.analyzer.Analyze(ctx, sample, now)
	res.Findings = assessment.Findings
	res.Prediction = assessment.Prediction
	for _, f := range assessment.Findings {
		if d.metrics != nil {
			d.metrics.IncFindings(string(f.Kind))
		}
		d.persistAlert(ctx, res, alertFromFinding(sample, f))
	}
	res.Stage = StageAnalyzed

	res.Suggestions = suggest.Compose(res.Findings)

	groups, err := d.memberships.GroupsFor(ctx, sample.SubjectID)
	if err != nil {
		// The sample is durable; losing this delivery is acceptable.
		d.logger.Error("audience resolution failed",
			"subject_id", sample.SubjectID, "error", err)
		d.observeCycle(start)
		return res, nil
	}
	res.Stage = StageAudienceResolved

	d.deliver(ctx, res, groups)
	d.observeCycle(start)
	return res, nil
}

// deliver emits the location update and every created alert to each group
// channel. Fire-and-forget: per-channel failures are logged, counted, and
// never surfaced to the ingesting caller.
func (d *Dispatcher) deliver(ctx context.Context, res *IngestResult, groups []string) {
	if len(groups) == 0 {
		res.Stage = StageDelivered
		return
	}

	locEvent, err := stream.NewEvent(stream.EventLocationUpdate, res.Sample)
	if err != nil {
		d.logger.Error("encode location event failed",
			"subject_id", res.Sample.SubjectID, "error", err)
		return
	}

	for _, groupID := range groups {
		channel := stream.GroupChannel(groupID)
		d.publish(ctx, channel, locEvent)
		res.Channels = append(res.Channels, channel)

		for _, a := range res.Alerts {
			alertEvent, err := stream.NewEvent(stream.EventAlert, a)
			if err != nil {
				d.logger.Error("encode alert event failed", "alert_id", a.ID, "error", err)
				continue
			}
			d.publish(ctx, channel, alertEvent)
		}
	}
	res.Stage = StageDelivered
}

func (d *Dispatcher) publish(ctx context.Context, channel string, event *stream.Event) {
	if err := d.publisher.Publish(ctx, channel, event); err != nil {
		if d.metrics != nil {
			d.metrics.IncDeliveryFailures()
		}
		d.logger.Warn("channel delivery failed",
			"channel", channel, "event_type", event.Type, "error", err)
	}
}

// persistAlert inserts the alert and queues it for delivery. An alert that
// cannot be stored is not delivered either; alerts always follow the
// persist-then-deliver path.
func (d *Dispatcher) persistAlert(ctx context.Context, res *IngestResult, a *alert.Alert) {
	if err := d.alerts.Insert(ctx, a); err != nil {
		d.logger.Error("persist alert failed",
			"subject_id", a.SubjectID, "alert_type", string(a.Type), "error", err)
		return
	}
	if d.metrics != nil {
		d.metrics.IncAlertsCreated(string(a.Type))
	}
	res.Alerts = append(res.Alerts, a)
}

func (d *Dispatcher) observeCycle(start time.Time) {
	if d.metrics != nil {
		d.metrics.ObserveIngestDuration(d.clock().Sub(start).Seconds())
	}
}

func validateSample(s *location.Sample) error {
	if s.SubjectID == "" {
		return &ValidationError{Field: "subject_id", Reason: "must not be empty"}
	}
	if math.IsNaN(s.Lat) || math.IsInf(s.Lat, 0) || s.Lat < -90 || s.Lat > 90 {
		return &ValidationError{Field: "lat", Reason: "must be a finite latitude"}
	}
	if math.IsNaN(s.Lon) || math.IsInf(s.Lon, 0) || s.Lon < -180 || s.Lon > 180 {
		return &ValidationError{Field: "lon", Reason: "must be a finite longitude"}
	}
	if s.BatteryLevel != nil && (*s.BatteryLevel < 0 || *s.BatteryLevel > 100) {
		return &ValidationError{Field: "battery_level", Reason: "must be between 0 and 100"}
	}
	return nil
}

// alertFromFinding projects one risk finding into a stored alert record.
func alertFromFinding(sample *location.Sample, f risk.Finding) *alert.Alert {
	a := &alert.Alert{
		SubjectID: sample.SubjectID,
		Severity:  alert.Severity(f.Severity),
		Lat:       &sample.Lat,
		Lon:       &sample.Lon,
	}

	switch f.Kind {
	case risk.KindTrajectoryDeviation:
		a.Type = alert.TypeTrajectoryDeviation
		a.Message = f.Reason
		if f.DistanceKm > 0 {
			a.Message = fmt.Sprintf("%s (%.2f km from usual range)", f.Reason, f.DistanceKm)
		} else if f.SpeedKmh > 0 {
			a.Message = fmt.Sprintf("%s (%.2f km/h)", f.Reason, f.SpeedKmh)
		}
	case risk.KindProlongedStop:
		a.Type = alert.TypeProlongedStop
		a.Message = fmt.Sprintf("%s (%d minutes)", f.Reason, f.Minutes)
	case risk.KindDangerousArea:
		a.Type = alert.TypeDangerousArea
		a.Message = fmt.Sprintf("%s: %s (risk %s)", f.Reason, f.AreaName, f.RiskLevel)
	case risk.KindSuspiciousCharging:
		a.Type = alert.TypeSuspiciousCharging
		a.Message = f.Reason
	default:
		a.Type = alert.Type(f.Kind)
		a.Message = f.Reason
	}
	return a
}
