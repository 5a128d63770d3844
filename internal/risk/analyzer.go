package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/kinpoint/kinpoint/internal/geo"
	"github.com/kinpoint/kinpoint/internal/location"
	"github.com/kinpoint/kinpoint/internal/safezone"
)

// HistorySource is the slice of the location store the detectors read.
type HistorySource interface {
	Recent(ctx context.Context, subjectID string, limit int) ([]*location.Sample, error)
	Latest(ctx context.Context, subjectID string) (*location.Sample, error)
	EnvelopeBetween(ctx context.Context, subjectID string, since, until time.Time) (*location.Envelope, error)
	FrequencyBuckets(ctx context.Context, subjectID string, hour int, weekday time.Weekday, since time.Time, limit int) ([]location.FrequencyCell, error)
	ChargingClusters(ctx context.Context, subjectID string, since time.Time, minCount int) ([]location.FrequencyCell, error)
}

// ZoneSource provides the subject's active safe zones.
type ZoneSource interface {
	ActiveForOwner(ctx context.Context, ownerID string) ([]*safezone.Zone, error)
}

// Analyzer runs the five detectors against one subject's current sample.
// Stateless apart from its configuration; safe for concurrent use.
type Analyzer struct {
	cfg    Config
	hist   HistorySource
	zones  ZoneSource
	areas  []DangerArea
	logger *slog.Logger
}

// NewAnalyzer creates a risk analyzer. The danger area list is external
// configuration data; nil means no dangerous-area findings.
func NewAnalyzer(cfg Config, hist HistorySource, zones ZoneSource, areas []DangerArea, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		cfg:    cfg,
		hist:   hist,
		zones:  zones,
		areas:  areas,
		logger: logger,
	}
}

// Analyze runs every detector for the sample and collects the findings.
// Detector errors degrade to "no finding": they are logged and never block
// ingestion.
func (a *Analyzer) Analyze(ctx context.Context, sample *location.Sample, now time.Time) Assessment {
	var out Assessment

	if f, err := a.DetectTrajectoryDeviation(ctx, sample, now); err != nil {
		a.logger.Debug("trajectory detector degraded", "subject_id", sample.SubjectID, "error", err)
	} else if f != nil {
		out.Findings = append(out.Findings, *f)
	}

	if f, err := a.DetectProlongedStop(ctx, sample.SubjectID, now); err != nil {
		a.logger.Debug("prolonged stop detector degraded", "subject_id", sample.SubjectID, "error", err)
	} else if f != nil {
		out.Findings = append(out.Findings, *f)
	}

	if f := a.CheckDangerousArea(sample.Point()); f != nil {
		out.Findings = append(out.Findings, *f)
	}

	if sample.Charging {
		if f, err := a.AnalyzeCharging(ctx, sample, now); err != nil {
			a.logger.Debug("charging detector degraded", "subject_id", sample.SubjectID, "error", err)
		} else if f != nil {
			out.Findings = append(out.Findings, *f)
		}
	}

	if p, err := a.PredictDestination(ctx, sample.SubjectID, now); err != nil {
		a.logger.Debug("destination prediction degraded", "subject_id", sample.SubjectID, "error", err)
	} else {
		out.Prediction = p
	}

	return out
}

// DetectTrajectoryDeviation compares the sample under analysis against the
// subject's trailing envelope: too far from the centroid relative to the
// normal range is a high finding, and a high mean recent speed is an
// independent medium finding. Nil when history is insufficient.
//
// The envelope is bounded strictly before the sample's own timestamp so a
// single large jump cannot widen the baseline it is measured against.
func (a *Analyzer) DetectTrajectoryDeviation(ctx context.Context, sample *location.Sample, now time.Time) (*Finding, error) {
	recent, err := a.hist.Recent(ctx, sample.SubjectID, a.cfg.RecentSampleLimit)
	if err != nil {
		return nil, fmt.Errorf("recent samples: %w", err)
	}
	if len(recent) < a.cfg.MinRecentSamples {
		return nil, nil
	}

	env, err := a.hist.EnvelopeBetween(ctx, sample.SubjectID,
		now.Add(-a.cfg.EnvelopeWindow), sample.RecordedAt)
	if err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}

	if env != nil && env.Count > 0 {
		distance := geo.DistanceMeters(sample.Point(), env.Centroid())
		normalRange := env.SpanMeters()

		if distance > normalRange*a.cfg.TrajectoryDeviationFactor {
			return &Finding{
				Kind:       KindTrajectoryDeviation,
				Severity:   SeverityHigh,
				Reason:     "position outside the subject's usual range",
				DistanceKm: roundKm(distance),
			}, nil
		}
	}

	var sum float64
	var known int
	for _, s := range recent {
		if s.Speed != nil {
			sum += *s.Speed
			known++
		}
	}
	if known > 0 {
		avg := sum / float64(known)
		if avg > a.cfg.SpeedThresholdMps {
			return &Finding{
				Kind:     KindTrajectoryDeviation,
				Severity: SeverityMedium,
				Reason:   "sustained speed far above normal travel",
				SpeedKmh: math.Round(avg*3.6*100) / 100,
			}, nil
		}
	}

	return nil, nil
}

// DetectProlongedStop fires when the subject has barely moved across the
// stop window, the window spans long enough, and the current position is
// outside every active safe zone.
func (a *Analyzer) DetectProlongedStop(ctx context.Context, subjectID string, now time.Time) (*Finding, error) {
	recent, err := a.hist.Recent(ctx, subjectID, a.cfg.StopSampleLimit)
	if err != nil {
		return nil, fmt.Errorf("recent samples: %w", err)
	}
	if len(recent) < a.cfg.MinStopSamples {
		return nil, nil
	}

	var total float64
	for i := 0; i < len(recent)-1; i++ {
		total += geo.DistanceMeters(recent[i].Point(), recent[i+1].Point())
	}
	avgMovement := total / float64(len(recent)-1)

	newest := recent[0]
	oldest := recent[len(recent)-1]
	elapsed := newest.RecordedAt.Sub(oldest.RecordedAt).Minutes()

	if avgMovement >= a.cfg.StopMinMeters || elapsed <= a.cfg.StopMinMinutes {
		return nil, nil
	}

	zones, err := a.zones.ActiveForOwner(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("active zones: %w", err)
	}
	for _, z := range zones {
		if z.Contains(newest.Point()) {
			return nil, nil
		}
	}

	return &Finding{
		Kind:     KindProlongedStop,
		Severity: SeverityMedium,
		Reason:   "stationary for an extended period outside any safe zone",
		Minutes:  int(elapsed),
	}, nil
}

// CheckDangerousArea checks containment against the hazard list. Purely
// positional; no history involved.
func (a *Analyzer) CheckDangerousArea(p geo.Point) *Finding {
	for _, area := range a.areas {
		if area.Contains(p) {
			return &Finding{
				Kind:      KindDangerousArea,
				Severity:  SeverityCritical,
				Reason:    "inside a known hazardous area",
				AreaName:  area.Name,
				RiskLevel: area.RiskLevel,
			}
		}
	}
	return nil
}

// PredictDestination ranks historical grid cells for the current hour and
// weekday and, if the subject is moving toward a nearby frequent cell,
// returns an ETA estimate. Nil when no confident prediction exists.
func (a *Analyzer) PredictDestination(ctx context.Context, subjectID string, now time.Time) (*Prediction, error) {
	buckets, err := a.hist.FrequencyBuckets(ctx, subjectID,
		now.Hour(), now.Weekday(), now.Add(-a.cfg.PredictionWindow), a.cfg.PredictionBucketLimit)
	if err != nil {
		return nil, fmt.Errorf("frequency buckets: %w", err)
	}
	if len(buckets) == 0 {
		return nil, nil
	}

	latest, err := a.hist.Latest(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("latest sample: %w", err)
	}
	if latest.Speed == nil || *latest.Speed <= a.cfg.MovingSpeedMps {
		return nil, nil
	}

	top := buckets[0]
	distance := geo.DistanceMeters(latest.Point(), top.Point())
	if distance >= a.cfg.PredictionMaxMeters {
		return nil, nil
	}

	eta := int(distance / (*latest.Speed * 60))
	confidence := float64(top.Count) / a.cfg.ConfidenceDivisor
	if confidence > 1 {
		confidence = 1
	}

	return &Prediction{
		Lat:        top.Lat,
		Lon:        top.Lon,
		Confidence: confidence,
		ETAMinutes: eta,
		DistanceKm: roundKm(distance),
	}, nil
}

// AnalyzeCharging flags charging sessions at unknown places: medium when
// the local hour is also unusual, low otherwise. Only meaningful while the
// sample reports charging.
func (a *Analyzer) AnalyzeCharging(ctx context.Context, sample *location.Sample, now time.Time) (*Finding, error) {
	if !sample.Charging {
		return nil, nil
	}

	clusters, err := a.hist.ChargingClusters(ctx, sample.SubjectID,
		now.Add(-a.cfg.ChargingWindow), a.cfg.ChargingMinFrequency)
	if err != nil {
		return nil, fmt.Errorf("charging clusters: %w", err)
	}

	for _, c := range clusters {
		if geo.DistanceMeters(sample.Point(), c.Point()) < a.cfg.ChargingKnownMeters {
			return nil, nil // known charging spot
		}
	}

	hour := now.Hour()
	if hour < a.cfg.UsualHourStart || hour > a.cfg.UsualHourEnd {
		return &Finding{
			Kind:     KindSuspiciousCharging,
			Severity: SeverityMedium,
			Reason:   "charging at an unknown place at an unusual hour",
		}, nil
	}
	return &Finding{
		Kind:     KindSuspiciousCharging,
		Severity: SeverityLow,
		Reason:   "charging at an unfamiliar place",
	}, nil
}

func roundKm(meters float64) float64 {
	return math.Round(meters/1000*100) / 100
}
