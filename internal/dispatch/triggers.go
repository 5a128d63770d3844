package dispatch

import (
	"context"
	"fmt"

	"github.com/kinpoint/kinpoint/internal/alert"
	"github.com/kinpoint/kinpoint/internal/authz"
	"github.com/kinpoint/kinpoint/internal/safezone"
	"github.com/kinpoint/kinpoint/internal/stream"
)

// PanicEvent is the payload delivered to group channels when a subject
// triggers the panic button.
type PanicEvent struct {
	SubjectID string   `json:"subject_id"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
	Message   string   `json:"message"`
}

// TriggerPanic creates a critical panic alert and fans it out to every
// group channel of the subject. Coordinates are optional; a panic without a
// fix is still delivered.
func (d *Dispatcher) TriggerPanic(ctx context.Context, subjectID string, lat, lon *float64) (*alert.Alert, error) {
	if subjectID == "" {
		return nil, &ValidationError{Field: "subject_id", Reason: "must not be empty"}
	}

	a := &alert.Alert{
		SubjectID: subjectID,
		Type:      alert.TypePanic,
		Message:   "Emergency! A member needs help",
		Severity:  alert.SeverityCritical,
		Lat:       lat,
		Lon:       lon,
	}
	if err := d.alerts.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("%w: persist panic alert: %w", ErrStoreUnavailable, err)
	}
	if d.metrics != nil {
		d.metrics.IncAlertsCreated(string(alert.TypePanic))
	}

	event, err := stream.NewEvent(stream.EventPanic, PanicEvent{
		SubjectID: subjectID,
		Lat:       lat,
		Lon:       lon,
		Message:   a.Message,
	})
	if err != nil {
		return a, nil
	}
	d.fanOutToGroups(ctx, subjectID, event)
	return a, nil
}

// GeofenceTransition names the direction of a zone boundary crossing.
type GeofenceTransition string

// Transitions.
const (
	TransitionEnter GeofenceTransition = "enter"
	TransitionExit  GeofenceTransition = "exit"
)

// GeofenceEvent is the payload delivered when a subject crosses a safe
// zone boundary.
type GeofenceEvent struct {
	SubjectID  string             `json:"subject_id"`
	ZoneID     string             `json:"zone_id"`
	ZoneName   string             `json:"zone_name"`
	Transition GeofenceTransition `json:"transition"`
	Lat        float64            `json:"lat"`
	Lon        float64            `json:"lon"`
}

// TriggerGeofence records a zone crossing as an info alert and delivers the
// event to the subject's group channels. The zone's notification flags
// gate which transitions produce anything at all.
func (d *Dispatcher) TriggerGeofence(ctx context.Context, subjectID string, zone *safezone.Zone, transition GeofenceTransition) (*alert.Alert, error) {
	if transition != TransitionEnter && transition != TransitionExit {
		return nil, &ValidationError{Field: "transition", Reason: "must be enter or exit"}
	}
	if transition == TransitionEnter && !zone.NotifyEnter {
		return nil, nil
	}
	if transition == TransitionExit && !zone.NotifyExit {
		return nil, nil
	}

	verb := "entered"
	if transition == TransitionExit {
		verb = "left"
	}
	a := &alert.Alert{
		SubjectID: subjectID,
		Type:      alert.TypeGeofence,
		Message:   fmt.Sprintf("Subject %s %s %s", subjectID, verb, zone.Name),
		Severity:  alert.SeverityInfo,
		Lat:       &zone.Lat,
		Lon:       &zone.Lon,
	}
	if err := d.alerts.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("%w: persist geofence alert: %w", ErrStoreUnavailable, err)
	}
	if d.metrics != nil {
		d.metrics.IncAlertsCreated(string(alert.TypeGeofence))
	}

	event, err := stream.NewEvent(stream.EventGeofence, GeofenceEvent{
		SubjectID:  subjectID,
		ZoneID:     zone.ID,
		ZoneName:   zone.Name,
		Transition: transition,
		Lat:        zone.Lat,
		Lon:        zone.Lon,
	})
	if err != nil {
		return a, nil
	}
	d.fanOutToGroups(ctx, subjectID, event)
	return a, nil
}

// CameraSignal is the payload exchanged during one-to-one camera
// negotiation. Payload carries the opaque signaling body (offer, answer).
type CameraSignal struct {
	FromID   string `json:"from_id"`
	ToID     string `json:"to_id"`
	Accepted bool   `json:"accepted,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

// RequestCamera asks a subject to start a camera session. The observer
// must pass the privileged location check; denial is surfaced, never
// silently dropped.
func (d *Dispatcher) RequestCamera(ctx context.Context, observerID, subjectID, payload string) error {
	allowed, err := d.resolver.CanView(ctx, observerID, subjectID, authz.CapabilityLocation)
	if err != nil {
		return fmt.Errorf("camera authorization: %w", err)
	}
	if !allowed {
		return fmt.Errorf("%w: %s may not access %s's camera", ErrAuthorizationDenied, observerID, subjectID)
	}

	event, err := stream.NewEvent(stream.EventCameraRequest, CameraSignal{
		FromID:  observerID,
		ToID:    subjectID,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	d.publish(ctx, stream.SubjectChannel(subjectID), event)
	return nil
}

// RespondCamera forwards the subject's accept/reject back to the
// requesting observer's direct channel.
func (d *Dispatcher) RespondCamera(ctx context.Context, subjectID, observerID string, accepted bool, payload string) error {
	event, err := stream.NewEvent(stream.EventCameraResponse, CameraSignal{
		FromID:   subjectID,
		ToID:     observerID,
		Accepted: accepted,
		Payload:  payload,
	})
	if err != nil {
		return err
	}
	d.publish(ctx, stream.SubjectChannel(observerID), event)
	return nil
}

// fanOutToGroups emits one event to every group channel of the subject,
// best effort.
func (d *Dispatcher) fanOutToGroups(ctx context.Context, subjectID string, event *stream.Event) {
	groups, err := d.memberships.GroupsFor(ctx, subjectID)
	if err != nil {
		d.logger.Error("audience resolution failed",
			"subject_id", subjectID, "event_type", event.Type, "error", err)
		return
	}
	for _, groupID := range groups {
		d.publish(ctx, stream.GroupChannel(groupID), event)
	}
}
