// Package stream provides channel-addressed event delivery for real-time
// observer updates: an in-process WebSocket hub plus an optional Redis
// publisher for cross-process fan-out.
package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types carried on the wire.
const (
	EventLocationUpdate = "location_update"
	EventAlert          = "alert"
	EventPanic          = "panic"
	EventGeofence       = "geofence"
	EventCameraRequest  = "camera_request"
	EventCameraResponse = "camera_response"
)

// Event is the envelope every delivery uses. Payload is pre-encoded so one
// event can fan out to many channels without re-marshaling.
type Event struct {
	Type      string          `json:"type"`
	Channel   string          `json:"channel"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"ts"`
}

// NewEvent builds an event, encoding the payload. The channel is stamped at
// publish time, not here, because one event may target several channels.
func NewEvent(eventType string, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return &Event{
		Type:      eventType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// GroupChannel returns the channel name all members of a group listen on.
func GroupChannel(groupID string) string {
	return "group:" + groupID
}

// SubjectChannel returns the channel name for direct signals to one subject.
func SubjectChannel(subjectID string) string {
	return "subject:" + subjectID
}
