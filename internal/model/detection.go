package model

import (
	"image"
	"time"

	"github.com/google/uuid"
)

const (
	// UnknownName labels a face with no catalog entry within the match threshold.
	UnknownName = "Unknown"
	// UnknownEventName is the identity recorded for unknown-capture events.
	UnknownEventName = "Unknown Stranger"
)

// Detection represents one face found in an analysis cycle. Box is in
// downscaled (matcher) coordinates.
type Detection struct {
	Box      image.Rectangle `json:"box"`
	Name     string          `json:"name"`
	Distance float64         `json:"distance"`
}

// Known reports whether the detection matched a catalog identity.
func (d Detection) Known() bool {
	return d.Name != UnknownName
}

// Scaled returns the box multiplied back to full-frame coordinates.
func (d Detection) Scaled(factor int) image.Rectangle {
	return image.Rect(d.Box.Min.X*factor, d.Box.Min.Y*factor, d.Box.Max.X*factor, d.Box.Max.Y*factor)
}

// EventStatus is the persisted outcome of an alert decision.
type EventStatus string

const (
	StatusRecognized EventStatus = "Recognized"
	StatusCaptured   EventStatus = "Captured"
)

// DetectionEvent represents a record in the durable event log.
type DetectionEvent struct {
	ID        int64       `json:"id"`
	EventID   string      `json:"event_id"`
	Name      string      `json:"name"`
	Timestamp time.Time   `json:"timestamp"`
	Status    EventStatus `json:"status"`
}

// NewDetectionEvent creates an event with a fresh identifier.
func NewDetectionEvent(name string, status EventStatus, at time.Time) DetectionEvent {
	return DetectionEvent{
		EventID:   uuid.NewString(),
		Name:      name,
		Timestamp: at,
		Status:    status,
	}
}

// EventFilter contains filtering options for querying stored events.
type EventFilter struct {
	Name   string
	Status EventStatus
	Since  time.Time
	Limit  int
}
