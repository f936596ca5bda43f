package repository

import (
	"facewatch/internal/model"
)

// EventRepository defines the append-only store for detection events.
type EventRepository interface {
	// Create operations
	Insert(ev *model.DetectionEvent) (int64, error)

	// Read operations
	List(filter *model.EventFilter) ([]model.DetectionEvent, error)
	CountByStatus() (map[model.EventStatus]int, error)
}
