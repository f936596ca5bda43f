package sqlite

import (
	"fmt"
	"strings"

	"facewatch/internal/model"
)

// EventRepository implements repository.EventRepository for SQLite.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert appends a detection event.
func (r *EventRepository) Insert(ev *model.DetectionEvent) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO detections (event_id, name, timestamp, status)
		VALUES (?, ?, ?, ?)
	`, ev.EventID, ev.Name, ev.Timestamp, string(ev.Status))
	if err != nil {
		return 0, fmt.Errorf("failed to insert detection event: %w", err)
	}

	return result.LastInsertId()
}

// List returns stored events in insertion order, optionally filtered.
// A positive Limit keeps only the most recent matching rows.
func (r *EventRepository) List(filter *model.EventFilter) ([]model.DetectionEvent, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var (
		conditions []string
		args       []interface{}
	)
	if filter != nil {
		if filter.Name != "" {
			conditions = append(conditions, "name = ?")
			args = append(args, filter.Name)
		}
		if filter.Status != "" {
			conditions = append(conditions, "status = ?")
			args = append(args, string(filter.Status))
		}
		if !filter.Since.IsZero() {
			conditions = append(conditions, "timestamp >= ?")
			args = append(args, filter.Since)
		}
	}

	query := "SELECT id, event_id, name, timestamp, status FROM detections"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	limited := filter != nil && filter.Limit > 0
	if limited {
		query += " ORDER BY id DESC LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " ORDER BY id ASC"
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detection events: %w", err)
	}
	defer rows.Close()

	var events []model.DetectionEvent
	for rows.Next() {
		var (
			ev     model.DetectionEvent
			status string
		)
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.Name, &ev.Timestamp, &status); err != nil {
			return nil, fmt.Errorf("failed to scan detection event: %w", err)
		}
		ev.Status = model.EventStatus(status)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read detection events: %w", err)
	}

	if limited {
		for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
	}

	return events, nil
}

// CountByStatus returns the number of stored events per status.
func (r *EventRepository) CountByStatus() (map[model.EventStatus]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT status, COUNT(*) FROM detections GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count detection events: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.EventStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[model.EventStatus(status)] = count
	}

	return counts, rows.Err()
}
