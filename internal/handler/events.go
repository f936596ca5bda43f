package handler

import (
	"net/http"
	"strconv"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/model"
	"facewatch/internal/repository"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

type eventsData struct {
	Events []model.DetectionEvent `json:"events"`
	Count  int                    `json:"count"`
}

// EventsHandler returns stored events, oldest first, filtered by the
// name, status, since (RFC 3339) and limit query parameters.
func EventsHandler(repo repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := &model.EventFilter{
			Name:  q.Get("name"),
			Limit: atoiDefault(q.Get("limit"), defaultEventLimit),
		}
		if filter.Limit <= 0 || filter.Limit > maxEventLimit {
			filter.Limit = maxEventLimit
		}

		if status := q.Get("status"); status != "" {
			switch s := model.EventStatus(status); s {
			case model.StatusRecognized, model.StatusCaptured:
				filter.Status = s
			default:
				writeError(w, logger, http.StatusBadRequest, "invalid status: "+status)
				return
			}
		}

		if since := q.Get("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				writeError(w, logger, http.StatusBadRequest, "invalid since: "+since)
				return
			}
			filter.Since = t
		}

		events, err := repo.List(filter)
		if err != nil {
			logger.Error("Error querying events from database: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if events == nil {
			events = []model.DetectionEvent{}
		}

		writeJSON(w, logger, http.StatusOK, eventsData{Events: events, Count: len(events)})
	}
}

// EventStatsHandler returns the number of stored events per status.
func EventStatsHandler(repo repository.EventRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := repo.CountByStatus()
		if err != nil {
			logger.Error("Error counting events: %v", err)
			writeError(w, logger, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		writeJSON(w, logger, http.StatusOK, counts)
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
