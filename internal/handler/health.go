package handler

import (
	"net/http"
	"time"

	"facewatch/internal/logger"
)

// StaleAfter is how old the newest frame may be before the stream counts as stale.
const StaleAfter = 30 * time.Second

// FrameClock reports when the newest frame was captured.
type FrameClock interface {
	CapturedAt() (time.Time, bool)
}

type healthData struct {
	Status    string     `json:"status"`
	Stream    string     `json:"stream"`
	LastFrame *time.Time `json:"last_frame,omitempty"`
}

// HealthHandler always answers 200 while the process runs and reports
// whether frames are still arriving.
func HealthHandler(frames FrameClock, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := healthData{Status: "ok", Stream: "waiting"}

		if at, ok := frames.CapturedAt(); ok {
			data.LastFrame = &at
			data.Stream = "connected"
			if time.Since(at) > StaleAfter {
				data.Stream = "stale"
			}
		}

		writeJSON(w, logger, http.StatusOK, data)
	}
}
