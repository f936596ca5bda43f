package handler

import (
	"math"
	"net/http"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/services"
	"facewatch/internal/services/recognition"
)

// ResultSource returns the latest published detection set.
type ResultSource interface {
	Snapshot() services.Results
}

// Box is a face rectangle in full-frame pixels.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Distance is omitted when there was nothing to compare against, such as an
// empty catalog.
type detectionInfo struct {
	Name     string   `json:"name"`
	Known    bool     `json:"known"`
	Distance *float64 `json:"distance,omitempty"`
	Box      Box      `json:"box"`
}

type detectionsData struct {
	Detections []detectionInfo `json:"detections"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
	Seq        uint64          `json:"seq"`
}

// DetectionsHandler returns the current detection set with boxes scaled to
// the full frame.
func DetectionsHandler(results ResultSource, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := results.Snapshot()

		data := detectionsData{
			Detections: make([]detectionInfo, 0, len(snap.Detections)),
			Seq:        snap.Seq,
		}
		if !snap.UpdatedAt.IsZero() {
			data.UpdatedAt = &snap.UpdatedAt
		}
		for _, d := range snap.Detections {
			box := d.Scaled(recognition.UpscaleFactor)
			info := detectionInfo{
				Name:  d.Name,
				Known: d.Known(),
				Box:   Box{X: box.Min.X, Y: box.Min.Y, Width: box.Dx(), Height: box.Dy()},
			}
			if !math.IsInf(d.Distance, 0) && !math.IsNaN(d.Distance) {
				dist := d.Distance
				info.Distance = &dist
			}
			data.Detections = append(data.Detections, info)
		}

		writeJSON(w, logger, http.StatusOK, data)
	}
}
