package recognition

import (
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/metrics"
	"facewatch/internal/model"

	"gocv.io/x/gocv"
)

const (
	// DownscaleFactor is applied to each frame dimension before detection.
	DownscaleFactor = 0.25
	// UpscaleFactor maps detection boxes back to full-frame coordinates.
	UpscaleFactor = 4
	// DefaultMatchThreshold is the strict upper bound for a catalog match.
	DefaultMatchThreshold = 0.5
)

// Matcher assigns catalog names to the faces found in a frame.
type Matcher struct {
	engine    Engine
	threshold float64
	catalog   atomic.Pointer[Catalog]
	metrics   *metrics.Metrics
}

// NewMatcher creates a Matcher over the given catalog. A non-positive
// threshold is replaced by DefaultMatchThreshold.
func NewMatcher(engine Engine, catalog *Catalog, threshold float64, logger *logger.Logger, m *metrics.Metrics) *Matcher {
	if threshold <= 0 {
		logger.Warning("Match threshold %v is not positive, using %v", threshold, DefaultMatchThreshold)
		threshold = DefaultMatchThreshold
	}
	matcher := &Matcher{engine: engine, threshold: threshold, metrics: m}
	matcher.SetCatalog(catalog)
	return matcher
}

// SetCatalog swaps in a fully built catalog. In-flight matches keep using
// the catalog they started with.
func (m *Matcher) SetCatalog(c *Catalog) {
	if c == nil {
		c = NewCatalog(nil, nil)
	}
	m.catalog.Store(c)
	m.metrics.CatalogSize(c.Len())
}

// Catalog returns the catalog currently in use.
func (m *Matcher) Catalog() *Catalog {
	return m.catalog.Load()
}

// Identify downsizes a BGR frame and classifies every face in it. Boxes are
// reported in downscaled coordinates.
func (m *Matcher) Identify(frame gocv.Mat) ([]model.Detection, error) {
	start := time.Now()
	defer func() { m.metrics.ObserveIdentify(time.Since(start)) }()

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(frame, &small, image.Point{}, DownscaleFactor, DownscaleFactor, gocv.InterpolationLinear)
	if small.Empty() {
		return nil, fmt.Errorf("failed to downscale frame")
	}

	img, err := small.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}

	return m.IdentifyImage(img)
}

// IdentifyImage classifies every face in an already downscaled RGB image.
func (m *Matcher) IdentifyImage(img image.Image) ([]model.Detection, error) {
	boxes, err := m.engine.DetectFaces(img)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}
	if len(boxes) == 0 {
		return []model.Detection{}, nil
	}

	sigs, err := m.engine.EmbedFaces(img, boxes)
	if err != nil {
		return nil, fmt.Errorf("face embedding failed: %w", err)
	}
	if len(sigs) != len(boxes) {
		return nil, fmt.Errorf("face embedding returned %d signatures for %d faces", len(sigs), len(boxes))
	}

	detections := make([]model.Detection, len(boxes))
	for i, sig := range sigs {
		name, dist := m.Match(sig)
		detections[i] = model.Detection{Box: boxes[i], Name: name, Distance: dist}
		m.metrics.Face(name != model.UnknownName)
	}
	return detections, nil
}

// Match returns the catalog name for sig, or model.UnknownName when the
// nearest entry is not strictly closer than the threshold.
func (m *Matcher) Match(sig Signature) (string, float64) {
	catalog := m.catalog.Load()
	idx, dist := catalog.Nearest(sig, m.engine.Distance)
	if idx < 0 || dist >= m.threshold {
		return model.UnknownName, dist
	}
	_, name := catalog.Entry(idx)
	return name, dist
}
