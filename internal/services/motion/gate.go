package motion

import (
	"fmt"
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	// DefaultMinArea is the contour area (px) above which a frame is active.
	DefaultMinArea = 1000
	// DefaultIdleWindow is how long after the last motion results are kept.
	DefaultIdleWindow = 3 * time.Second

	blurSize        = 21
	backgroundAlpha = 0.5
	diffThreshold   = 25
	dilateRounds    = 2
)

// State is the outcome of evaluating one frame.
type State int

const (
	// Priming means the frame only seeded the background model.
	Priming State = iota
	// Quiet means no contour exceeded the minimum area.
	Quiet
	// Active means at least one contour exceeded the minimum area.
	Active
)

func (s State) String() string {
	switch s {
	case Priming:
		return "priming"
	case Quiet:
		return "quiet"
	case Active:
		return "active"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Gate decides whether a frame contains enough motion to be worth running
// face recognition on. It keeps a running-average background.
type Gate struct {
	mu         sync.Mutex
	minArea    float64
	idleWindow time.Duration
	kernel     gocv.Mat
	background gocv.Mat
	primed     bool
	lastMotion time.Time
}

func NewGate(minArea int, idleWindow time.Duration) *Gate {
	if minArea <= 0 {
		minArea = DefaultMinArea
	}
	if idleWindow <= 0 {
		idleWindow = DefaultIdleWindow
	}
	return &Gate{
		minArea:    float64(minArea),
		idleWindow: idleWindow,
		kernel:     gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3)),
	}
}

// Evaluate folds frame into the background and reports whether it is active.
// The first frame only initializes the background and returns Priming.
func (g *Gate) Evaluate(frame gocv.Mat, now time.Time) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame.Empty() {
		return Quiet, fmt.Errorf("empty frame")
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	if err := g.smooth(frame, &blurred); err != nil {
		return Quiet, err
	}

	if !g.primed {
		g.background = gocv.NewMat()
		if err := blurred.ConvertTo(&g.background, gocv.MatTypeCV32F); err != nil {
			g.background.Close()
			return Quiet, fmt.Errorf("failed to seed background: %w", err)
		}
		g.primed = true
		return Priming, nil
	}

	gocv.AccumulatedWeighted(blurred, &g.background, backgroundAlpha)

	reference := gocv.NewMat()
	defer reference.Close()
	gocv.ConvertScaleAbs(g.background, &reference, 1, 0)

	delta := gocv.NewMat()
	defer delta.Close()
	if err := gocv.AbsDiff(blurred, reference, &delta); err != nil {
		return Quiet, fmt.Errorf("failed to compute absolute difference: %w", err)
	}

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(delta, &thresh, diffThreshold, 255, gocv.ThresholdBinary)

	dilated := gocv.NewMat()
	defer dilated.Close()
	thresh.CopyTo(&dilated)
	for i := 0; i < dilateRounds; i++ {
		gocv.Dilate(dilated, &dilated, g.kernel)
	}

	if !g.hasLargeContour(dilated) {
		return Quiet, nil
	}

	g.lastMotion = now
	return Active, nil
}

// smooth converts frame to grayscale and blurs it.
func (g *Gate) smooth(frame gocv.Mat, dst *gocv.Mat) error {
	gray := frame
	if frame.Channels() > 1 {
		gray = gocv.NewMat()
		defer gray.Close()
		if err := gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray); err != nil {
			return fmt.Errorf("failed to convert image to grayscale: %w", err)
		}
	}

	gocv.GaussianBlur(gray, dst, image.Pt(blurSize, blurSize), 0, 0, gocv.BorderDefault)
	return nil
}

func (g *Gate) hasLargeContour(mask gocv.Mat) bool {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) > g.minArea {
			return true
		}
	}
	return false
}

// Idle reports whether more than the idle window has passed since the last
// active frame. A gate that never saw motion is idle.
func (g *Gate) Idle(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.lastMotion.IsZero() {
		return true
	}
	return now.Sub(g.lastMotion) > g.idleWindow
}

// LastMotion returns the time of the last active frame.
func (g *Gate) LastMotion() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastMotion
}

// Close releases the background model.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.primed {
		g.background.Close()
		g.primed = false
	}
	g.kernel.Close()
}
