package display

import (
	"image"
	"image/color"

	"facewatch/internal/model"
	"facewatch/internal/services"
	"facewatch/internal/services/recognition"
	"facewatch/internal/services/stream"

	"gocv.io/x/gocv"
)

const labelHeight = 30

var (
	knownColor   = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	unknownColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	textColor    = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// FrameSource hands out private copies of the newest frame.
type FrameSource interface {
	Snapshot() (stream.Frame, bool)
}

// ResultSource returns the latest published detection set.
type ResultSource interface {
	Snapshot() services.Results
}

// Draw annotates frame with one box and label per detection. Boxes are
// scaled from matcher coordinates to the frame.
func Draw(frame *gocv.Mat, detections []model.Detection, scale int) {
	for _, d := range detections {
		box := d.Scaled(scale)
		c := knownColor
		if !d.Known() {
			c = unknownColor
		}

		gocv.Rectangle(frame, box, c, 2)
		bar := image.Rect(box.Min.X, box.Min.Y-labelHeight, box.Max.X, box.Min.Y)
		gocv.Rectangle(frame, bar, c, -1)
		gocv.PutText(frame, d.Name, image.Pt(box.Min.X+6, box.Min.Y-6), gocv.FontHersheyDuplex, 0.6, textColor, 1)
	}
}

// Compositor combines the newest frame with the newest detection set.
type Compositor struct {
	frames  FrameSource
	results ResultSource
	scale   int
}

func NewCompositor(frames FrameSource, results ResultSource) *Compositor {
	return &Compositor{frames: frames, results: results, scale: recognition.UpscaleFactor}
}

// Compose returns an annotated copy of the newest frame. The caller closes it.
func (c *Compositor) Compose() (gocv.Mat, bool) {
	frame, ok := c.frames.Snapshot()
	if !ok {
		return gocv.Mat{}, false
	}
	Draw(&frame.Mat, c.results.Snapshot().Detections, c.scale)
	return frame.Mat, true
}
