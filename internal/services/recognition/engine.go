package recognition

import (
	"image"
	"math"
)

// Signature is a fixed-length face embedding.
type Signature []float32

// Engine is the face detection and embedding capability the matcher consumes.
type Engine interface {
	// DetectFaces returns the bounding boxes of all faces in img.
	DetectFaces(img image.Image) ([]image.Rectangle, error)
	// EmbedFaces returns one signature per box, index-aligned with boxes.
	EmbedFaces(img image.Image, boxes []image.Rectangle) ([]Signature, error)
	// Distance compares two signatures; smaller means more similar.
	Distance(a, b Signature) float64
}

// EuclideanDistance is the L2 distance between two signatures. Signatures of
// different lengths are infinitely far apart.
func EuclideanDistance(a, b Signature) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// DisabledEngine finds no faces. It stands in for a face engine whose models
// could not be loaded, so motion gating and viewers keep running.
type DisabledEngine struct{}

func (DisabledEngine) DetectFaces(img image.Image) ([]image.Rectangle, error) {
	return nil, nil
}

func (DisabledEngine) EmbedFaces(img image.Image, boxes []image.Rectangle) ([]Signature, error) {
	return make([]Signature, len(boxes)), nil
}

func (DisabledEngine) Distance(a, b Signature) float64 {
	return EuclideanDistance(a, b)
}
