package ai

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"facewatch/internal/logger"
	"facewatch/internal/services/recognition"

	"github.com/Kagami/go-face"
	"gocv.io/x/gocv"
)

// Model files the dlib recognizer loads from its model directory.
var ModelFiles = []string{
	"shape_predictor_5_face_landmarks.dat",
	"dlib_face_recognition_resnet_model_v1.dat",
	"mmod_human_face_detector.dat",
}

// FaceEngine implements recognition.Engine on top of dlib through go-face.
// dlib detects and embeds in one pass, so the faces found by DetectFaces are
// kept and handed to the following EmbedFaces call for the same image.
type FaceEngine struct {
	rec    *face.Recognizer
	logger *logger.Logger

	mu        sync.Mutex
	lastImage *image.RGBA
	lastFaces []face.Face
}

// NewFaceEngine loads the dlib models from modelDir.
func NewFaceEngine(modelDir string, logger *logger.Logger) (*FaceEngine, error) {
	for _, name := range ModelFiles {
		path := filepath.Join(modelDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("model file not found: %s", path)
		}
	}

	rec, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load face models: %w", err)
	}

	logger.Info("Face recognition models loaded from %s", modelDir)
	return &FaceEngine{rec: rec, logger: logger}, nil
}

// DetectFaces returns the face boxes in img.
func (e *FaceEngine) DetectFaces(img image.Image) ([]image.Rectangle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	faces, err := e.recognize(img)
	if err != nil {
		return nil, err
	}

	boxes := make([]image.Rectangle, len(faces))
	for i, f := range faces {
		boxes[i] = f.Rectangle
	}
	return boxes, nil
}

// EmbedFaces returns one 128-d signature per box.
func (e *FaceEngine) EmbedFaces(img image.Image, boxes []image.Rectangle) ([]recognition.Signature, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	faces, err := e.recognize(img)
	if err != nil {
		return nil, err
	}

	sigs := make([]recognition.Signature, len(boxes))
	for i, box := range boxes {
		f, ok := closestFace(faces, box)
		if !ok {
			return nil, fmt.Errorf("no face found for box %v", box)
		}
		sigs[i] = append(recognition.Signature(nil), f.Descriptor[:]...)
	}
	return sigs, nil
}

// Distance is the Euclidean distance between two descriptors.
func (e *FaceEngine) Distance(a, b recognition.Signature) float64 {
	return recognition.EuclideanDistance(a, b)
}

// Close releases the dlib models.
func (e *FaceEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rec.Close()
	e.lastImage = nil
	e.lastFaces = nil
}

// recognize runs dlib over img unless the same image was just processed.
// Callers hold e.mu.
func (e *FaceEngine) recognize(img image.Image) ([]face.Face, error) {
	rgba, cacheable := img.(*image.RGBA)
	if cacheable && rgba == e.lastImage {
		return e.lastFaces, nil
	}

	data, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}

	faces, err := e.rec.Recognize(data)
	if err != nil {
		return nil, fmt.Errorf("face recognition failed: %w", err)
	}

	e.lastImage, e.lastFaces = nil, nil
	if cacheable {
		e.lastImage, e.lastFaces = rgba, faces
	}
	return faces, nil
}

// encodeJPEG produces the compressed buffer go-face expects.
func encodeJPEG(img image.Image) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}

// closestFace picks the face whose rectangle equals box, falling back to the
// largest overlap.
func closestFace(faces []face.Face, box image.Rectangle) (face.Face, bool) {
	best, bestArea := -1, 0
	for i, f := range faces {
		if f.Rectangle == box {
			return f, true
		}
		inter := f.Rectangle.Intersect(box)
		if area := inter.Dx() * inter.Dy(); area > bestArea {
			best, bestArea = i, area
		}
	}
	if best < 0 {
		return face.Face{}, false
	}
	return faces[best], true
}
