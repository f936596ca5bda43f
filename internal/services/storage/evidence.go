package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"facewatch/internal/logger"

	"gocv.io/x/gocv"
)

// TimestampLayout names evidence files down to the second.
const TimestampLayout = "2006-01-02_15-04-05"

// ErrWriteFailed is returned when an evidence image could not be written.
var ErrWriteFailed = errors.New("failed to write evidence image")

// EvidenceService saves full-resolution frames of unrecognized people.
type EvidenceService struct {
	imagesDir string
	mu        sync.Mutex
	logger    *logger.Logger
}

func NewEvidenceService(imagesDir string, logger *logger.Logger) *EvidenceService {
	return &EvidenceService{
		imagesDir: imagesDir,
		logger:    logger,
	}
}

// Save writes frame as stranger_<timestamp>.jpg and returns its path.
func (s *EvidenceService) Save(frame gocv.Mat, at time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame.Empty() {
		return "", fmt.Errorf("%w: empty frame", ErrWriteFailed)
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	filename := fmt.Sprintf("stranger_%s.jpg", at.Format(TimestampLayout))
	fullpath := filepath.Join(s.imagesDir, filename)

	if ok := gocv.IMWrite(fullpath, frame); !ok {
		return "", fmt.Errorf("%w: %s", ErrWriteFailed, fullpath)
	}

	s.logger.Debug("Saved evidence image %s", fullpath)
	return fullpath, nil
}

// Dir returns the directory evidence images are written to.
func (s *EvidenceService) Dir() string {
	return s.imagesDir
}
