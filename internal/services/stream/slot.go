package stream

import (
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame is a captured image with its capture time. The holder owns Mat and
// must Close it.
type Frame struct {
	Mat        gocv.Mat
	CapturedAt time.Time
}

// FrameSlot holds only the most recent frame. Older frames are released as
// soon as they are replaced.
type FrameSlot struct {
	mu         sync.Mutex
	mat        gocv.Mat
	capturedAt time.Time
	seq        uint64
	has        bool
}

func NewFrameSlot() *FrameSlot {
	return &FrameSlot{}
}

// Store takes ownership of mat and replaces the previous frame.
func (s *FrameSlot) Store(mat gocv.Mat, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.has {
		s.mat.Close()
	}
	s.mat = mat
	s.capturedAt = at
	s.seq++
	s.has = true
}

// Snapshot returns a private copy of the latest frame, or false when nothing
// has been captured yet.
func (s *FrameSlot) Snapshot() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.has {
		return Frame{}, false
	}
	return Frame{Mat: s.mat.Clone(), CapturedAt: s.capturedAt}, true
}

// Seq counts stored frames. It lets readers skip frames they already saw.
func (s *FrameSlot) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// CapturedAt returns when the held frame was captured.
func (s *FrameSlot) CapturedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capturedAt, s.has
}

// Close releases the held frame.
func (s *FrameSlot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.has {
		s.mat.Close()
		s.has = false
	}
}
