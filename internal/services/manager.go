package services

import (
	"context"
	"sync"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/metrics"
	"facewatch/internal/model"
	"facewatch/internal/services/alert"
	"facewatch/internal/services/motion"
	"facewatch/internal/services/stream"

	"gocv.io/x/gocv"
)

const (
	DefaultAnalysisInterval  = 10 * time.Millisecond
	DefaultFramePollInterval = 100 * time.Millisecond
)

// FrameSource hands out private copies of the newest frame.
type FrameSource interface {
	Snapshot() (stream.Frame, bool)
}

type MotionGate interface {
	Evaluate(frame gocv.Mat, now time.Time) (motion.State, error)
	Idle(now time.Time) bool
}

type Identifier interface {
	Identify(frame gocv.Mat) ([]model.Detection, error)
}

type Alerter interface {
	Process(detections []model.Detection, frame gocv.Mat, now time.Time) []alert.Alert
}

// Results is one published detection set.
type Results struct {
	Detections []model.Detection `json:"detections"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Seq        uint64            `json:"seq"`
}

// ResultSlot holds the detection set of the latest analysis cycle. Each
// publication replaces the previous set.
type ResultSlot struct {
	mu      sync.Mutex
	results Results
}

func NewResultSlot() *ResultSlot {
	return &ResultSlot{results: Results{Detections: []model.Detection{}}}
}

// Publish replaces the current set with detections.
func (s *ResultSlot) Publish(detections []model.Detection, at time.Time) {
	copied := make([]model.Detection, len(detections))
	copy(copied, detections)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = Results{Detections: copied, UpdatedAt: at, Seq: s.results.Seq + 1}
}

// Clear empties the current set. It returns false when it was already empty.
func (s *ResultSlot) Clear(at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.results.Detections) == 0 {
		return false
	}
	s.results = Results{Detections: []model.Detection{}, UpdatedAt: at, Seq: s.results.Seq + 1}
	return true
}

// Snapshot returns a copy of the current set.
func (s *ResultSlot) Snapshot() Results {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.results
	r.Detections = make([]model.Detection, len(s.results.Detections))
	copy(r.Detections, s.results.Detections)
	return r
}

// Manager runs the analysis loop: motion gate, face identification and alert
// throttling, one frame at a time.
type Manager struct {
	frames     FrameSource
	gate       MotionGate
	identifier Identifier
	alerter    Alerter
	results    *ResultSlot
	logger     *logger.Logger
	metrics    *metrics.Metrics

	interval     time.Duration
	pollInterval time.Duration
	now          func() time.Time
}

func NewManager(frames FrameSource, gate MotionGate, identifier Identifier, alerter Alerter, results *ResultSlot, interval, pollInterval time.Duration, logger *logger.Logger, m *metrics.Metrics) *Manager {
	if interval <= 0 {
		interval = DefaultAnalysisInterval
	}
	if pollInterval <= 0 {
		pollInterval = DefaultFramePollInterval
	}
	return &Manager{
		frames:       frames,
		gate:         gate,
		identifier:   identifier,
		alerter:      alerter,
		results:      results,
		logger:       logger,
		metrics:      m,
		interval:     interval,
		pollInterval: pollInterval,
		now:          time.Now,
	}
}

// Serve analyzes frames until ctx is cancelled.
func (m *Manager) Serve(ctx context.Context) error {
	m.logger.Info("Analysis loop started")
	defer m.logger.Info("Analysis loop stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		wait := m.interval
		if !m.Cycle(m.now()) {
			wait = m.pollInterval
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (m *Manager) String() string {
	return "analysis"
}

// Cycle runs one analysis step on the newest frame. It returns false when no
// frame has been captured yet.
func (m *Manager) Cycle(now time.Time) bool {
	frame, ok := m.frames.Snapshot()
	if !ok {
		return false
	}
	defer frame.Mat.Close()

	state, err := m.gate.Evaluate(frame.Mat, now)
	if err != nil {
		m.logger.Error("Motion analysis failed: %v", err)
		return true
	}

	switch state {
	case motion.Priming:
		return true

	case motion.Active:
		m.metrics.Cycle(true)
		detections, err := m.identifier.Identify(frame.Mat)
		if err != nil {
			m.logger.Error("Face identification failed: %v", err)
			return true
		}
		m.alerter.Process(detections, frame.Mat, now)
		m.results.Publish(detections, now)

	default:
		m.metrics.Cycle(false)
		if m.gate.Idle(now) && m.results.Clear(now) {
			m.logger.Debug("No motion, detections cleared")
		}
	}
	return true
}

// Results returns the slot the loop publishes into.
func (m *Manager) Results() *ResultSlot {
	return m.results
}
