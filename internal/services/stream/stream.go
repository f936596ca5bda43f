package stream

import (
	"context"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/metrics"

	"gocv.io/x/gocv"
)

// DefaultReconnectDelay is the pause between a lost connection and the next
// open attempt.
const DefaultReconnectDelay = 5 * time.Second

// Capture is an open video source.
type Capture interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Opener connects to a stream URL.
type Opener func(url string) (Capture, error)

// OpenVideoCapture opens url with OpenCV (RTSP, HTTP, files, device ids).
func OpenVideoCapture(url string) (Capture, error) {
	vc, err := gocv.OpenVideoCapture(url)
	if err != nil {
		return nil, err
	}
	return vc, nil
}

// Service keeps a network camera connected and publishes its newest frame
// into a FrameSlot.
type Service struct {
	url     string
	open    Opener
	slot    *FrameSlot
	delay   time.Duration
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(url string, open Opener, slot *FrameSlot, delay time.Duration, logger *logger.Logger, m *metrics.Metrics) *Service {
	if open == nil {
		open = OpenVideoCapture
	}
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Service{
		url:     url,
		open:    open,
		slot:    slot,
		delay:   delay,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Serve reads frames until ctx is cancelled, reconnecting after every
// failure. It never gives up on its own.
func (s *Service) Serve(ctx context.Context) error {
	for {
		capture, err := s.open(s.url)
		if err != nil {
			s.logger.Warning("Failed to open stream: %v", err)
		} else {
			s.logger.Info("Connected to stream")
			s.read(ctx, capture)
			capture.Close()
		}

		if ctx.Err() != nil {
			return nil
		}

		s.logger.Warning("Stream disconnected. Retrying in %v...", s.delay)
		s.metrics.Reconnected()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.delay):
		}
	}
}

func (s *Service) String() string {
	return "stream"
}

// read pulls frames from capture until it fails, yields an empty frame or
// ctx is done.
func (s *Service) read(ctx context.Context, capture Capture) {
	mat := gocv.NewMat()
	defer func() { mat.Close() }()

	for ctx.Err() == nil {
		if ok := capture.Read(&mat); !ok {
			return
		}
		if mat.Empty() {
			s.logger.Warning("Stream returned an empty frame")
			return
		}

		s.slot.Store(mat, s.now())
		s.metrics.FrameCaptured()
		mat = gocv.NewMat()
	}
}
