package display

import (
	"context"
	"time"

	"facewatch/internal/logger"

	"gocv.io/x/gocv"
)

const DefaultFPS = 15

// Publisher delivers encoded frames to remote viewers.
type Publisher interface {
	Broadcast(message []byte) bool
	GetClientCount() int
}

// Broadcaster pushes annotated JPEG frames to the viewer hub at a fixed rate.
type Broadcaster struct {
	compositor *Compositor
	hub        Publisher
	interval   time.Duration
	logger     *logger.Logger
}

func NewBroadcaster(compositor *Compositor, hub Publisher, fps int, logger *logger.Logger) *Broadcaster {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Broadcaster{
		compositor: compositor,
		hub:        hub,
		interval:   time.Second / time.Duration(fps),
		logger:     logger,
	}
}

func (b *Broadcaster) Serve(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			b.Publish()
		}
	}
}

func (b *Broadcaster) String() string {
	return "viewer-broadcast"
}

// Publish renders and sends one frame. Nothing is rendered without viewers.
func (b *Broadcaster) Publish() bool {
	if b.hub.GetClientCount() == 0 {
		return false
	}

	frame, ok := b.compositor.Compose()
	if !ok {
		return false
	}
	defer frame.Close()

	buf, err := gocv.IMEncode(".jpg", frame)
	if err != nil {
		b.logger.Error("Failed to encode frame: %v", err)
		return false
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return b.hub.Broadcast(data)
}
