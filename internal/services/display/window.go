package display

import (
	"context"
	"errors"
	"time"

	"facewatch/internal/logger"

	"gocv.io/x/gocv"
)

// WindowTitle is the title of the local preview window.
const WindowTitle = "Security Camera"

// ErrQuit is returned by Window.Run when the operator presses 'q'.
var ErrQuit = errors.New("quit requested")

// Window shows the annotated stream in a local OpenCV window. Run must be
// called from the main goroutine.
type Window struct {
	compositor *Compositor
	interval   time.Duration
	logger     *logger.Logger
}

func NewWindow(compositor *Compositor, fps int, logger *logger.Logger) *Window {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Window{
		compositor: compositor,
		interval:   time.Second / time.Duration(fps),
		logger:     logger,
	}
}

// Run displays frames until ctx is cancelled or 'q' is pressed.
func (w *Window) Run(ctx context.Context) error {
	window := gocv.NewWindow(WindowTitle)
	defer window.Close()

	w.logger.Info("System operational. Press 'q' to exit.")

	waitMs := int(w.interval / time.Millisecond)
	if waitMs < 1 {
		waitMs = 1
	}

	for ctx.Err() == nil {
		if frame, ok := w.compositor.Compose(); ok {
			window.IMShow(frame)
			frame.Close()
		}

		if key := window.WaitKey(waitMs); key&0xFF == 'q' {
			return ErrQuit
		}
	}
	return nil
}
