package supervisor

import (
	"context"
	"time"

	"facewatch/internal/logger"

	"github.com/thejerf/suture/v4"
)

// TreeConfig holds restart and shutdown tuning for the tree.
type TreeConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree runs the long-lived pipeline tasks in three isolated layers:
//   - capture: stream acquisition
//   - analysis: motion gate, matcher and throttle loop
//   - presentation: viewer hub, frame broadcast, HTTP server
//
// A crash in presentation never restarts capture or analysis.
type Tree struct {
	root         *suture.Supervisor
	capture      *suture.Supervisor
	analysis     *suture.Supervisor
	presentation *suture.Supervisor
	config       TreeConfig
}

func NewTree(logger *logger.Logger, config TreeConfig) *Tree {
	defaults := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = defaults.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = defaults.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}

	rootSpec := suture.Spec{
		EventHook: func(e suture.Event) {
			logger.Warning("Supervisor: %s", e.String())
		},
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("facewatch", rootSpec)
	capture := suture.New("capture-layer", childSpec)
	analysis := suture.New("analysis-layer", childSpec)
	presentation := suture.New("presentation-layer", childSpec)

	root.Add(capture)
	root.Add(analysis)
	root.Add(presentation)

	return &Tree{
		root:         root,
		capture:      capture,
		analysis:     analysis,
		presentation: presentation,
		config:       config,
	}
}

func (t *Tree) AddCaptureService(svc suture.Service) suture.ServiceToken {
	return t.capture.Add(svc)
}

func (t *Tree) AddAnalysisService(svc suture.Service) suture.ServiceToken {
	return t.analysis.Add(svc)
}

func (t *Tree) AddPresentationService(svc suture.Service) suture.ServiceToken {
	return t.presentation.Add(svc)
}

// ServeBackground starts the tree. The channel yields its exit error once
// every service has stopped.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that ignored the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
