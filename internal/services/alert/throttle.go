package alert

import (
	"sync"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/metrics"
	"facewatch/internal/model"

	"gocv.io/x/gocv"
)

const (
	DefaultLogCooldown     = 30 * time.Second
	DefaultUnknownCooldown = 300 * time.Second
)

// EventRecorder accepts events without blocking.
type EventRecorder interface {
	Record(ev model.DetectionEvent) error
}

// EvidenceSaver persists a full-resolution frame and returns where it went.
type EvidenceSaver interface {
	Save(frame gocv.Mat, at time.Time) (string, error)
}

// Notifier is told about every emitted alert. Implementations must not block.
type Notifier interface {
	Notify(a Alert)
}

// Alert describes one emitted event.
type Alert struct {
	Name         string            `json:"name"`
	Status       model.EventStatus `json:"status"`
	At           time.Time         `json:"at"`
	EvidencePath string            `json:"evidence_path,omitempty"`
}

// Throttle turns a cycle's detections into events. Known identities are
// rate limited one by one; unknown faces share a single global limit.
type Throttle struct {
	logCooldown     time.Duration
	unknownCooldown time.Duration

	events    EventRecorder
	evidence  EvidenceSaver
	notifiers []Notifier
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu          sync.Mutex
	lastSeen    map[string]time.Time
	lastUnknown time.Time
	hasUnknown  bool
}

func NewThrottle(logCooldown, unknownCooldown time.Duration, events EventRecorder, evidence EvidenceSaver, logger *logger.Logger, m *metrics.Metrics) *Throttle {
	if logCooldown <= 0 {
		logger.Warning("Log cooldown %v is not positive, using %v", logCooldown, DefaultLogCooldown)
		logCooldown = DefaultLogCooldown
	}
	if unknownCooldown <= 0 {
		logger.Warning("Unknown capture cooldown %v is not positive, using %v", unknownCooldown, DefaultUnknownCooldown)
		unknownCooldown = DefaultUnknownCooldown
	}
	return &Throttle{
		logCooldown:     logCooldown,
		unknownCooldown: unknownCooldown,
		events:          events,
		evidence:        evidence,
		logger:          logger,
		metrics:         m,
		lastSeen:        make(map[string]time.Time),
	}
}

// AddNotifier registers n for every alert emitted after this call.
func (t *Throttle) AddNotifier(n Notifier) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notifiers = append(t.notifiers, n)
}

// Process applies the cooldowns to one cycle's detections. frame is the full
// resolution frame the detections came from. It returns the alerts emitted.
func (t *Throttle) Process(detections []model.Detection, frame gocv.Mat, now time.Time) []Alert {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		alerts       []Alert
		foundUnknown bool
	)
	for _, d := range detections {
		if !d.Known() {
			foundUnknown = true
			continue
		}
		if last, ok := t.lastSeen[d.Name]; ok && now.Sub(last) <= t.logCooldown {
			continue
		}

		t.emit(d.Name, model.StatusRecognized, now)
		t.logger.Info("MATCH: %s", d.Name)
		t.lastSeen[d.Name] = now
		alerts = append(alerts, Alert{Name: d.Name, Status: model.StatusRecognized, At: now})
	}

	if foundUnknown {
		if a, ok := t.captureUnknown(frame, now); ok {
			alerts = append(alerts, a)
		}
	}

	for _, a := range alerts {
		for _, n := range t.notifiers {
			n.Notify(a)
		}
	}
	return alerts
}

// captureUnknown saves evidence and emits a Captured event unless the global
// unknown cooldown is still running.
func (t *Throttle) captureUnknown(frame gocv.Mat, now time.Time) (Alert, bool) {
	if t.hasUnknown && now.Sub(t.lastUnknown) <= t.unknownCooldown {
		return Alert{}, false
	}

	a := Alert{Name: model.UnknownEventName, Status: model.StatusCaptured, At: now}

	path, err := t.evidence.Save(frame, now)
	if err != nil {
		t.logger.Error("Failed to save unknown face: %v", err)
		t.metrics.EvidenceFailed()
	} else {
		a.EvidencePath = path
	}

	t.emit(a.Name, a.Status, now)
	if a.EvidencePath != "" {
		t.logger.Warning("SECURITY ALERT: Unknown face saved to %s", a.EvidencePath)
	} else {
		t.logger.Warning("SECURITY ALERT: Unknown face detected")
	}

	t.lastUnknown = now
	t.hasUnknown = true
	return a, true
}

func (t *Throttle) emit(name string, status model.EventStatus, at time.Time) {
	if err := t.events.Record(model.NewDetectionEvent(name, status, at)); err != nil {
		t.logger.Warning("Event for %s not recorded: %v", name, err)
		return
	}
	t.metrics.Event(string(status))
}
