// Package eventlog persists detection events off the analysis hot path.
//
// Record enqueues and returns immediately. A single writer drains the queue
// in submission order and inserts each event once: a failed write is logged
// and the event is dropped (at-most-once, no retry, no dead letter).
package eventlog

import (
	"context"
	"errors"
	"sync"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/metrics"
	"facewatch/internal/model"
	"facewatch/internal/repository"

	"github.com/sony/gobreaker/v2"
)

const (
	// DefaultQueueSize bounds the number of events waiting for the writer.
	DefaultQueueSize = 1024

	breakerFailures = 5
	breakerTimeout  = 30 * time.Second
)

var (
	// ErrClosed is returned by Record after Shutdown.
	ErrClosed = errors.New("event log closed")
	// ErrQueueFull is returned by Record when the queue has no room.
	ErrQueueFull = errors.New("event log queue full")
)

type EventLog struct {
	repo    repository.EventRepository
	queue   chan model.DetectionEvent
	breaker *gobreaker.CircuitBreaker[int64]
	logger  *logger.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}
}

// New creates an EventLog on top of repo. The writer is not running until Start.
func New(repo repository.EventRepository, queueSize int, logger *logger.Logger, m *metrics.Metrics) *EventLog {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	l := &EventLog{
		repo:    repo,
		queue:   make(chan model.DetectionEvent, queueSize),
		logger:  logger,
		metrics: m,
		done:    make(chan struct{}),
	}

	l.breaker = gobreaker.NewCircuitBreaker[int64](gobreaker.Settings{
		Name:    "event-store",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warning("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return l
}

// Start launches the single writer goroutine. Calling it twice is a no-op.
func (l *EventLog) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started {
		return
	}
	l.started = true
	go l.run()
}

// Record enqueues an event without waiting on storage.
func (l *EventLog) Record(ev model.DetectionEvent) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.metrics.Dropped(metrics.DropClosed)
		return ErrClosed
	}

	select {
	case l.queue <- ev:
		l.metrics.QueueDepth(len(l.queue))
		return nil
	default:
		l.metrics.Dropped(metrics.DropQueueFull)
		l.logger.Warning("Event queue full, dropping %s event for %s", ev.Status, ev.Name)
		return ErrQueueFull
	}
}

// Shutdown stops accepting events and waits for the writer to drain the
// queue, or for ctx to expire.
func (l *EventLog) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	started := l.started
	l.mu.Unlock()

	if !started {
		return nil
	}

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the dedicated writer: it blocks on the queue while idle.
func (l *EventLog) run() {
	defer close(l.done)

	for ev := range l.queue {
		l.metrics.QueueDepth(len(l.queue))
		l.write(ev)
	}
	l.logger.Info("Event writer stopped")
}

func (l *EventLog) write(ev model.DetectionEvent) {
	_, err := l.breaker.Execute(func() (int64, error) {
		return l.repo.Insert(&ev)
	})
	if err == nil {
		return
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		l.metrics.Dropped(metrics.DropBreakerOpen)
		l.logger.Warning("Event store unavailable, dropping %s event for %s", ev.Status, ev.Name)
		return
	}

	l.metrics.Dropped(metrics.DropWriteFailed)
	l.logger.Error("Async database write failed: %v", err)
}
