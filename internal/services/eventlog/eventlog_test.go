package eventlog

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/model"
	"facewatch/internal/repository/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu     sync.Mutex
	events []model.DetectionEvent
	calls  int
	err    error
	block  chan struct{}
}

func (r *fakeRepo) Insert(ev *model.DetectionEvent) (int64, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	r.events = append(r.events, *ev)
	return int64(len(r.events)), nil
}

func (r *fakeRepo) List(*model.EventFilter) ([]model.DetectionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.DetectionEvent(nil), r.events...), nil
}

func (r *fakeRepo) CountByStatus() (map[model.EventStatus]int, error) {
	return nil, nil
}

func (r *fakeRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func shutdown(t *testing.T, l *EventLog) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx))
}

func TestEventLog_PreservesSubmissionOrder(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer db.Close()
	repo := sqlite.NewEventRepository(db)

	l := New(repo, 16, logger.Nop(), nil)
	l.Start()

	now := time.Now()
	require.NoError(t, l.Record(model.NewDetectionEvent("A", model.StatusRecognized, now)))
	require.NoError(t, l.Record(model.NewDetectionEvent("B", model.StatusRecognized, now)))
	require.NoError(t, l.Record(model.NewDetectionEvent(model.UnknownEventName, model.StatusCaptured, now)))
	shutdown(t, l)

	events, err := repo.List(nil)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "A", events[0].Name)
	assert.Equal(t, "B", events[1].Name)
	assert.Equal(t, model.StatusCaptured, events[2].Status)
}

func TestEventLog_WriteFailureIsLoggedAndDropped(t *testing.T) {
	var buf bytes.Buffer
	repo := &fakeRepo{err: errors.New("database is locked")}
	l := New(repo, 16, logger.New(&buf, "info"), nil)
	l.Start()

	for i := 0; i < 3; i++ {
		assert.NoError(t, l.Record(model.NewDetectionEvent("alice", model.StatusRecognized, time.Now())))
	}
	shutdown(t, l)

	assert.Equal(t, 3, repo.callCount())
	assert.Contains(t, buf.String(), "Async database write failed")
	events, _ := repo.List(nil)
	assert.Empty(t, events)
}

func TestEventLog_RecordNeverBlocksOnSlowStore(t *testing.T) {
	repo := &fakeRepo{block: make(chan struct{})}
	l := New(repo, 4, logger.Nop(), nil)
	l.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			_ = l.Record(model.NewDetectionEvent("alice", model.StatusRecognized, time.Now()))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a stalled store")
	}

	close(repo.block)
	shutdown(t, l)
}

func TestEventLog_QueueFullDrops(t *testing.T) {
	l := New(&fakeRepo{}, 1, logger.Nop(), nil)

	require.NoError(t, l.Record(model.NewDetectionEvent("a", model.StatusRecognized, time.Now())))
	err := l.Record(model.NewDetectionEvent("b", model.StatusRecognized, time.Now()))

	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestEventLog_RecordAfterShutdown(t *testing.T) {
	l := New(&fakeRepo{}, 4, logger.Nop(), nil)
	l.Start()
	shutdown(t, l)

	err := l.Record(model.NewDetectionEvent("a", model.StatusRecognized, time.Now()))
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, l.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestEventLog_ShutdownDrainsQueue(t *testing.T) {
	repo := &fakeRepo{}
	l := New(repo, 64, logger.Nop(), nil)

	for i := 0; i < 20; i++ {
		require.NoError(t, l.Record(model.NewDetectionEvent("alice", model.StatusRecognized, time.Now())))
	}
	l.Start()
	shutdown(t, l)

	events, _ := repo.List(nil)
	assert.Len(t, events, 20)
}

func TestEventLog_ShutdownRespectsContext(t *testing.T) {
	repo := &fakeRepo{block: make(chan struct{})}
	defer close(repo.block)
	l := New(repo, 4, logger.Nop(), nil)
	l.Start()
	require.NoError(t, l.Record(model.NewDetectionEvent("a", model.StatusRecognized, time.Now())))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, l.Shutdown(ctx), context.DeadlineExceeded)
}

func TestEventLog_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var buf bytes.Buffer
	repo := &fakeRepo{err: errors.New("disk I/O error")}
	l := New(repo, 16, logger.New(&buf, "info"), nil)
	l.Start()

	for i := 0; i < breakerFailures+3; i++ {
		require.NoError(t, l.Record(model.NewDetectionEvent("alice", model.StatusRecognized, time.Now())))
	}
	shutdown(t, l)

	assert.Equal(t, breakerFailures, repo.callCount())
	assert.Contains(t, buf.String(), "Event store unavailable")
}
