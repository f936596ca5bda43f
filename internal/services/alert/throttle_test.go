package alert

import (
	"bytes"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"facewatch/internal/logger"
	"facewatch/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type fakeRecorder struct {
	mu     sync.Mutex
	events []model.DetectionEvent
	err    error
}

func (r *fakeRecorder) Record(ev model.DetectionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

type fakeSaver struct {
	calls int
	err   error
}

func (s *fakeSaver) Save(frame gocv.Mat, at time.Time) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "captured_strangers/stranger_" + at.Format("2006-01-02_15-04-05") + ".jpg", nil
}

type fakeNotifier struct {
	alerts []Alert
}

func (n *fakeNotifier) Notify(a Alert) {
	n.alerts = append(n.alerts, a)
}

func known(name string) model.Detection {
	return model.Detection{Box: image.Rect(0, 0, 10, 10), Name: name, Distance: 0.3}
}

func unknown() model.Detection {
	return model.Detection{Box: image.Rect(20, 20, 30, 30), Name: model.UnknownName, Distance: 0.7}
}

func newThrottle(rec *fakeRecorder, saver *fakeSaver) *Throttle {
	return NewThrottle(30*time.Second, 300*time.Second, rec, saver, logger.Nop(), nil)
}

func TestThrottle_KnownCooldownPerIdentity(t *testing.T) {
	rec := &fakeRecorder{}
	th := newThrottle(rec, &fakeSaver{})
	frame := gocv.NewMat()
	defer frame.Close()
	start := time.Unix(10_000, 0)

	for _, offset := range []int{0, 10, 29, 31} {
		th.Process([]model.Detection{known("alice")}, frame, start.Add(time.Duration(offset)*time.Second))
	}

	require.Len(t, rec.events, 2)
	assert.Equal(t, start, rec.events[0].Timestamp)
	assert.Equal(t, start.Add(31*time.Second), rec.events[1].Timestamp)
	for _, ev := range rec.events {
		assert.Equal(t, "alice", ev.Name)
		assert.Equal(t, model.StatusRecognized, ev.Status)
	}
}

func TestThrottle_CooldownBoundaryIsExclusive(t *testing.T) {
	rec := &fakeRecorder{}
	th := newThrottle(rec, &fakeSaver{})
	frame := gocv.NewMat()
	defer frame.Close()
	start := time.Unix(10_000, 0)

	th.Process([]model.Detection{known("alice")}, frame, start)
	th.Process([]model.Detection{known("alice")}, frame, start.Add(30*time.Second))

	assert.Len(t, rec.events, 1, "exactly the cooldown interval is still suppressed")
}

func TestThrottle_IdentitiesAreIndependent(t *testing.T) {
	rec := &fakeRecorder{}
	th := newThrottle(rec, &fakeSaver{})
	frame := gocv.NewMat()
	defer frame.Close()
	start := time.Unix(10_000, 0)

	th.Process([]model.Detection{known("alice")}, frame, start)
	th.Process([]model.Detection{known("alice"), known("bob")}, frame, start.Add(5*time.Second))

	require.Len(t, rec.events, 2)
	assert.Equal(t, "bob", rec.events[1].Name)
}

func TestThrottle_UnknownCaptureIsGlobal(t *testing.T) {
	rec := &fakeRecorder{}
	saver := &fakeSaver{}
	th := newThrottle(rec, saver)
	frame := gocv.NewMat()
	defer frame.Close()
	start := time.Unix(10_000, 0)

	alerts := th.Process([]model.Detection{unknown(), unknown()}, frame, start)

	require.Len(t, alerts, 1)
	assert.Equal(t, 1, saver.calls)
	require.Len(t, rec.events, 1)
	assert.Equal(t, model.UnknownEventName, rec.events[0].Name)
	assert.Equal(t, model.StatusCaptured, rec.events[0].Status)
	assert.NotEmpty(t, alerts[0].EvidencePath)

	th.Process([]model.Detection{unknown()}, frame, start.Add(300*time.Second))
	assert.Equal(t, 1, saver.calls, "boundary is still inside the cooldown")

	th.Process([]model.Detection{unknown()}, frame, start.Add(301*time.Second))
	assert.Equal(t, 2, saver.calls)
	assert.Len(t, rec.events, 2)
}

func TestThrottle_EvidenceFailureStillEmits(t *testing.T) {
	rec := &fakeRecorder{}
	saver := &fakeSaver{err: errors.New("disk full")}
	th := newThrottle(rec, saver)
	frame := gocv.NewMat()
	defer frame.Close()
	start := time.Unix(10_000, 0)

	alerts := th.Process([]model.Detection{unknown()}, frame, start)

	require.Len(t, alerts, 1)
	assert.Empty(t, alerts[0].EvidencePath)
	require.Len(t, rec.events, 1)
	assert.Equal(t, model.StatusCaptured, rec.events[0].Status)

	th.Process([]model.Detection{unknown()}, frame, start.Add(time.Second))
	assert.Equal(t, 1, saver.calls, "a failed write still starts the cooldown")
}

func TestThrottle_RecorderFailureDoesNotPropagate(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("queue full")}
	th := newThrottle(rec, &fakeSaver{})
	frame := gocv.NewMat()
	defer frame.Close()
	start := time.Unix(10_000, 0)

	alerts := th.Process([]model.Detection{known("alice")}, frame, start)
	assert.Len(t, alerts, 1)

	alerts = th.Process([]model.Detection{known("alice")}, frame, start.Add(time.Second))
	assert.Empty(t, alerts, "cooldown applies even when the event was dropped")
}

func TestThrottle_Notifiers(t *testing.T) {
	rec := &fakeRecorder{}
	th := newThrottle(rec, &fakeSaver{})
	n := &fakeNotifier{}
	th.AddNotifier(n)
	frame := gocv.NewMat()
	defer frame.Close()

	th.Process([]model.Detection{known("alice"), unknown()}, frame, time.Unix(10_000, 0))

	require.Len(t, n.alerts, 2)
	assert.Equal(t, "alice", n.alerts[0].Name)
	assert.Equal(t, model.StatusCaptured, n.alerts[1].Status)
}

func TestThrottle_NoDetections(t *testing.T) {
	rec := &fakeRecorder{}
	saver := &fakeSaver{}
	th := newThrottle(rec, saver)
	frame := gocv.NewMat()
	defer frame.Close()

	assert.Empty(t, th.Process(nil, frame, time.Unix(10_000, 0)))
	assert.Empty(t, rec.events)
	assert.Zero(t, saver.calls)
}

func TestNewThrottle_NonPositiveCooldownsWarn(t *testing.T) {
	var buf bytes.Buffer
	th := NewThrottle(0, -time.Second, &fakeRecorder{}, &fakeSaver{}, logger.New(&buf, "debug"), nil)

	assert.Equal(t, DefaultLogCooldown, th.logCooldown)
	assert.Equal(t, DefaultUnknownCooldown, th.unknownCooldown)
	assert.Contains(t, buf.String(), "Log cooldown 0s is not positive")
	assert.Contains(t, buf.String(), "Unknown capture cooldown -1s is not positive")

	buf.Reset()
	NewThrottle(time.Second, time.Minute, &fakeRecorder{}, &fakeSaver{}, logger.New(&buf, "debug"), nil)
	assert.Empty(t, buf.String())
}
