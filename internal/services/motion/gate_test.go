package motion

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// scene returns a black BGR frame with an optional white square.
func scene(square image.Rectangle) gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 160, 160, gocv.MatTypeCV8UC3)
	if !square.Empty() {
		gocv.Rectangle(&mat, square, color.RGBA{R: 255, G: 255, B: 255}, -1)
	}
	return mat
}

func evaluate(t *testing.T, g *Gate, square image.Rectangle, at time.Time) State {
	t.Helper()
	frame := scene(square)
	defer frame.Close()

	state, err := g.Evaluate(frame, at)
	require.NoError(t, err)
	return state
}

func TestGate_FirstFrameOnlyPrimes(t *testing.T) {
	g := NewGate(DefaultMinArea, DefaultIdleWindow)
	defer g.Close()
	now := time.Unix(1000, 0)

	assert.Equal(t, Priming, evaluate(t, g, image.Rect(40, 40, 120, 120), now))
	assert.True(t, g.LastMotion().IsZero())
}

func TestGate_StaticSceneIsQuiet(t *testing.T) {
	g := NewGate(DefaultMinArea, DefaultIdleWindow)
	defer g.Close()
	now := time.Unix(1000, 0)

	evaluate(t, g, image.Rectangle{}, now)
	for i := 0; i < 3; i++ {
		assert.Equal(t, Quiet, evaluate(t, g, image.Rectangle{}, now))
	}
}

func TestGate_LargeChangeIsActive(t *testing.T) {
	g := NewGate(DefaultMinArea, DefaultIdleWindow)
	defer g.Close()
	start := time.Unix(1000, 0)
	seen := start.Add(time.Second)

	evaluate(t, g, image.Rectangle{}, start)

	assert.Equal(t, Active, evaluate(t, g, image.Rect(40, 40, 120, 120), seen))
	assert.Equal(t, seen, g.LastMotion())
}

func TestGate_SmallChangeIsQuiet(t *testing.T) {
	g := NewGate(DefaultMinArea, DefaultIdleWindow)
	defer g.Close()
	now := time.Unix(1000, 0)

	evaluate(t, g, image.Rectangle{}, now)

	assert.Equal(t, Quiet, evaluate(t, g, image.Rect(75, 75, 81, 81), now))
}

func TestGate_BackgroundAdapts(t *testing.T) {
	g := NewGate(DefaultMinArea, DefaultIdleWindow)
	defer g.Close()
	now := time.Unix(1000, 0)
	square := image.Rect(40, 40, 120, 120)

	evaluate(t, g, image.Rectangle{}, now)
	require.Equal(t, Active, evaluate(t, g, square, now))

	var last State
	for i := 0; i < 10; i++ {
		last = evaluate(t, g, square, now)
	}
	assert.Equal(t, Quiet, last, "a change that stays put becomes background")
}

func TestGate_Idle(t *testing.T) {
	g := NewGate(DefaultMinArea, 3*time.Second)
	defer g.Close()
	start := time.Unix(1000, 0)

	assert.True(t, g.Idle(start), "no motion yet")

	evaluate(t, g, image.Rectangle{}, start)
	require.Equal(t, Active, evaluate(t, g, image.Rect(40, 40, 120, 120), start))

	assert.False(t, g.Idle(start.Add(2*time.Second)))
	assert.False(t, g.Idle(start.Add(3*time.Second)), "window boundary is not idle")
	assert.True(t, g.Idle(start.Add(3*time.Second+time.Millisecond)))
}

func TestGate_EmptyFrame(t *testing.T) {
	g := NewGate(DefaultMinArea, DefaultIdleWindow)
	defer g.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	_, err := g.Evaluate(empty, time.Now())
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "State(9)", State(9).String())
}
