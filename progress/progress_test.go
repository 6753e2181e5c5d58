package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronos-imaging/chronos/model"
)

func TestFirstEventAlwaysEmits(t *testing.T) {
	e := newEmitterWithClock(100<<20, func() time.Time { return time.Unix(0, 0) })
	assert.True(t, e.ShouldEmit(0, false))
}

func TestThrottleSuppressesEventsBeforeBothGatesPass(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	e := newEmitterWithClock(100<<20, clock)
	e.Emit(0, model.PhaseTransferring, "start")

	// Only 1 MiB processed, well under the 10 MiB gate, even after 1s.
	now = now.Add(time.Second)
	assert.False(t, e.ShouldEmit(1<<20, false))

	// Over 10 MiB processed since an emission made at the current instant,
	// but no time has passed since it.
	e.Emit(0, model.PhaseTransferring, "tick")
	assert.False(t, e.ShouldEmit(11<<20, false))
}

func TestThrottleAllowsEventOnceBothGatesPass(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	e := newEmitterWithClock(100<<20, clock)
	e.Emit(0, model.PhaseTransferring, "start")

	now = now.Add(600 * time.Millisecond)
	assert.True(t, e.ShouldEmit(11<<20, false))
}

func TestDoneAlwaysEmitsRegardlessOfThrottle(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	e := newEmitterWithClock(100<<20, clock)
	e.Emit(0, model.PhaseTransferring, "start")
	assert.True(t, e.ShouldEmit(1, true))
}

func TestEmitComputesRateAndRemaining(t *testing.T) {
	start := time.Unix(1000, 0)
	now := start
	clock := func() time.Time { return now }
	e := newEmitterWithClock(100, clock)

	now = start.Add(10 * time.Second)
	ev := e.Emit(50, model.PhaseTransferring, "halfway")

	require.NotNil(t, ev.TimeRemaining)
	assert.Equal(t, float64(5), ev.BytesPerSecond)
	assert.Equal(t, 50.0, ev.Percent)
	assert.Equal(t, 10*time.Second, *ev.TimeRemaining)
}

func TestEmitPercentClampedAtHundred(t *testing.T) {
	start := time.Unix(1000, 0)
	now := start.Add(time.Second)
	clock := func() time.Time { return now }
	e := newEmitterWithClock(10, clock)

	ev := e.Emit(20, model.PhaseTransferring, "")
	assert.Equal(t, 100.0, ev.Percent)
}

func TestEmitZeroElapsedYieldsNoRate(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	e := newEmitterWithClock(100, clock)
	ev := e.Emit(0, model.PhaseIdle, "")
	assert.Equal(t, float64(0), ev.BytesPerSecond)
	assert.Nil(t, ev.TimeRemaining)
}
