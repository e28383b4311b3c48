package timer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/timer"
)

func TestTimerFiresOnce(t *testing.T) {
	var tm timer.Timer
	fired := 0
	tm.Start(1, func() { fired++ })
	assert.True(t, tm.Running())
	assert.False(t, tm.Tick(0.5))
	assert.True(t, tm.Tick(0.5))
	assert.False(t, tm.Tick(0.5))
	assert.Equal(t, 1, fired)
	assert.False(t, tm.Running())
}

func TestTimerCancel(t *testing.T) {
	var tm timer.Timer
	fired := false
	tm.Start(0.2, func() { fired = true })
	tm.Cancel()
	assert.False(t, tm.Tick(1))
	assert.False(t, fired)
	assert.Equal(t, 0., tm.Remaining())
}

func TestTimerOvershoot(t *testing.T) {
	var tm timer.Timer
	tm.Start(0.25, nil)
	assert.True(t, tm.Tick(1))
	assert.InDelta(t, 0.75, tm.Overshoot(), 1e-12)
}

func TestTimerRestartReplacesAction(t *testing.T) {
	var tm timer.Timer
	first, second := false, false
	tm.Start(1, func() { first = true })
	tm.Start(2, func() { second = true })
	tm.Tick(1)
	assert.False(t, first)
	tm.Tick(1)
	assert.False(t, first)
	assert.True(t, second)
}
