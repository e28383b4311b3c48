package clock

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	clockv1 "git.fiblab.net/sim/protos/v2/go/city/clock/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

func TestClockAdvance(t *testing.T) {
	c := New(config.ControlStep{Start: 10, Total: 2, Interval: 0.1})
	assert.Equal(t, int32(10), c.InternalStep)
	assert.InDelta(t, 1.0, c.T, 1e-12)
	assert.False(t, c.Done())

	c.Advance()
	assert.InDelta(t, 1.1, c.T, 1e-12)
	assert.True(t, c.Done())

	c.Init()
	assert.Equal(t, int32(10), c.InternalStep)
}

func TestClockString(t *testing.T) {
	c := New(config.ControlStep{Start: 3725, Total: 1, Interval: 1})
	assert.Equal(t, "01:02:05", c.String())
	hour, minute, second := c.GetHourMinuteSecond()
	assert.Equal(t, 1, hour)
	assert.Equal(t, 2, minute)
	assert.InDelta(t, 5.0, second, 1e-12)
}

func TestClockNow(t *testing.T) {
	c := New(config.ControlStep{Start: 5, Total: 10, Interval: 0.5})
	res, err := c.Now(context.Background(), connect.NewRequest(&clockv1.NowRequest{}))
	require.NoError(t, err)
	assert.InDelta(t, 2.5, res.Msg.T, 1e-12)
}
