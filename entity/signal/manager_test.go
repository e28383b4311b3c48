package signal

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"git.fiblab.net/general/common/v2/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/scene"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

var testSignals = []config.Signal{
	{ID: 1, Name: "ped-east", Forward: config.XY{X: 1}, Pedestrian: true},
	{ID: 2, Name: "ped-west", Forward: config.XY{X: -1}, Pedestrian: true},
	{ID: 3, Name: "car-north", Forward: config.XY{Y: 1}},
}

func twoSessions() []config.Session {
	return []config.Session{
		{
			Name:     "cars",
			Duration: 5,
			Phases: []config.PhaseAssignment{
				{Signal: 3, Phase: "go"},
				{Signal: 1, Phase: "stop"},
				{Signal: 2, Phase: "stop"},
			},
			Obstacles: []string{"crosswalk-gate"},
		},
		{
			Name:     "walkers",
			Duration: 3,
			Phases: []config.PhaseAssignment{
				{Signal: 3, Phase: "stop"},
				{Signal: 1, Phase: "go"},
				{Signal: 2, Phase: "go", Flicker: true},
			},
		},
	}
}

func newTestManager(t *testing.T, sessions []config.Session) (*Manager, *scene.Scene) {
	sc := scene.New(geometry.Point{X: -1000})
	m := NewManager(sc)
	require.NoError(t, m.Init(testSignals, sessions))
	return m, sc
}

// run 以固定步长推进n步
func run(m *Manager, n int, dt float64) {
	for range n {
		m.Prepare()
		m.Update(dt)
	}
}

func activeIndex(m *Manager) int {
	i, _ := m.ActiveSession()
	return i
}

func TestCycleTwoSessions(t *testing.T) {
	m, _ := newTestManager(t, twoSessions())
	require.NoError(t, m.CycleFrom(0))
	run(m, 40, 0.1) // t=4
	assert.Equal(t, 0, activeIndex(m))
	assert.Equal(t, entity.PhaseGo, m.Get(3).Phase())
	run(m, 20, 0.1) // t=6
	assert.Equal(t, 1, activeIndex(m))
	assert.Equal(t, entity.PhaseStop, m.Get(3).Phase())
	assert.Equal(t, entity.PhaseGo, m.Get(1).Phase())
	run(m, 30, 0.1) // t=9
	assert.Equal(t, 0, activeIndex(m))
	assert.Equal(t, 2, m.Switches())
}

func TestSessionOnDurationAndExclusive(t *testing.T) {
	const dt = 0.1
	m, _ := newTestManager(t, twoSessions())
	require.NoError(t, m.CycleFrom(1))
	last, lastT := activeIndex(m), 0.0
	now := 0.0
	changes := 0
	for range 600 {
		run(m, 1, dt)
		now += dt
		on := 0
		for _, s := range m.Sessions() {
			if s.On() {
				on++
			}
		}
		assert.Equal(t, 1, on)
		if cur := activeIndex(m); cur != last {
			assert.InDelta(t, m.Sessions()[last].Duration(), now-lastT, dt+1e-9)
			assert.Equal(t, (last+1)%2, cur)
			last, lastT = cur, now
			changes++
		}
	}
	// 60秒内3+5秒为一个周期
	assert.Equal(t, 15, changes)
}

func TestCycleFromRestart(t *testing.T) {
	m, sc := newTestManager(t, twoSessions())
	require.NoError(t, m.CycleFrom(0))
	assert.True(t, sc.Obstacle("crosswalk-gate"))
	run(m, 20, 0.1)

	// 越界下标：报告错误，原状态不变
	err := m.CycleFrom(2)
	assert.ErrorIs(t, err, ErrBadSessionIndex)
	assert.ErrorIs(t, m.CycleFrom(-1), ErrBadSessionIndex)
	assert.Equal(t, 0, activeIndex(m))
	assert.InDelta(t, 3.0, m.Remaining(), 1e-9)

	// 重新开始时取消原有计时
	require.NoError(t, m.CycleFrom(1))
	assert.Equal(t, 1, activeIndex(m))
	assert.False(t, m.Sessions()[0].On())
	assert.False(t, sc.Obstacle("crosswalk-gate"))
	assert.InDelta(t, 3.0, m.Remaining(), 1e-9)
	run(m, 29, 0.1)
	assert.Equal(t, 1, activeIndex(m))
	run(m, 1, 0.1)
	assert.Equal(t, 0, activeIndex(m))
	assert.True(t, sc.Obstacle("crosswalk-gate"))
}

func TestCycleWithoutSession(t *testing.T) {
	m, _ := newTestManager(t, nil)
	assert.NoError(t, m.CycleFrom(0))
	run(m, 10, 1)
	_, ok := m.ActiveSession()
	assert.False(t, ok)
	assert.Equal(t, 0, m.Switches())
}

func TestFlicker(t *testing.T) {
	m, _ := newTestManager(t, twoSessions())
	require.NoError(t, m.CycleFrom(1))
	s, ok := m.Signal(2)
	require.True(t, ok)
	g := s.Group(entity.PhaseGo)
	assert.True(t, g.Flickering())
	assert.True(t, g.Visible())
	run(m, 2, 0.25)
	assert.False(t, g.Visible())
	assert.True(t, g.Enabled())
	run(m, 2, 0.25)
	assert.True(t, g.Visible())
	run(m, 1, 0.25)
	run(m, 1, 0.25)
	assert.False(t, g.Visible())

	// 再次启动同一灯组：取代原任务，重新计时
	require.NoError(t, m.Flicker(2, entity.PhaseGo))
	assert.True(t, g.Visible())
	run(m, 1, 0.25)
	assert.True(t, g.Visible())
	run(m, 1, 0.25)
	assert.False(t, g.Visible())

	// 会话关闭时取消闪烁
	run(m, 8, 0.25) // t=4
	assert.Equal(t, 0, activeIndex(m))
	assert.False(t, g.Flickering())
	assert.Equal(t, entity.PhaseStop, s.Phase())
	assert.False(t, g.Enabled())
}

func TestGetFacingSignal(t *testing.T) {
	m, _ := newTestManager(t, nil)
	// 行人向西走，面向朝东的信号灯
	s, score := m.GetFacingSignal(geometry.Point{X: -1})
	require.NotNil(t, s)
	assert.Equal(t, int32(1), s.ID())
	assert.Equal(t, -1.0, score)

	s, _ = m.GetFacingSignal(geometry.Point{X: 1})
	assert.Equal(t, int32(2), s.ID())

	// 平局取先找到的
	s, score = m.GetFacingSignal(geometry.Point{Y: 1})
	assert.Equal(t, int32(1), s.ID())
	assert.Equal(t, 0.0, score)

	// 没有行人信号灯
	m2 := NewManager(scene.New(geometry.Point{}))
	require.NoError(t, m2.Init(testSignals[2:], nil))
	s, _ = m2.GetFacingSignal(geometry.Point{X: 1})
	assert.Nil(t, s)
}

func TestInitErrors(t *testing.T) {
	m := NewManager(scene.New(geometry.Point{}))
	err := m.Init(testSignals, []config.Session{{Name: "bad", Duration: 1, Phases: []config.PhaseAssignment{{Signal: 3, Phase: "purple"}}}})
	assert.Error(t, err)
	err = m.Init(testSignals, []config.Session{{Name: "bad", Duration: 1, Phases: []config.PhaseAssignment{{Signal: 9, Phase: "go"}}}})
	assert.Error(t, err)
	_, err = m.GetOrError(9)
	assert.Error(t, err)
	assert.Panics(t, func() { m.Get(9) })
}

func TestRPCBufferedCycleFrom(t *testing.T) {
	m, _ := newTestManager(t, twoSessions())
	require.NoError(t, m.CycleFrom(0))
	ctx := context.Background()

	_, err := m.handleCycleFrom(ctx, connect.NewRequest(&CycleFromRequest{Index: 5}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = m.handleCycleFrom(ctx, connect.NewRequest(&CycleFromRequest{Index: 1}))
	require.NoError(t, err)
	// 未到Prepare之前不生效
	assert.Equal(t, 0, activeIndex(m))
	m.Prepare()
	assert.Equal(t, 1, activeIndex(m))

	res, err := m.handleGetSignals(ctx, connect.NewRequest(&GetSignalsRequest{IDs: []int32{3, 1}}))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Msg.ActiveSession)
	require.Len(t, res.Msg.Signals, 2)
	assert.Equal(t, "stop", res.Msg.Signals[0].Phase)
	assert.Equal(t, "LIGHT_STATE_RED", res.Msg.Signals[0].LightState)
	assert.Equal(t, "go", res.Msg.Signals[1].Phase)

	_, err = m.handleGetSignals(ctx, connect.NewRequest(&GetSignalsRequest{IDs: []int32{42}}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestPhaseAccessors(t *testing.T) {
	m, _ := newTestManager(t, twoSessions())
	assert.Len(t, m.Signals(), 3)
	p, err := m.Phase(3)
	require.NoError(t, err)
	assert.Equal(t, entity.PhaseStop, p)
	require.NoError(t, m.CycleFrom(1))
	p, err = m.Phase(1)
	require.NoError(t, err)
	assert.Equal(t, entity.PhaseGo, p)
	_, err = m.Phase(42)
	assert.Error(t, err)
}
