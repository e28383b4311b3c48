package vehicle

import (
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/path"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/pool"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/scene"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/randengine"
)

var testVehicle = config.Vehicles{MaxSpeed: 5, Accel: 2, Decel: 5, Length: 4}

// 信号灯1控制两条直线路径，会话0为通行，会话1为停止
type testWorld struct {
	scene   *scene.Scene
	signals *signal.Manager
	paths   *path.Manager
}

func newWorld(t *testing.T) *testWorld {
	sc := scene.New(geometry.Point{X: -1000})
	sm := signal.NewManager(sc)
	require.NoError(t, sm.Init(
		[]config.Signal{{ID: 1, Forward: config.XY{X: -1}}},
		[]config.Session{
			{Name: "go", Duration: 1000, Phases: []config.PhaseAssignment{{Signal: 1, Phase: "go"}}},
			{Name: "stop", Duration: 1000, Phases: []config.PhaseAssignment{{Signal: 1, Phase: "stop"}}},
		},
	))
	pm := path.NewManager()
	require.NoError(t, pm.Init([]config.Path{
		{ID: 1, Points: []config.XY{{X: 0, Y: 0}, {X: 100, Y: 0}}, StopS: 50, Signal: 1},
		{ID: 2, Points: []config.XY{{X: 100, Y: 5}, {X: 0, Y: 5}}, StopS: 50, Signal: 1},
	}, sm))
	return &testWorld{scene: sc, signals: sm, paths: pm}
}

func (w *testWorld) phase(t *testing.T, p entity.SignalPhase) {
	if p == entity.PhaseGo {
		require.NoError(t, w.signals.CycleFrom(0))
	} else {
		require.NoError(t, w.signals.CycleFrom(1))
	}
}

// place 把车辆放到路径上的指定位置
func place(w *testWorld, id int32, pathID int32, s, v float64) *Vehicle {
	veh := newVehicle(id, testVehicle)
	p := w.paths.Get(pathID)
	veh.initialize(p)
	p.Leave(&veh.node)
	veh.node.S = s
	veh.v = v
	p.Enter(&veh.node)
	return veh
}

func TestNewlyAppearedStopTarget(t *testing.T) {
	w := newWorld(t)
	w.phase(t, entity.PhaseGo)
	veh := place(w, 0, 1, 46, 4)
	target, _ := veh.chooseTarget()
	assert.Equal(t, TargetEnd, target)

	// 信号变为停止：距停车线4，临界制动距离16/10=1.6<4，本帧仍加速
	w.phase(t, entity.PhaseStop)
	veh.update(0.1)
	target, targetS := veh.Target()
	assert.Equal(t, TargetStopLine, target)
	assert.Equal(t, 50.0, targetS)
	assert.InDelta(t, 4.2, veh.V(), 1e-9)
	assert.InDelta(t, 46.42, veh.S(), 1e-9)
}

func TestBrakingProperties(t *testing.T) {
	const dt = 0.1
	w := newWorld(t)
	w.phase(t, entity.PhaseStop)
	veh := place(w, 0, 1, 0, 0)
	for range 600 {
		_, targetS := veh.chooseTarget()
		before := veh.V()
		remaining := targetS - veh.S()
		critical := before * before / (2 * veh.decel)
		veh.update(dt)
		assert.GreaterOrEqual(t, veh.V(), 0.0)
		assert.LessOrEqual(t, veh.V(), veh.maxV)
		if remaining <= critical {
			if before > 0 {
				assert.Less(t, veh.V(), before)
			}
		} else if before < veh.maxV {
			assert.Greater(t, veh.V(), before)
		}
		// 停止相位下不越过停车线
		assert.LessOrEqual(t, veh.S(), 50.0+1e-9)
	}
	assert.Greater(t, veh.S(), 49.0)

	// 转为通行后驶向终点
	w.phase(t, entity.PhaseGo)
	arrived := false
	for range 600 {
		if veh.update(dt) {
			arrived = true
			break
		}
	}
	assert.True(t, arrived)
	assert.InDelta(t, 100, veh.S(), arriveEpsilon)
}

func TestLeaderPriorityAndProgressJump(t *testing.T) {
	w := newWorld(t)
	w.phase(t, entity.PhaseGo)
	leader := place(w, 0, 1, 30, 0)
	follower := place(w, 1, 1, 0, 5)

	// 前车静止：跟车目标为前车车尾再退一个车长
	for range 200 {
		follower.update(0.1)
		assert.LessOrEqual(t, follower.S(), 22.0+1e-9)
	}
	target, targetS := follower.Target()
	assert.Equal(t, TargetLeader, target)
	assert.Equal(t, 22.0, targetS)
	assert.InDelta(t, 22.0, follower.S(), 0.5)
	before := follower.Progress()
	assert.InDelta(t, 1.0, before, 0.05)

	// 前车驶离：目标变为终点，插值比例的分母随之改变，比例出现跳变
	w.paths.Get(1).Leave(&leader.node)
	follower.update(0.1)
	target, _ = follower.Target()
	assert.Equal(t, TargetEnd, target)
	assert.Less(t, follower.Progress(), 0.5)
	assert.Greater(t, before-follower.Progress(), 0.5)
}

func TestLeaderOverridesSignal(t *testing.T) {
	w := newWorld(t)
	w.phase(t, entity.PhaseStop)
	// 前车已越过停车线并在行驶
	place(w, 0, 1, 60, 5)
	follower := place(w, 1, 1, 40, 3)
	follower.update(0.1)
	target, targetS := follower.Target()
	assert.Equal(t, TargetLeader, target)
	assert.Equal(t, 52.0, targetS)
}

func newTestManager(t *testing.T, w *testWorld, count int, params pool.TierParams) *Manager {
	tiers := pool.DefaultTiers()
	tiers[entity.TierHigh] = params
	m := NewManager(w.scene, randengine.New(11), tiers, entity.TierHigh)
	c := testVehicle
	c.Count = count
	m.Init(c, w.paths)
	return m
}

func step(m *Manager, n int, dt float64) {
	for range n {
		m.Prepare()
		m.Update(dt)
	}
}

func TestDispatchWaitsForSensor(t *testing.T) {
	w := newWorld(t)
	w.phase(t, entity.PhaseGo)
	pm := path.NewManager()
	require.NoError(t, pm.Init([]config.Path{
		{ID: 9, Points: []config.XY{{X: 0, Y: 0}, {X: 100, Y: 0}}, StopS: 50, Signal: 1},
	}, w.signals))
	w.paths = pm
	m := newTestManager(t, w, 5, pool.TierParams{MaxConcurrent: 3, PauseInterval: 0, BurstCount: 10})

	require.NoError(t, pm.Overlap(entity.OverlapEvent{Path: 9, Kind: entity.OverlapEnter, Other: 77}))
	step(m, 10, 0.1)
	inactive, waiting, active := m.Population()
	assert.Equal(t, 2, inactive)
	assert.Equal(t, 3, waiting)
	assert.Equal(t, 0, active)
	assert.Equal(t, 3, pm.Get(9).QueueLen())

	require.NoError(t, pm.Overlap(entity.OverlapEvent{Path: 9, Kind: entity.OverlapExit, Other: 77}))
	step(m, 1, 0.1)
	_, waiting, active = m.Population()
	assert.Equal(t, 2, waiting)
	assert.Equal(t, 1, active)

	// 新驶入车辆的车尾仍在传感器内，下一辆继续排队
	step(m, 5, 0.1)
	_, _, active = m.Population()
	assert.Equal(t, 1, active)
	pose, ok := w.scene.Pose(entity.AgentID{Kind: entity.KindVehicle, ID: m.Active()[0].ID()})
	require.True(t, ok)
	assert.Greater(t, pose.Position.X, 0.0)
}

func TestDispatchCongestionCap(t *testing.T) {
	w := newWorld(t)
	w.phase(t, entity.PhaseStop)
	m := newTestManager(t, w, 30, pool.TierParams{MaxConcurrent: 10, PauseInterval: 1, BurstCount: 3})
	for range 1000 {
		step(m, 1, 0.1)
		_, waiting, active := m.Population()
		assert.LessOrEqual(t, waiting+active, 10)
	}
	inactive, waiting, active := m.Population()
	assert.Equal(t, 10, waiting+active)
	assert.Equal(t, 20, inactive)
	// 停止相位下有车辆驶入并停在停车线前
	assert.Greater(t, active, 0)
	for _, v := range m.Active() {
		assert.LessOrEqual(t, v.S(), 50.0+1e-9)
	}

	// 人数降到上限以下后恢复准入
	w.phase(t, entity.PhaseGo)
	step(m, 400, 0.1)
	assert.Greater(t, m.CompletedTrips(), 0)
	_, waiting, active = m.Population()
	assert.LessOrEqual(t, waiting+active, 10)

	// 重置：排队与在途车辆全部回收
	m.Reset()
	inactive, waiting, active = m.Population()
	assert.Equal(t, 30, inactive)
	assert.Equal(t, 0, waiting+active)
	for _, p := range w.paths.Paths() {
		assert.Equal(t, 0, p.QueueLen())
		assert.True(t, p.SensorClear())
	}
}

func TestDispatchTierOff(t *testing.T) {
	w := newWorld(t)
	m := newTestManager(t, w, 5, pool.TierParams{MaxConcurrent: 5, PauseInterval: 1, BurstCount: 1})
	m.SetTier(entity.TierOff)
	step(m, 50, 0.1)
	inactive, _, _ := m.Population()
	assert.Equal(t, 5, inactive)
	assert.Equal(t, entity.TierOff, m.Tier())
}
