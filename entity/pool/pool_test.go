package pool

import (
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/scene"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/container"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/randengine"
)

type agent struct {
	container.IncrementalItemBase
	id      int32
	payload int
	resets  int
}

func (a *agent) Key() entity.AgentID {
	return entity.AgentID{Kind: entity.KindVehicle, ID: a.id}
}

func (a *agent) Reset() {
	a.payload = 0
	a.resets++
}

func newTestPool(n int, tier entity.Tier) (*Pool[*agent], *scene.Scene) {
	sc := scene.New(geometry.Point{X: -500, Y: -500})
	agents := lo.Map(lo.Range(n), func(i int, _ int) *agent { return &agent{id: int32(i)} })
	tiers := DefaultTiers()
	tiers[entity.TierHigh] = TierParams{MaxConcurrent: 10, PauseInterval: 4, BurstCount: 4}
	p := New("test", sc, agents, randengine.New(7), tiers)
	p.SetTier(tier)
	return p, sc
}

func total(p *Pool[*agent]) int {
	i, w, a := p.Counts()
	return i + w + a
}

func TestActivateDeactivate(t *testing.T) {
	p, sc := newTestPool(3, entity.TierHigh)
	first, ok := p.Activate(func(a *agent) { a.payload = 42 })
	require.True(t, ok)
	assert.Equal(t, 42, first.payload)
	assert.True(t, p.IsActive(first))
	// 活跃计数立即更新，活跃数组在Prepare后更新
	_, _, active := p.Counts()
	assert.Equal(t, 1, active)
	assert.Empty(t, p.Active())
	p.Prepare()
	assert.Equal(t, []*agent{first}, p.Active())

	sc.SetPose(first.Key(), entity.Pose{Position: geometry.Point{X: 3}})
	target := geometry.Point{X: 1}
	sc.SetLookAt(first.Key(), &target)
	require.NoError(t, p.Deactivate(first))
	assert.Equal(t, 0, first.payload)
	assert.Equal(t, 1, first.resets)
	pose, _ := sc.Pose(first.Key())
	assert.Equal(t, -500.0, pose.Position.X)
	assert.Nil(t, sc.LookAt(first.Key()))
	assert.Error(t, p.Deactivate(first))
	p.Prepare()
	assert.Empty(t, p.Active())

	// 回收的实体排到未激活队列末尾
	second, _ := p.Activate(nil)
	third, _ := p.Activate(nil)
	again, ok := p.Activate(nil)
	require.True(t, ok)
	assert.Equal(t, first, again)
	assert.NotEqual(t, second, third)

	// 未激活队列为空：静默失败
	_, ok = p.Activate(nil)
	assert.False(t, ok)
	assert.Equal(t, 3, total(p))
}

func TestShuffledOrder(t *testing.T) {
	p, _ := newTestPool(20, entity.TierMax)
	ids := make([]int32, 0, 20)
	for {
		a, ok := p.Activate(nil)
		if !ok {
			break
		}
		ids = append(ids, a.id)
	}
	assert.ElementsMatch(t, lo.Map(lo.Range(20), func(i int, _ int) int32 { return int32(i) }), ids)
	// 同一种子下顺序可复现
	q, _ := newTestPool(20, entity.TierMax)
	for _, id := range ids {
		a, _ := q.Activate(nil)
		assert.Equal(t, id, a.id)
	}
}

func TestReservePromote(t *testing.T) {
	p, _ := newTestPool(4, entity.TierHigh)
	a, ok := p.Reserve()
	require.True(t, ok)
	b, _ := p.Reserve()
	assert.Equal(t, []*agent{a, b}, p.Waiting())
	assert.False(t, p.IsActive(a))

	require.NoError(t, p.Promote(b, func(x *agent) { x.payload = 1 }))
	assert.Equal(t, []*agent{a}, p.Waiting())
	assert.Equal(t, 1, b.payload)
	assert.Error(t, p.Promote(b, nil))

	c, _ := p.Activate(nil)
	assert.Error(t, p.Promote(c, nil))
	// 排队中的实体也可以直接回收
	require.NoError(t, p.Deactivate(a))
	assert.Empty(t, p.Waiting())
	assert.Equal(t, 4, total(p))
}

func TestConservation(t *testing.T) {
	p, _ := newTestPool(15, entity.TierMax)
	rng := randengine.New(3)
	live := make([]*agent, 0)
	for step := range 500 {
		switch rng.Intn(4) {
		case 0:
			if a, ok := p.Activate(nil); ok {
				live = append(live, a)
			}
		case 1:
			if a, ok := p.Reserve(); ok {
				live = append(live, a)
			}
		case 2:
			for _, a := range p.Waiting() {
				require.NoError(t, p.Promote(a, nil))
				break
			}
		case 3:
			if i := rng.Pick(len(live)); i >= 0 {
				require.NoError(t, p.Deactivate(live[i]))
				live = append(live[:i], live[i+1:]...)
			}
		}
		if step%7 == 0 {
			p.Prepare()
		}
		assert.Equal(t, 15, total(p))
		_, w, a := p.Counts()
		assert.Equal(t, len(live), w+a)
	}
}

func TestTierAdmission(t *testing.T) {
	p, _ := newTestPool(30, entity.TierHigh)
	assert.Equal(t, 10, p.Params().MaxConcurrent)
	admitted := 0
	for range 11 {
		if !p.CanAdmit() {
			continue
		}
		if admitted%2 == 0 {
			p.Activate(nil)
		} else {
			p.Reserve()
		}
		admitted++
	}
	// 第11个被推迟
	assert.Equal(t, 10, admitted)
	assert.False(t, p.CanAdmit())
	inactive, waiting, active := p.Counts()
	assert.Equal(t, 20, inactive)
	assert.Equal(t, 10, waiting+active)

	// 降级不驱逐
	p.SetTier(entity.TierLow)
	_, waiting2, active2 := p.Counts()
	assert.Equal(t, 10, waiting2+active2)
	assert.False(t, p.CanAdmit())

	// 人数降到上限以下后恢复准入
	p.SetTier(entity.TierHigh)
	p.Prepare()
	require.NoError(t, p.Deactivate(p.Active()[0]))
	assert.True(t, p.CanAdmit())

	// 显式重置立即回收
	assert.Equal(t, 9, p.Reset())
	_, waiting3, active3 := p.Counts()
	assert.Equal(t, 0, waiting3+active3)
	assert.Equal(t, 30, total(p))

	p.SetTier(entity.TierOff)
	assert.False(t, p.CanAdmit())
	p.SetTier(entity.Tier(42))
	assert.Equal(t, entity.TierOff, p.Tier())
}

func TestCadence(t *testing.T) {
	rng := randengine.New(1)
	params := TierParams{MaxConcurrent: 10, PauseInterval: 5, BurstCount: 3}
	var c Cadence
	assert.True(t, c.Ready())

	for i := range 2 {
		c.Spawned(rng, params)
		assert.Equal(t, i+1, c.Burst())
		assert.False(t, c.Ready())
		c.Update(0.99)
		assert.False(t, c.Ready())
		c.Update(1.01)
		assert.True(t, c.Ready())
	}
	// 第3次生成后长暂停并重新计数
	c.Spawned(rng, params)
	assert.Equal(t, 0, c.Burst())
	c.Update(4.9)
	assert.False(t, c.Ready())
	c.Update(0.1)
	assert.True(t, c.Ready())

	c.Spawned(rng, params)
	c.Reset()
	assert.True(t, c.Ready())
	assert.Equal(t, 0, c.Burst())
}

func TestLoadTiers(t *testing.T) {
	tiers, err := LoadTiers(map[string]config.Tier{"Low": {MaxConcurrent: 2, PauseInterval: 1, BurstCount: 1}})
	require.NoError(t, err)
	assert.Equal(t, 2, tiers[entity.TierLow].MaxConcurrent)
	assert.Equal(t, 20, tiers[entity.TierMax].MaxConcurrent)

	_, err = LoadTiers(map[string]config.Tier{"jammed": {}})
	assert.Error(t, err)
	_, err = LoadTiers(map[string]config.Tier{"max": {MaxConcurrent: -1}})
	assert.Error(t, err)
}
