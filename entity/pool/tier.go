package pool

import (
	"fmt"

	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/randengine"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/timer"
)

// TierParams 拥堵等级对应的准入与生成节奏参数
type TierParams struct {
	MaxConcurrent int     // 在途+排队的最大数量
	PauseInterval float64 // 一轮连续生成后的长暂停（秒）
	BurstCount    int     // 一轮连续生成的数量
}

// DefaultTiers 默认拥堵等级表
func DefaultTiers() map[entity.Tier]TierParams {
	return map[entity.Tier]TierParams{
		entity.TierOff:    {MaxConcurrent: 0, PauseInterval: 0, BurstCount: 0},
		entity.TierLow:    {MaxConcurrent: 4, PauseInterval: 8, BurstCount: 2},
		entity.TierMedium: {MaxConcurrent: 8, PauseInterval: 6, BurstCount: 3},
		entity.TierHigh:   {MaxConcurrent: 12, PauseInterval: 4, BurstCount: 4},
		entity.TierMax:    {MaxConcurrent: 20, PauseInterval: 2, BurstCount: 6},
	}
}

// LoadTiers 在默认等级表上应用配置中的覆盖项
func LoadTiers(overrides map[string]config.Tier) (map[entity.Tier]TierParams, error) {
	tiers := DefaultTiers()
	for name, c := range overrides {
		t, err := entity.ParseTier(name)
		if err != nil {
			return nil, err
		}
		if c.MaxConcurrent < 0 || c.PauseInterval < 0 || c.BurstCount < 0 {
			return nil, fmt.Errorf("tier %s has negative parameter %+v", name, c)
		}
		tiers[t] = TierParams{
			MaxConcurrent: c.MaxConcurrent,
			PauseInterval: c.PauseInterval,
			BurstCount:    c.BurstCount,
		}
	}
	return tiers, nil
}

// 连续生成之间的短间隔范围（秒）
const (
	burstDelayMin = 1.0
	burstDelayMax = 2.0
)

// Cadence 生成节奏
// 功能：每次生成后进入冷却；一轮内的生成间隔为1~2秒随机，满BurstCount次后长暂停PauseInterval并重新计数
type Cadence struct {
	cooldown timer.Timer
	burst    int
}

// Ready 冷却是否结束
func (c *Cadence) Ready() bool {
	return !c.cooldown.Running()
}

// Burst 本轮已连续生成的数量
func (c *Cadence) Burst() int {
	return c.burst
}

// Spawned 记录一次生成并开始冷却
func (c *Cadence) Spawned(rng *randengine.Engine, p TierParams) {
	c.burst++
	if p.BurstCount <= 0 || c.burst >= p.BurstCount {
		c.burst = 0
		c.cooldown.Start(p.PauseInterval, nil)
	} else {
		c.cooldown.Start(rng.Uniform(burstDelayMin, burstDelayMax), nil)
	}
}

// Update 推进冷却计时
func (c *Cadence) Update(dt float64) {
	c.cooldown.Tick(dt)
}

// Reset 清除冷却与计数
func (c *Cadence) Reset() {
	c.cooldown.Cancel()
	c.burst = 0
}
