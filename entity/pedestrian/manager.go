package pedestrian

import (
	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/pool"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/randengine"
)

// decision 人行横道内一帧的决策结果
type decision int

const (
	decisionMove decision = iota // 正常行走
	decisionWait                 // 原地等待
	decisionSkip                 // 缺少信号灯绑定，本帧不处理
)

// Manager 行人管理器
// 功能：持有行人池，每帧生成新行人并推进每个行人的过街决策与行走
type Manager struct {
	scene entity.IScene
	rng   *randengine.Engine
	tiers map[entity.Tier]pool.TierParams
	tier  entity.Tier

	config      config.Pedestrians
	routes      [][]geometry.Point
	crosswalks  []*Crosswalk
	signals     entity.ISignalManager
	data        map[int32]*Pedestrian
	pedestrians []*Pedestrian
	pool        *pool.Pool[*Pedestrian]
	cadence     pool.Cadence

	completed int // 已完成行程数
}

// NewManager 创建行人管理器实例
// 参数：scene-场景，rng-随机数引擎，tiers-拥堵等级表，tier-初始拥堵等级
func NewManager(
	scene entity.IScene,
	rng *randengine.Engine,
	tiers map[entity.Tier]pool.TierParams,
	tier entity.Tier,
) *Manager {
	return &Manager{
		scene:       scene,
		rng:         rng,
		tiers:       tiers,
		tier:        tier,
		data:        make(map[int32]*Pedestrian),
		pedestrians: make([]*Pedestrian, 0),
	}
}

// Init 创建全部行人与人行横道
// 参数：c-行人配置，crosswalks-人行横道配置，signalManager-信号灯管理器，pathManager-路径管理器
// 说明：人行横道引用的路径不存在时该人行横道被忽略
func (m *Manager) Init(
	c config.Pedestrians,
	crosswalks []config.Crosswalk,
	signalManager entity.ISignalManager,
	pathManager entity.IPathManager,
) {
	m.config = c
	m.signals = signalManager
	m.routes = lo.Map(c.Routes, func(r config.PedestrianRoute, _ int) []geometry.Point {
		return lo.Map(r.Waypoints, func(p config.XY, _ int) geometry.Point {
			return geometry.Point{X: p.X, Y: p.Y}
		})
	})
	m.crosswalks = make([]*Crosswalk, 0, len(crosswalks))
	for _, cc := range crosswalks {
		cw, err := newCrosswalk(cc, pathManager)
		if err != nil {
			log.Warnf("ignore crosswalk: %v", err)
			continue
		}
		m.crosswalks = append(m.crosswalks, cw)
	}
	m.pedestrians = lo.Map(lo.Range(c.Count), func(i int, _ int) *Pedestrian {
		return newPedestrian(int32(i), m.scene, m.rng)
	})
	m.data = lo.SliceToMap(m.pedestrians, func(p *Pedestrian) (int32, *Pedestrian) {
		return p.id, p
	})
	m.pool = pool.New("pedestrian", m.scene, m.pedestrians, m.rng, m.tiers)
	m.pool.SetTier(m.tier)
	log.Infof("Pedestrian: %d, Route: %d, Crosswalk: %d, Tier: %v",
		len(m.pedestrians), len(m.routes), len(m.crosswalks), m.tier)
}

// Get 根据ID获取行人，如果不存在则panic
func (m *Manager) Get(id int32) *Pedestrian {
	if p, ok := m.data[id]; !ok {
		log.Panicf("no id %d in pedestrian data", id)
		return nil
	} else {
		return p
	}
}

// Active 活跃行人
func (m *Manager) Active() []*Pedestrian {
	return m.pool.Active()
}

func (m *Manager) Crosswalks() []*Crosswalk {
	return m.crosswalks
}

func (m *Manager) Population() (inactive, waiting, active int) {
	return m.pool.Counts()
}

func (m *Manager) CompletedTrips() int {
	return m.completed
}

// SetTier 设置拥堵等级，在途行人不受影响
func (m *Manager) SetTier(t entity.Tier) {
	m.pool.SetTier(t)
	m.tier = m.pool.Tier()
}

func (m *Manager) Tier() entity.Tier {
	return m.pool.Tier()
}

// Reset 回收全部在途行人
func (m *Manager) Reset() {
	m.pool.Reset()
	m.cadence.Reset()
}

// Prepare 准备阶段：提交活跃集合的变更
func (m *Manager) Prepare() {
	m.pool.Prepare()
}

// Spawn 按指定参数立即生成一个行人，不受拥堵等级限制
// 返回：池中没有未激活行人或路线为空时返回false
func (m *Manager) Spawn(profile Profile) (*Pedestrian, bool) {
	if len(profile.Waypoints) == 0 {
		log.Warnf("spawn: empty route")
		return nil, false
	}
	return m.pool.Activate(func(p *Pedestrian) {
		// 路线非空时initialize不会失败
		_ = p.initialize(profile)
	})
}

// Update 更新阶段：先生成再推进行人
func (m *Manager) Update(dt float64) {
	m.spawn(dt)
	for _, p := range m.pool.Active() {
		if !m.pool.IsActive(p) {
			continue
		}
		if m.update(p, dt) {
			m.finish(p)
		}
	}
}

// spawn 按生成节奏与拥堵等级生成随机行人
func (m *Manager) spawn(dt float64) {
	m.cadence.Update(dt)
	if len(m.routes) == 0 || !m.cadence.Ready() || !m.pool.CanAdmit() {
		return
	}
	if _, ok := m.Spawn(m.randomProfile()); ok {
		m.cadence.Spawned(m.rng, m.pool.Params())
	}
}

// randomProfile 随机生成参数：路线、行为类型、自信程度与各项延迟
func (m *Manager) randomProfile() Profile {
	c := m.config
	i := m.rng.Pick(len(m.routes))
	profile := Profile{
		Waypoints:   m.routes[i],
		Loop:        c.Routes[i].Loop,
		Warp:        c.Routes[i].Warp,
		Behavior:    entity.BehaviorCautious,
		Confidence:  entity.Confident,
		BaseDelay:   m.rng.Uniform(c.BaseDelay.Min, c.BaseDelay.Max),
		CommitDelay: m.rng.Uniform(c.CommitDelay.Min, c.CommitDelay.Max),
		Speed:       m.rng.Uniform(c.Speed.Min, c.Speed.Max),
	}
	if m.rng.PTrue(c.RiskyRatio) {
		profile.Behavior = entity.BehaviorRisky
	}
	if m.rng.PTrue(c.NotConfidentRatio) {
		profile.Confidence = entity.NotConfident
	}
	return profile
}

// crosswalkAt 包含给定点的第一个人行横道
func (m *Manager) crosswalkAt(pos geometry.Point) *Crosswalk {
	for _, cw := range m.crosswalks {
		if cw.Contains(pos) {
			return cw
		}
	}
	return nil
}

// update 推进单个行人一帧
// 返回：是否走完路线（非循环路线）
// 算法说明：
// 1. 累计生成后时间，推进计时器
// 2. 寻找当前目标路点，朝向目标
// 3. 在人行横道内时按信号灯与行为类型决策，否则直接行走
// 4. 更新左右张望状态，写回场景位姿
func (m *Manager) update(p *Pedestrian, dt float64) bool {
	p.elapsed += dt
	if p.elapsed >= p.profile.BaseDelay {
		p.canCrossAfterDelay = true
	}
	p.tickTimers(dt)

	target, ok := p.target()
	if !ok {
		return true
	}
	if d, ok := direction(p.position, target); ok {
		p.heading = d
	}

	cw := m.crosswalkAt(p.position)
	result := decisionMove
	if cw != nil {
		result = m.decide(p, cw)
	}
	switch result {
	case decisionSkip:
		log.Debugf("pedestrian %d has no facing signal in crosswalk %d, skip", p.id, cw.id)
		return false
	case decisionMove:
		p.moving = true
		p.step(target, dt)
	case decisionWait:
		p.moving = false
	}

	if p.scans() {
		switch {
		case result == decisionWait && !p.riskyButCrossing && !p.scanning:
			p.startScan(cw.lookPoints)
		case result == decisionMove && p.scanning:
			p.stopScan(true)
		}
	}
	m.scene.SetPose(p.Key(), p.Pose())
	return false
}

// decide 人行横道内的过街决策
// 算法说明：
// 1. 额外等待已结束：不再读取信号灯，直接通行
// 2. 找不到正对的行人信号灯：跳过本帧
// 3. 通行/警示：通行；停止：谨慎型等待
// 4. 冒险型：等满BaseDelay，确认车流间隙安全（一旦确认不再撤销），
// 启动一次额外等待计时，计时结束前原地等待
func (m *Manager) decide(p *Pedestrian, cw *Crosswalk) decision {
	if p.commitDone {
		return decisionMove
	}
	sig, _ := m.signals.GetFacingSignal(p.heading)
	if sig == nil {
		return decisionSkip
	}
	if sig.Phase() != entity.PhaseStop {
		return decisionMove
	}
	if p.profile.Behavior == entity.BehaviorCautious {
		return decisionWait
	}
	if !p.canCrossAfterDelay {
		return decisionWait
	}
	if !p.riskyButCrossing {
		if !cw.gapSafe(p.profile.Speed, p.profile.CommitDelay) {
			return decisionWait
		}
		p.riskyButCrossing = true
		log.Debugf("pedestrian %d commits to cross crosswalk %d", p.id, cw.id)
	}
	if !p.commitInit {
		p.startCommit()
	}
	if p.commitDone {
		return decisionMove
	}
	return decisionWait
}

// finish 行人走完路线：回收到池中
func (m *Manager) finish(p *Pedestrian) {
	m.completed++
	if err := m.pool.Deactivate(p); err != nil {
		log.Warnf("finish: %v", err)
	}
}
