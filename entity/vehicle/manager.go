package vehicle

import (
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/pool"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/randengine"
)

// Manager 车辆管理器
// 功能：持有车辆池，每帧执行排队派发与跟驰更新
type Manager struct {
	scene entity.IScene
	rng   *randengine.Engine
	tiers map[entity.Tier]pool.TierParams
	tier  entity.Tier

	data     map[int32]*Vehicle
	vehicles []*Vehicle
	pool     *pool.Pool[*Vehicle]

	paths     []entity.IPath
	cadences  []pool.Cadence // 每条路径的生成节奏
	scanStart int            // 轮转扫描的起始路径

	completed int // 已完成行程数
}

// NewManager 创建车辆管理器实例
// 参数：scene-场景，rng-随机数引擎，tiers-拥堵等级表，tier-初始拥堵等级
func NewManager(
	scene entity.IScene,
	rng *randengine.Engine,
	tiers map[entity.Tier]pool.TierParams,
	tier entity.Tier,
) *Manager {
	return &Manager{
		scene:    scene,
		rng:      rng,
		tiers:    tiers,
		tier:     tier,
		data:     make(map[int32]*Vehicle),
		vehicles: make([]*Vehicle, 0),
	}
}

// Init 创建全部车辆并放入车辆池
// 参数：c-车辆配置，pathManager-路径管理器
func (m *Manager) Init(c config.Vehicles, pathManager entity.IPathManager) {
	m.vehicles = lo.Map(lo.Range(c.Count), func(i int, _ int) *Vehicle {
		return newVehicle(int32(i), c)
	})
	m.data = lo.SliceToMap(m.vehicles, func(v *Vehicle) (int32, *Vehicle) {
		return v.id, v
	})
	m.pool = pool.New("vehicle", m.scene, m.vehicles, m.rng, m.tiers)
	m.pool.SetTier(m.tier)
	m.paths = pathManager.Paths()
	m.cadences = make([]pool.Cadence, len(m.paths))
	log.Infof("Vehicle: %d, Path: %d, Tier: %v", len(m.vehicles), len(m.paths), m.tier)
}

// Get 根据ID获取车辆，如果不存在则panic
func (m *Manager) Get(id int32) entity.IVehicle {
	if v, ok := m.data[id]; !ok {
		log.Panicf("no id %d in vehicle data", id)
		return nil
	} else {
		return v
	}
}

// Vehicle 根据ID获取车辆实体
func (m *Manager) Vehicle(id int32) (*Vehicle, bool) {
	v, ok := m.data[id]
	return v, ok
}

// Active 活跃车辆
func (m *Manager) Active() []*Vehicle {
	return m.pool.Active()
}

func (m *Manager) Population() (inactive, waiting, active int) {
	return m.pool.Counts()
}

func (m *Manager) CompletedTrips() int {
	return m.completed
}

// SetTier 设置拥堵等级，在途与排队车辆不受影响
func (m *Manager) SetTier(t entity.Tier) {
	m.pool.SetTier(t)
	m.tier = m.pool.Tier()
}

func (m *Manager) Tier() entity.Tier {
	return m.pool.Tier()
}

// Reset 清空所有路径的排队并回收全部车辆
func (m *Manager) Reset() {
	for _, p := range m.paths {
		p.Flush()
	}
	for _, v := range m.vehicles {
		if v.status == StatusActive {
			v.path.Leave(&v.node)
		}
	}
	m.pool.Reset()
	for i := range m.cadences {
		m.cadences[i].Reset()
	}
}

// Prepare 准备阶段：提交活跃集合的变更
func (m *Manager) Prepare() {
	m.pool.Prepare()
}

// Update 更新阶段：先派发再跟驰
func (m *Manager) Update(dt float64) {
	m.dispatch(dt)
	m.follow(dt)
}

// dispatch 排队派发
// 算法说明：
// 1. 准入：活跃+排队数低于等级上限时，从池中预留一辆车，随机放入某条路径的排队队列
// 2. 轮转扫描所有路径（起始路径每帧轮换）：队列非空、生成冷却结束且入口传感器空闲时，
// 队首车辆驶入路径，并按连续生成/长暂停的节奏进入冷却
// 3. 传感器被占用的路径直接跳过，不视为错误
func (m *Manager) dispatch(dt float64) {
	for i := range m.cadences {
		m.cadences[i].Update(dt)
	}
	if len(m.paths) == 0 {
		return
	}
	if m.pool.CanAdmit() {
		if v, ok := m.pool.Reserve(); ok {
			p := m.paths[m.rng.Pick(len(m.paths))]
			p.Enqueue(v.id)
			log.Debugf("vehicle %d queued on path %d", v.id, p.ID())
		}
	}
	n := len(m.paths)
	start := m.scanStart
	m.scanStart = (start + 1) % n
	params := m.pool.Params()
	for i := range n {
		k := (start + i) % n
		p := m.paths[k]
		if p.QueueLen() == 0 || !m.cadences[k].Ready() || !p.SensorClear() {
			continue
		}
		if p.Signal() == nil {
			log.Debugf("path %d has no signal, skip dispatch", p.ID())
			continue
		}
		id, _ := p.Dequeue()
		v := m.data[id]
		if err := m.pool.Promote(v, func(v *Vehicle) { v.initialize(p) }); err != nil {
			log.Warnf("dispatch: %v", err)
			continue
		}
		m.scene.SetPose(v.Key(), v.Pose())
		m.cadences[k].Spawned(m.rng, params)
	}
}

// follow 跟驰更新所有活跃车辆，到达终点的车辆回收到池中
func (m *Manager) follow(dt float64) {
	for _, v := range m.pool.Active() {
		if v.status != StatusActive {
			continue
		}
		if v.path == nil || v.path.Signal() == nil {
			log.Debugf("vehicle %d has no path or signal binding, skip", v.id)
			continue
		}
		if v.update(dt) {
			m.finish(v)
			continue
		}
		m.scene.SetPose(v.Key(), v.Pose())
	}
}

// finish 车辆到达终点：驶离路径并回收
func (m *Manager) finish(v *Vehicle) {
	v.path.Leave(&v.node)
	m.completed++
	if err := m.pool.Deactivate(v); err != nil {
		log.Warnf("finish: %v", err)
	}
}
