// 车辆与行人共用的智能体池：未激活队列、排队集合与活跃集合
package pool

import (
	"fmt"
	"slices"

	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/container"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/randengine"
)

// IAgent 池中实体需要实现的接口
type IAgent interface {
	container.IIncrementalItem
	Key() entity.AgentID // 场景中的唯一标识
	Reset()              // 清空瞬态字段（绑定、计时器、标志位）
}

type state int

const (
	stateInactive state = iota
	stateWaiting
	stateActive
)

// Pool 智能体池
// 功能：每个实体在任意时刻恰好处于未激活、排队、活跃三者之一，三者总数守恒
// 说明：
// 1. 未激活队列FIFO，初始化时随机打乱
// 2. 活跃集合为增量数组，新增与移除在Prepare时生效，活跃计数则立即更新
// 3. 拥堵等级只影响准入判断，切换等级不驱逐在途实体
type Pool[T IAgent] struct {
	name  string
	scene entity.IScene

	entities []T // 全部实体（创建顺序）
	inactive []T
	waiting  []T
	active   *container.IncrementalArray[T]
	nActive  int
	states   map[entity.AgentID]state

	tiers map[entity.Tier]TierParams
	tier  entity.Tier
}

// New 创建智能体池
// 参数：name-池名（日志用），scene-场景，entities-全部实体，rng-随机数引擎，tiers-拥堵等级表
// 说明：全部实体初始为未激活状态，并被放到场外停放位置
func New[T IAgent](
	name string,
	scene entity.IScene,
	entities []T,
	rng *randengine.Engine,
	tiers map[entity.Tier]TierParams,
) *Pool[T] {
	p := &Pool[T]{
		name:     name,
		scene:    scene,
		entities: entities,
		inactive: slices.Clone(entities),
		waiting:  make([]T, 0),
		active:   container.NewIncrementalArray[T](),
		states:   make(map[entity.AgentID]state, len(entities)),
		tiers:    tiers,
		tier:     entity.TierOff,
	}
	randengine.ShuffleSlice(rng, p.inactive)
	for _, e := range p.inactive {
		p.states[e.Key()] = stateInactive
		p.scene.SetPose(e.Key(), p.scene.Holding())
	}
	return p
}

// Activate 激活一个实体：未激活 -> 活跃
// 参数：spawn-生成参数的应用函数（可为nil）
// 返回：未激活队列为空时返回false，不做任何事
func (p *Pool[T]) Activate(spawn func(T)) (T, bool) {
	e, ok := p.popInactive()
	if !ok {
		return e, false
	}
	p.toActive(e, spawn)
	return e, true
}

// Reserve 预留一个实体：未激活 -> 排队
// 返回：未激活队列为空时返回false
func (p *Pool[T]) Reserve() (T, bool) {
	e, ok := p.popInactive()
	if !ok {
		return e, false
	}
	p.states[e.Key()] = stateWaiting
	p.waiting = append(p.waiting, e)
	return e, true
}

// Promote 排队实体开始活动：排队 -> 活跃
func (p *Pool[T]) Promote(e T, spawn func(T)) error {
	if s, ok := p.states[e.Key()]; !ok || s != stateWaiting {
		return fmt.Errorf("%s pool: promote %v which is not waiting", p.name, e.Key())
	}
	p.removeWaiting(e)
	p.toActive(e, spawn)
	return nil
}

// Deactivate 回收实体：排队/活跃 -> 未激活
// 功能：重置瞬态字段，移到场外停放位置，放回未激活队列末尾
// 返回：实体不属于本池或已是未激活状态时返回error
func (p *Pool[T]) Deactivate(e T) error {
	s, ok := p.states[e.Key()]
	switch {
	case !ok:
		return fmt.Errorf("%s pool: unknown entity %v", p.name, e.Key())
	case s == stateInactive:
		return fmt.Errorf("%s pool: deactivate %v which is already inactive", p.name, e.Key())
	case s == stateWaiting:
		p.removeWaiting(e)
	case s == stateActive:
		p.active.Remove(e)
		p.nActive--
	}
	e.Reset()
	p.scene.SetPose(e.Key(), p.scene.Holding())
	p.scene.SetLookAt(e.Key(), nil)
	p.states[e.Key()] = stateInactive
	p.inactive = append(p.inactive, e)
	return nil
}

// Reset 立即回收全部排队与活跃实体
// 返回：回收的数量
func (p *Pool[T]) Reset() int {
	n := 0
	for _, e := range p.entities {
		if p.states[e.Key()] == stateInactive {
			continue
		}
		if err := p.Deactivate(e); err != nil {
			log.Panicf("%s pool: reset failed: %v", p.name, err)
		}
		n++
	}
	log.Infof("%s pool: reset %d entities", p.name, n)
	return n
}

// SetTier 设置拥堵等级，不驱逐在途实体
func (p *Pool[T]) SetTier(t entity.Tier) {
	if _, ok := p.tiers[t]; !ok {
		log.Warnf("%s pool: tier %v not configured, ignored", p.name, t)
		return
	}
	if t != p.tier {
		log.Infof("%s pool: tier %v -> %v", p.name, p.tier, t)
	}
	p.tier = t
}

// Tier 当前拥堵等级
func (p *Pool[T]) Tier() entity.Tier {
	return p.tier
}

// Params 当前拥堵等级的参数
func (p *Pool[T]) Params() TierParams {
	return p.tiers[p.tier]
}

// CanAdmit 是否允许再准入一个实体：活跃+排队 < 等级上限
func (p *Pool[T]) CanAdmit() bool {
	return p.nActive+len(p.waiting) < p.Params().MaxConcurrent
}

// Counts 未激活、排队、活跃的数量
func (p *Pool[T]) Counts() (inactive, waiting, active int) {
	return len(p.inactive), len(p.waiting), p.nActive
}

// Total 池中实体总数
func (p *Pool[T]) Total() int {
	return len(p.entities)
}

// Active 活跃集合（上一次Prepare时提交的结果）
// 说明：遍历期间调用Deactivate是安全的，移除在下一次Prepare时生效
func (p *Pool[T]) Active() []T {
	return p.active.Data()
}

// IsActive 实体是否处于活跃状态
func (p *Pool[T]) IsActive(e T) bool {
	return p.states[e.Key()] == stateActive
}

// Waiting 排队集合（按进入顺序）
func (p *Pool[T]) Waiting() []T {
	return p.waiting
}

// Prepare 提交活跃集合的增量变更
func (p *Pool[T]) Prepare() {
	p.active.Prepare()
}

func (p *Pool[T]) popInactive() (T, bool) {
	if len(p.inactive) == 0 {
		var zero T
		log.Debugf("%s pool: no inactive entity", p.name)
		return zero, false
	}
	e := p.inactive[0]
	p.inactive = p.inactive[1:]
	return e, true
}

func (p *Pool[T]) toActive(e T, spawn func(T)) {
	p.states[e.Key()] = stateActive
	if spawn != nil {
		spawn(e)
	}
	p.active.Add(e)
	p.nActive++
}

func (p *Pool[T]) removeWaiting(e T) {
	i := slices.IndexFunc(p.waiting, func(x T) bool { return x.Key() == e.Key() })
	if i >= 0 {
		p.waiting = slices.Delete(p.waiting, i, i+1)
	}
}
