package vehicle

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/container"
)

const (
	arriveEpsilon    = 1e-3 // 到达终点的判定距离
	defaultLookahead = 30.0 // 默认前车探测距离
)

// Status 车辆状态
type Status int

const (
	StatusIdle   Status = iota // 在池中（未激活或排队）
	StatusActive               // 在路径上行驶
)

// Target 本帧的停车目标类型，按优先级从高到低为前车、停车线、终点
type Target int

const (
	TargetEnd Target = iota
	TargetStopLine
	TargetLeader
)

func (t Target) String() string {
	switch t {
	case TargetLeader:
		return "leader"
	case TargetStopLine:
		return "stop-line"
	default:
		return "end"
	}
}

// Vehicle 车辆
// 功能：沿绑定路径行驶，按前车/停车线/终点的优先级选择目标，按制动距离决定加减速
type Vehicle struct {
	container.IncrementalItemBase

	id        int32
	maxV      float64
	accel     float64
	decel     float64
	length    float64
	initialV  float64
	lookahead float64

	status Status
	path   entity.IPath
	node   entity.VehicleNode // 路径车辆链表节点，S为车头位置
	v      float64

	entryS   float64 // 驶入路径时的位置
	progress float64 // 本帧插值比例（未截断）
	target   Target
	targetS  float64
}

func newVehicle(id int32, c config.Vehicles) *Vehicle {
	lookahead := c.Lookahead
	if lookahead <= 0 {
		lookahead = defaultLookahead
	}
	v := &Vehicle{
		id:        id,
		maxV:      c.MaxSpeed,
		accel:     c.Accel,
		decel:     c.Decel,
		length:    c.Length,
		initialV:  lo.Clamp(c.InitialSpeed, 0, c.MaxSpeed),
		lookahead: lookahead,
	}
	v.node.Value = v
	return v
}

func (v *Vehicle) String() string {
	pathID := int32(-1)
	if v.path != nil {
		pathID = v.path.ID()
	}
	return fmt.Sprintf("Vehicle{ID:%d, Path:%d, S:%.2f, V:%.2f, Target:%v}", v.id, pathID, v.node.S, v.v, v.target)
}

func (v *Vehicle) ID() int32 {
	return v.id
}

func (v *Vehicle) V() float64 {
	return v.v
}

func (v *Vehicle) Length() float64 {
	return v.length
}

func (v *Vehicle) Key() entity.AgentID {
	return entity.AgentID{Kind: entity.KindVehicle, ID: v.id}
}

func (v *Vehicle) Status() Status {
	return v.status
}

// Path 绑定的路径，空闲时为nil
func (v *Vehicle) Path() entity.IPath {
	return v.path
}

// S 车头在路径上的位置
func (v *Vehicle) S() float64 {
	return v.node.S
}

// Progress 上一帧计算的插值比例
// 说明：分母随当前目标重新计算，目标变化时该值会跳变
func (v *Vehicle) Progress() float64 {
	return v.progress
}

// Target 上一帧选择的目标类型与位置
func (v *Vehicle) Target() (Target, float64) {
	return v.target, v.targetS
}

// Pose 当前位姿
func (v *Vehicle) Pose() entity.Pose {
	pose := v.path.PoseAt(v.node.S)
	pose.Speed = v.v
	return pose
}

// Reset 清空路径与信号绑定以及运动状态
func (v *Vehicle) Reset() {
	if v.node.Parent() != nil {
		log.Panicf("reset vehicle %d still on path", v.id)
	}
	v.status = StatusIdle
	v.path = nil
	v.v = 0
	v.node.S = 0
	v.entryS = 0
	v.progress = 0
	v.target = TargetEnd
	v.targetS = 0
}

// initialize 绑定路径并开始行驶
func (v *Vehicle) initialize(p entity.IPath) {
	v.Reset()
	v.path = p
	v.status = StatusActive
	v.v = v.initialV
	v.entryS = 0
	v.node.S = v.entryS
	p.Enter(&v.node)
}

// chooseTarget 按优先级选择停车目标
// 算法说明：
// 1. 探测距离内有前车：目标为前车车尾再后退一个本车车长，与信号相位无关
// 2. 信号为停止且尚未越过停车线：目标为停车线
// 3. 否则：目标为路径终点
func (v *Vehicle) chooseTarget() (Target, float64) {
	if leader := v.path.Leader(&v.node, v.lookahead); leader != nil {
		return TargetLeader, leader.Rear() - v.length
	}
	if v.path.Signal().Phase() == entity.PhaseStop && v.node.S <= v.path.StopS() {
		return TargetStopLine, v.path.StopS()
	}
	return TargetEnd, v.path.Length()
}

// update 车辆单步更新
// 参数：dt-时间步长
// 返回：是否到达终点
// 算法说明：
// 1. 选择目标
// 2. 临界制动距离d=v²/(2·decel)：剩余距离不超过d则减速，否则加速，速度截断到[0, maxV]
// 3. 插值比例=(已行驶距离+v·dt)/(入口到目标的距离)，比例截断到1后得到新位置，车辆不后退
// 4. 距终点小于arriveEpsilon视为到达
func (v *Vehicle) update(dt float64) (arrived bool) {
	v.target, v.targetS = v.chooseTarget()
	s := v.node.S

	remaining := v.targetS - s
	critical := v.v * v.v / (2 * v.decel)
	if remaining <= critical {
		v.v -= v.decel * dt
	} else {
		v.v += v.accel * dt
	}
	v.v = lo.Clamp(v.v, 0, v.maxV)

	if span := v.targetS - v.entryS; span > 0 {
		v.progress = (s - v.entryS + v.v*dt) / span
		v.node.S = math.Max(s, v.entryS+math.Min(v.progress, 1)*span)
	} else {
		v.progress = 1
	}
	return v.path.Length()-v.node.S <= arriveEpsilon
}
