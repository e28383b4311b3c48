package entity

import (
	"fmt"
	"strings"

	"git.fiblab.net/general/common/v2/geometry"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/container"
)

// SignalPhase 信号相位
type SignalPhase int

const (
	PhaseGo      SignalPhase = iota // 通行
	PhaseWarning                    // 警示（黄灯）
	PhaseStop                       // 停止
)

// 相位数量，用于按相位索引灯组
const PhaseCount = 3

func (p SignalPhase) String() string {
	switch p {
	case PhaseGo:
		return "go"
	case PhaseWarning:
		return "warning"
	case PhaseStop:
		return "stop"
	default:
		return fmt.Sprintf("SignalPhase(%d)", int(p))
	}
}

// LightState 相位对应的protobuf灯色，用于RPC输出
func (p SignalPhase) LightState() mapv2.LightState {
	switch p {
	case PhaseGo:
		return mapv2.LightState_LIGHT_STATE_GREEN
	case PhaseWarning:
		return mapv2.LightState_LIGHT_STATE_YELLOW
	default:
		return mapv2.LightState_LIGHT_STATE_RED
	}
}

// ParsePhase 解析配置中的相位名（go|warning|stop，忽略大小写）
func ParsePhase(s string) (SignalPhase, error) {
	switch strings.ToLower(s) {
	case "go", "green":
		return PhaseGo, nil
	case "warning", "yellow":
		return PhaseWarning, nil
	case "stop", "red":
		return PhaseStop, nil
	default:
		return PhaseStop, fmt.Errorf("unknown signal phase %q", s)
	}
}

// Behavior 行人过街行为类型
type Behavior int

const (
	BehaviorRisky    Behavior = iota // 冒险：红灯时满足条件也会过街
	BehaviorCautious                 // 谨慎：红灯时始终等待
)

func (b Behavior) String() string {
	if b == BehaviorRisky {
		return "risky"
	}
	return "cautious"
}

// Confidence 行人自信程度
type Confidence int

const (
	Confident    Confidence = iota // 自信
	NotConfident                   // 不自信：等待时左右张望
)

// Tier 拥堵等级，车辆与行人各自独立设置
type Tier int

const (
	TierOff Tier = iota
	TierLow
	TierMedium
	TierHigh
	TierMax
)

var tierNames = []string{"off", "low", "medium", "high", "max"}

func (t Tier) String() string {
	if t < TierOff || t > TierMax {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierNames[t]
}

// ParseTier 解析拥堵等级名（off|low|medium|high|max，忽略大小写）
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if strings.EqualFold(s, name) {
			return Tier(i), nil
		}
	}
	return TierOff, fmt.Errorf("unknown congestion tier %q", s)
}

// AgentKind 智能体类别
type AgentKind int

const (
	KindVehicle AgentKind = iota
	KindPedestrian
)

// AgentID 智能体在场景中的唯一标识（车辆与行人各自编号）
type AgentID struct {
	Kind AgentKind
	ID   int32
}

func (a AgentID) String() string {
	if a.Kind == KindVehicle {
		return fmt.Sprintf("vehicle-%d", a.ID)
	}
	return fmt.Sprintf("pedestrian-%d", a.ID)
}

// Pose 地面平面上的位姿
type Pose struct {
	Position  geometry.Point // 位置
	Direction geometry.Point // 单位前进方向
	Speed     float64        // 速度（供动画速率读取）
}

// OverlapKind 碰撞/重叠事件类型
type OverlapKind int

const (
	OverlapEnter OverlapKind = iota
	OverlapStay
	OverlapExit
)

// ParseOverlapKind 解析重叠事件类型名（enter|stay|exit）
func ParseOverlapKind(s string) (OverlapKind, error) {
	switch strings.ToLower(s) {
	case "enter":
		return OverlapEnter, nil
	case "stay":
		return OverlapStay, nil
	case "exit":
		return OverlapExit, nil
	default:
		return OverlapEnter, fmt.Errorf("unknown overlap kind %q", s)
	}
}

// OverlapEvent 外部引擎上报的路径入口传感器重叠事件
type OverlapEvent struct {
	Path      int32       // 传感器所在路径
	Kind      OverlapKind // 事件类型
	Other     int32       // 对方实体ID
	IsVehicle bool        // 对方是否为本仿真中的车辆
}

// entity/vehicle/vehicle.go的依赖倒置
type IVehicle interface {
	ID() int32       // 车辆ID
	V() float64      // 速度
	Length() float64 // 车长
}

// 路径上的车辆链表，S为车头位置
type VehicleNode = container.ListNode[IVehicle, struct{}]
type VehicleList = container.List[IVehicle, struct{}]

// entity/signal/signal.go的依赖倒置
type ISignal interface {
	ID() int32                // 信号灯ID
	Name() string             // 名称
	Phase() SignalPhase       // 当前相位
	Position() geometry.Point // 位置
	Forward() geometry.Point  // 单位朝向
	PedestrianFacing() bool   // 是否面向行人
}

// entity/path/path.go的依赖倒置
type IPath interface {
	ID() int32
	Length() float64                  // 路径总长
	StopS() float64                   // 停车线位置
	PoseAt(s float64) Pose            // 弧长位置对应的位姿
	Project(p geometry.Point) float64 // 点到路径的最近弧长位置
	Signal() ISignal                  // 绑定的信号灯，可能为nil

	// 车辆链表

	Enter(node *VehicleNode)                                  // 车辆驶入
	Leave(node *VehicleNode)                                  // 车辆驶离
	Leader(node *VehicleNode, lookahead float64) *VehicleNode // 前方探测距离内的前车
	TimeToReach(s float64) float64                            // 路径上车辆最早到达s处的时间

	// 入口传感器与排队

	SensorClear() bool       // 入口传感器是否空闲
	Overlap(ev OverlapEvent) // 接收外部重叠事件
	Enqueue(vehicleID int32) // 车辆进入排队
	Dequeue() (int32, bool)  // 队首车辆出队
	QueueLen() int           // 排队长度
	Flush() []int32          // 清空排队并返回原有内容
}
