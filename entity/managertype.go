package entity

import (
	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

// Manager依赖倒置

// entity/scene/scene.go的依赖倒置
// 场景是外部渲染引擎在本仿真中的替身：位姿、注视目标与障碍物开关
type IScene interface {
	SetPose(id AgentID, pose Pose)                // 写入实体位姿
	Pose(id AgentID) (Pose, bool)                 // 读取实体位姿
	SetLookAt(id AgentID, target *geometry.Point) // 设置注视目标，nil表示清除
	LookAt(id AgentID) *geometry.Point            // 读取注视目标
	SetObstacle(name string, enabled bool)        // 开关场景障碍物
	Obstacle(name string) bool                    // 障碍物是否启用
	Holding() Pose                                // 回收实体的场外停放位姿
}

// entity/signal/manager.go的依赖倒置
type ISignalManager interface {
	Init(signals []config.Signal, sessions []config.Session) error // 初始化
	Register(sidecar *syncer.Sidecar)                              // 注册到Sidecar

	// 输入信号灯ID，查找信号灯，如果不存在则panic
	Get(id int32) ISignal
	// 输入信号灯ID，查找信号灯，如果不存在则返回error
	GetOrError(id int32) (ISignal, error)

	// 从指定会话开始循环
	CycleFrom(index int) error
	// 查询与给定方向最正对的行人信号灯，不存在时返回nil
	GetFacingSignal(forward geometry.Point) (ISignal, float64)

	Prepare()          // 准备阶段：处理RPC缓冲
	Update(dt float64) // 更新阶段：推进会话与闪烁计时
}

// entity/path/manager.go的依赖倒置
type IPathManager interface {
	Init(paths []config.Path, signalManager ISignalManager) error // 初始化

	// 输入路径ID，查找路径，如果不存在则panic
	Get(id int32) IPath
	// 输入路径ID，查找路径，如果不存在则返回error
	GetOrError(id int32) (IPath, error)
	// 全部路径（按配置顺序）
	Paths() []IPath

	// 将外部重叠事件转发给对应路径
	Overlap(ev OverlapEvent) error
}

// entity/vehicle/manager.go的依赖倒置
type IVehicleManager interface {
	Init(c config.Vehicles, pathManager IPathManager) // 初始化

	// 输入车辆ID，查找车辆，如果不存在则panic
	Get(id int32) IVehicle

	Population() (inactive, waiting, active int) // 三个池中的车辆数
	CompletedTrips() int                         // 已完成行程数
	SetTier(t Tier)                              // 设置拥堵等级，不驱逐在途车辆
	Tier() Tier                                  // 当前拥堵等级
	Reset()                                      // 回收全部在途与排队车辆

	Prepare()          // 准备阶段：活跃集合更新
	Update(dt float64) // 更新阶段：派发与跟驰
}

// entity/pedestrian/manager.go的依赖倒置
type IPedestrianManager interface {
	Init(
		c config.Pedestrians,
		crosswalks []config.Crosswalk,
		signalManager ISignalManager,
		pathManager IPathManager,
	) // 初始化

	Population() (inactive, waiting, active int) // 三个池中的行人数
	CompletedTrips() int                         // 已完成行程数
	SetTier(t Tier)                              // 设置拥堵等级，不驱逐在途行人
	Tier() Tier                                  // 当前拥堵等级
	Reset()                                      // 回收全部在途行人

	Prepare()          // 准备阶段：活跃集合更新
	Update(dt float64) // 更新阶段：生成与过街决策
}
