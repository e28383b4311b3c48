package task

import (
	"fmt"
	"sync"
	"sync/atomic"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/google/uuid"
	"github.com/tsinghua-fib-lab/intersection-sim/clock"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/path"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/pedestrian"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/pool"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/scene"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/signal"
	"github.com/tsinghua-fib-lab/intersection-sim/entity/vehicle"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/input"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/randengine"
)

// 配置中未指定拥堵等级时使用的默认值
const defaultTier = entity.TierMedium

// Context 仿真任务上下文
// 功能：包含一次仿真任务的所有变量和状态
// 说明：管理时钟、场景以及信号灯、路径、车辆、行人四个管理器
type Context struct {

	// 任务名
	job string
	// 本次运行的唯一标识
	runID uuid.UUID
	// 关闭指令
	closed atomic.Bool

	// 时钟
	clock *clock.Clock

	// 辅助程序，处理与syncer、其他服务的交互
	sidecar *syncer.Sidecar
	// sidecar close channel
	sidecarCloseCh chan struct{}
	// 是否已启动sidecar服务
	serving bool

	// 运行时配置文件（scene已替换为实际加载的场景）
	runtimeConfig *config.RuntimeConfig
	// 随机数引擎，所有管理器共用
	rng *randengine.Engine

	// 场景
	scene *scene.Scene
	// 信号灯管理器
	signalManager entity.ISignalManager
	// 路径管理器
	pathManager entity.IPathManager
	// 车辆管理器
	vehicleManager entity.IVehicleManager
	// 行人管理器
	pedestrianManager entity.IPedestrianManager

	// 控制接口写入的指令，在下一步prepare时执行
	congestionBuffer []congestionCommand
	overlapBuffer    []entity.OverlapEvent
	bufferMutex      sync.Mutex
}

// NewContext 创建新的仿真任务上下文
// 参数：
//   - job: 任务名称
//   - c: 配置对象
//   - sidecar: sidecar实例，为nil时不注册RPC服务（单步驱动模式）
//   - startSidecarServe: 是否启动sidecar服务
//
// 算法说明：
// 1. 加载场景（配置文件或MongoDB）
// 2. 解析拥堵等级表与初始等级
// 3. 创建场景与各管理器，注册RPC服务
// 4. 启动sidecar服务（如果需要）
func NewContext(
	job string,
	c config.Config,
	sidecar *syncer.Sidecar,
	startSidecarServe bool,
) *Context {
	s, err := input.Init(c)
	if err != nil {
		log.Panicf("failed to load scene: %v", err)
	}
	c.Scene = s
	tiers, err := pool.LoadTiers(s.Congestion.Tiers)
	if err != nil {
		log.Panicf("bad congestion tiers: %v", err)
	}
	vehicleTier, err := parseTier(s.Congestion.Vehicle)
	if err != nil {
		log.Panicf("bad vehicle congestion tier: %v", err)
	}
	pedestrianTier, err := parseTier(s.Congestion.Pedestrian)
	if err != nil {
		log.Panicf("bad pedestrian congestion tier: %v", err)
	}

	ctx := &Context{
		job:            job,
		runID:          uuid.New(),
		sidecar:        sidecar,
		sidecarCloseCh: make(chan struct{}),
		runtimeConfig:  config.NewRuntimeConfig(c),
		rng:            randengine.New(c.Control.Seed),
	}
	ctx.clock = clock.New(c.Control.Step)
	ctx.scene = scene.New(geometry.Point{X: s.Holding.X, Y: s.Holding.Y})

	// 新建各类模拟对象
	ctx.signalManager = signal.NewManager(ctx.scene)
	ctx.pathManager = path.NewManager()
	ctx.vehicleManager = vehicle.NewManager(ctx.scene, ctx.rng, tiers, vehicleTier)
	ctx.pedestrianManager = pedestrian.NewManager(ctx.scene, ctx.rng, tiers, pedestrianTier)
	log.Infof("job %s run %s", job, ctx.runID)

	if ctx.sidecar != nil {
		ctx.clock.Register(ctx.sidecar)
		ctx.signalManager.Register(ctx.sidecar)
		ctx.Register(ctx.sidecar)
	}

	// sidecar协程，用于提供RPC服务
	if startSidecarServe && ctx.sidecar != nil {
		ctx.serving = true
		go func() {
			err := ctx.sidecar.Serve()
			if err != nil {
				log.Panicf("failed to serve: %v", err)
			}
			ctx.sidecarCloseCh <- struct{}{}
		}()
	}

	return ctx
}

// parseTier 解析拥堵等级名，空字符串使用默认等级
func parseTier(name string) (entity.Tier, error) {
	if name == "" {
		return defaultTier, nil
	}
	return entity.ParseTier(name)
}

func (ctx *Context) RunID() uuid.UUID {
	return ctx.runID
}

func (ctx *Context) Clock() *clock.Clock {
	return ctx.clock
}

func (ctx *Context) Scene() *scene.Scene {
	return ctx.scene
}

func (ctx *Context) SignalManager() entity.ISignalManager {
	return ctx.signalManager
}

func (ctx *Context) PathManager() entity.IPathManager {
	return ctx.pathManager
}

func (ctx *Context) VehicleManager() entity.IVehicleManager {
	return ctx.vehicleManager
}

func (ctx *Context) PedestrianManager() entity.IPedestrianManager {
	return ctx.pedestrianManager
}

func (ctx *Context) RuntimeConfig() *config.RuntimeConfig {
	return ctx.runtimeConfig
}

// Init 初始化全部管理器并从第一个会话开始信号循环
// 说明：顺序为信号灯、路径（绑定信号灯）、车辆（引用路径）、行人（引用信号灯与路径）
func (ctx *Context) Init() error {
	ctx.clock.Init()
	s := ctx.runtimeConfig.All.Scene

	log.Infof("Signal: %v", len(s.Signals))
	log.Infof("Session: %v", len(s.Sessions))
	log.Infof("Path: %v", len(s.Paths))
	log.Infof("Crosswalk: %v", len(s.Crosswalks))

	if err := ctx.signalManager.Init(s.Signals, s.Sessions); err != nil {
		return fmt.Errorf("init signals: %w", err)
	}
	if err := ctx.pathManager.Init(s.Paths, ctx.signalManager); err != nil {
		return fmt.Errorf("init paths: %w", err)
	}
	ctx.vehicleManager.Init(s.Vehicles, ctx.pathManager)
	ctx.pedestrianManager.Init(s.Pedestrians, s.Crosswalks, ctx.signalManager, ctx.pathManager)
	if len(s.Sessions) > 0 {
		if err := ctx.signalManager.CycleFrom(0); err != nil {
			return fmt.Errorf("start signal cycle: %w", err)
		}
	}
	return nil
}

func (ctx *Context) Close() {
	if ctx.closed.Load() {
		return
	}
	ctx.closed.Store(true)
	if !ctx.serving {
		return
	}
	ctx.sidecar.Close()
	// wait for graceful stop
	<-ctx.sidecarCloseCh
}
