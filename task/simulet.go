package task

import (
	"flag"
)

const (
	SelfName = "intersection" // 本程序在模拟任务集群中的名字
)

var (
	heartBeatInterval = flag.Int("log.heartbeat_interval", 100, "心跳日志间隔步数")
)

// prepare 准备阶段，每步执行一次
// 算法说明：
// 1. 更新时钟，定期输出心跳日志
// 2. 执行控制接口写入的拥堵与重叠事件指令
// 3. 信号灯处理循环请求
// 4. 车辆、行人提交上一步活跃集合的变更
func (ctx *Context) prepare() {
	ctx.clock.Advance()

	if ctx.clock.InternalStep%int32(*heartBeatInterval) == 0 {
		hour, minute, second := ctx.clock.GetHourMinuteSecond()
		_, _, vehicles := ctx.vehicleManager.Population()
		_, _, pedestrians := ctx.pedestrianManager.Population()
		log.Infof(
			"STEP: %d(%d:%d:%.2f) vehicle: %d pedestrian: %d",
			ctx.clock.InternalStep,
			hour, minute, second,
			vehicles, pedestrians,
		)
	}

	ctx.applyBuffer()
	ctx.signalManager.Prepare()
	ctx.vehicleManager.Prepare()
	ctx.pedestrianManager.Prepare()
}

// update 更新阶段，每步执行一次
// 说明：信号灯先于车辆与行人更新，本步的相位对本步的决策可见；车辆先派发后跟驰
func (ctx *Context) update() {
	dt := ctx.clock.DT
	ctx.signalManager.Update(dt)
	ctx.vehicleManager.Update(dt)
	ctx.pedestrianManager.Update(dt)
}

// Step 执行一步：准备阶段与更新阶段
// 说明：不经过sidecar同步，供单步驱动使用
func (ctx *Context) Step() {
	ctx.prepare()
	ctx.update()
}

// Run 运行
func (ctx *Context) Run() {
	// 初始化
	if err := ctx.Init(); err != nil {
		log.Panicf("init failed: %v", err)
	}
	// init syncer
	ctx.sidecar.Step(false)
	for {
		ctx.prepare()
		// 通知准备阶段完成
		log.Debugf("step %d: prepare complete and call NotifyStepReady", ctx.clock.InternalStep)
		ctx.sidecar.NotifyStepReady()
		ctx.update()
		log.Debugf("step %d: update complete", ctx.clock.InternalStep)
		close := ctx.sidecar.Step(ctx.clock.Done())
		if close || ctx.closed.Load() {
			break
		}
	}
	log.Infof("engine complete, vehicle trips: %d, pedestrian trips: %d",
		ctx.vehicleManager.CompletedTrips(), ctx.pedestrianManager.CompletedTrips())
	ctx.Close()
}
