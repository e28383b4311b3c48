package pedestrian

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/container"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/randengine"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/timer"
)

const (
	arriveEpsilon = 1e-3 // 到达路点的判定距离
	clearLookAt   = 1.0  // 停止张望到清除注视目标的延迟（秒）
	scanMin       = 2.5  // 左右张望切换间隔范围（秒）
	scanMax       = 4.0
)

// Profile 行人的生成参数
type Profile struct {
	Waypoints   []geometry.Point
	Loop        bool // 走完路线后回到第一个路点继续
	Warp        bool // 循环时瞬移到第一个路点
	Behavior    entity.Behavior
	Confidence  entity.Confidence
	BaseDelay   float64 // 生成后多久才允许闯红灯（秒）
	CommitDelay float64 // 确认间隙安全后的额外等待（秒）
	Speed       float64
}

// Pedestrian 行人
// 功能：沿路点行走，进入人行横道时根据正对的信号灯、行为类型与车流间隙决定是否过街
type Pedestrian struct {
	container.IncrementalItemBase

	id    int32
	scene entity.IScene
	rng   *randengine.Engine

	profile Profile

	index    int // 当前目标路点，-1表示尚未出发
	position geometry.Point
	heading  geometry.Point
	moving   bool

	elapsed            float64 // 生成后经过的时间
	canCrossAfterDelay bool    // 已等满BaseDelay
	riskyButCrossing   bool    // 已确认间隙安全，此后不再撤销
	commitInit         bool    // 额外等待计时已启动
	commitDone         bool    // 额外等待已结束
	commit             timer.Timer

	scanning bool
	lookSide int
	lookAt   *geometry.Point
	scan     timer.Timer // 左右切换
	clear    timer.Timer // 延迟清除注视目标
}

func newPedestrian(id int32, scene entity.IScene, rng *randengine.Engine) *Pedestrian {
	return &Pedestrian{
		id:    id,
		scene: scene,
		rng:   rng,
		index: -1,
	}
}

func (p *Pedestrian) ID() int32 {
	return p.id
}

func (p *Pedestrian) Key() entity.AgentID {
	return entity.AgentID{Kind: entity.KindPedestrian, ID: p.id}
}

func (p *Pedestrian) Profile() Profile {
	return p.profile
}

func (p *Pedestrian) Position() geometry.Point {
	return p.position
}

func (p *Pedestrian) Heading() geometry.Point {
	return p.heading
}

// Waypoint 当前目标路点下标，-1表示尚未出发
func (p *Pedestrian) Waypoint() int {
	return p.index
}

func (p *Pedestrian) Moving() bool {
	return p.moving
}

func (p *Pedestrian) CanCrossAfterDelay() bool {
	return p.canCrossAfterDelay
}

func (p *Pedestrian) RiskyButCrossing() bool {
	return p.riskyButCrossing
}

func (p *Pedestrian) CommitDone() bool {
	return p.commitDone
}

func (p *Pedestrian) Scanning() bool {
	return p.scanning
}

// LookAt 当前注视目标，nil表示无
func (p *Pedestrian) LookAt() *geometry.Point {
	return p.lookAt
}

func (p *Pedestrian) Pose() entity.Pose {
	speed := 0.
	if p.moving {
		speed = p.profile.Speed
	}
	return entity.Pose{Position: p.position, Direction: p.heading, Speed: speed}
}

// Reset 清空瞬态字段并取消全部计时器
func (p *Pedestrian) Reset() {
	p.commit.Cancel()
	p.scan.Cancel()
	p.clear.Cancel()
	p.index = -1
	p.moving = false
	p.elapsed = 0
	p.canCrossAfterDelay = false
	p.riskyButCrossing = false
	p.commitInit = false
	p.commitDone = false
	p.scanning = false
	p.lookSide = 0
	p.lookAt = nil
}

// initialize 按生成参数出发，位于第一个路点
func (p *Pedestrian) initialize(profile Profile) error {
	if len(profile.Waypoints) == 0 {
		return fmt.Errorf("pedestrian %d: empty route", p.id)
	}
	p.Reset()
	p.profile = profile
	p.position = profile.Waypoints[0]
	p.heading = geometry.Point{X: 1}
	if len(profile.Waypoints) > 1 {
		if d, ok := direction(p.position, profile.Waypoints[1]); ok {
			p.heading = d
		}
	}
	p.scene.SetPose(p.Key(), p.Pose())
	return nil
}

// target 当前目标路点
// 功能：已到达的路点依次推进，走完路线时循环或结束
// 返回：目标点，路线结束时返回false
func (p *Pedestrian) target() (geometry.Point, bool) {
	wps := p.profile.Waypoints
	if p.index < 0 {
		p.index = 0
	}
	// 每次最多绕路线一圈，避免全部路点重合时死循环
	for range len(wps) + 1 {
		if distance(p.position, wps[p.index]) > arriveEpsilon {
			return wps[p.index], true
		}
		p.index++
		if p.index < len(wps) {
			continue
		}
		if !p.profile.Loop {
			return geometry.Point{}, false
		}
		p.index = 0
		if p.profile.Warp {
			p.position = wps[0]
		}
	}
	return wps[p.index], true
}

// step 朝目标点移动一帧
func (p *Pedestrian) step(target geometry.Point, dt float64) {
	d := distance(p.position, target)
	move := min(p.profile.Speed*dt, d)
	if d > 0 {
		p.position.X += (target.X - p.position.X) / d * move
		p.position.Y += (target.Y - p.position.Y) / d * move
	}
}

// startCommit 启动一次额外等待计时，结束后延迟清除注视目标
func (p *Pedestrian) startCommit() {
	p.commitInit = true
	p.stopScan(false)
	p.commit.Start(p.profile.CommitDelay, func() {
		p.commitDone = true
		if p.lookAt != nil {
			p.clear.Start(clearLookAt, p.clearLook)
		}
	})
}

// startScan 开始左右张望，从第一个参考点开始
func (p *Pedestrian) startScan(points [2]geometry.Point) {
	p.scanning = true
	p.lookSide = 0
	p.clear.Cancel()
	p.look(points[0])
	var flip func()
	flip = func() {
		p.lookSide ^= 1
		p.look(points[p.lookSide])
		p.scan.Start(p.rng.Uniform(scanMin, scanMax), flip)
	}
	p.scan.Start(p.rng.Uniform(scanMin, scanMax), flip)
}

// stopScan 停止张望
// 参数：clearLater-是否在延迟后清除注视目标，否则保持当前注视目标
func (p *Pedestrian) stopScan(clearLater bool) {
	if !p.scanning {
		return
	}
	p.scanning = false
	p.scan.Cancel()
	if clearLater {
		p.clear.Start(clearLookAt, p.clearLook)
	}
}

func (p *Pedestrian) look(at geometry.Point) {
	p.lookAt = &at
	p.scene.SetLookAt(p.Key(), p.lookAt)
}

func (p *Pedestrian) clearLook() {
	p.lookAt = nil
	p.scene.SetLookAt(p.Key(), nil)
}

// tickTimers 推进全部计时器
// 说明：额外等待结束时启动的清除计时从下一帧开始计时，因此最后推进
func (p *Pedestrian) tickTimers(dt float64) {
	p.clear.Tick(dt)
	p.scan.Tick(dt)
	p.commit.Tick(dt)
}

func (p *Pedestrian) scans() bool {
	return p.profile.Behavior == entity.BehaviorCautious || p.profile.Confidence == entity.NotConfident
}

func distance(a, b geometry.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// direction a指向b的单位向量，两点重合时返回false
func direction(a, b geometry.Point) (geometry.Point, bool) {
	d := distance(a, b)
	if d <= 0 {
		return geometry.Point{}, false
	}
	return geometry.Point{X: (b.X - a.X) / d, Y: (b.Y - a.Y) / d}, true
}
