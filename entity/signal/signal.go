package signal

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/timer"
)

// 灯组闪烁的切换间隔（秒）
const flickerInterval = 0.5

// LampGroup 灯组（通行/警示/停止各一组）
// 功能：enabled表示灯组被相位点亮，visible表示当前是否可见（闪烁时在亮灭之间切换）
type LampGroup struct {
	enabled bool
	visible bool

	flicker timer.Timer // 闪烁任务，每个灯组至多一个
}

// Enabled 灯组是否被点亮
func (g *LampGroup) Enabled() bool {
	return g.enabled
}

// Visible 灯组当前是否可见
func (g *LampGroup) Visible() bool {
	return g.visible
}

// Flickering 灯组是否正在闪烁
func (g *LampGroup) Flickering() bool {
	return g.flicker.Running()
}

// Signal 信号灯
// 功能：保存当前相位与三个灯组，相位只由会话循环修改
type Signal struct {
	id         int32
	name       string
	position   geometry.Point
	forward    geometry.Point
	pedestrian bool

	phase  entity.SignalPhase
	groups [entity.PhaseCount]LampGroup
}

// newSignal 根据配置创建信号灯
// 说明：朝向归一化为单位向量，初始相位为停止
func newSignal(c config.Signal) (*Signal, error) {
	norm := math.Hypot(c.Forward.X, c.Forward.Y)
	if norm == 0 {
		return nil, fmt.Errorf("signal %d has zero forward direction", c.ID)
	}
	s := &Signal{
		id:         c.ID,
		name:       c.Name,
		position:   geometry.Point{X: c.Position.X, Y: c.Position.Y},
		forward:    geometry.Point{X: c.Forward.X / norm, Y: c.Forward.Y / norm},
		pedestrian: c.Pedestrian,
	}
	s.setPhase(entity.PhaseStop)
	return s, nil
}

func (s *Signal) String() string {
	return fmt.Sprintf("Signal{ID:%d, Name:%s, Phase:%v}", s.id, s.name, s.phase)
}

func (s *Signal) ID() int32 {
	return s.id
}

func (s *Signal) Name() string {
	return s.name
}

func (s *Signal) Phase() entity.SignalPhase {
	return s.phase
}

func (s *Signal) Position() geometry.Point {
	return s.position
}

func (s *Signal) Forward() geometry.Point {
	return s.forward
}

func (s *Signal) PedestrianFacing() bool {
	return s.pedestrian
}

// Group 获取相位对应的灯组
func (s *Signal) Group(phase entity.SignalPhase) *LampGroup {
	return &s.groups[phase]
}

// setPhase 切换相位：点亮对应灯组，熄灭其余灯组
// 说明：被熄灭的灯组若正在闪烁，闪烁任务一并取消
func (s *Signal) setPhase(phase entity.SignalPhase) {
	s.phase = phase
	for i := range s.groups {
		g := &s.groups[i]
		on := entity.SignalPhase(i) == phase
		if !on {
			g.flicker.Cancel()
		}
		g.enabled = on
		g.visible = on
	}
}

// startFlicker 开始闪烁灯组
// 功能：每隔flickerInterval切换一次可见性，新任务会取代该灯组已有的任务
func (s *Signal) startFlicker(phase entity.SignalPhase) {
	g := &s.groups[phase]
	var toggle func()
	toggle = func() {
		g.visible = !g.visible
		g.flicker.Start(flickerInterval-g.flicker.Overshoot(), toggle)
	}
	g.flicker.Cancel()
	g.visible = g.enabled
	g.flicker.Start(flickerInterval, toggle)
}

// stopFlicker 停止闪烁，可见性恢复为点亮状态
func (s *Signal) stopFlicker(phase entity.SignalPhase) {
	g := &s.groups[phase]
	g.flicker.Cancel()
	g.visible = g.enabled
}

// update 推进闪烁计时
func (s *Signal) update(dt float64) {
	for i := range s.groups {
		s.groups[i].flicker.Tick(dt)
	}
}

// facingScore 方向与信号灯朝向的点积，越小越正对
func (s *Signal) facingScore(forward geometry.Point) float64 {
	return s.forward.X*forward.X + s.forward.Y*forward.Y
}
