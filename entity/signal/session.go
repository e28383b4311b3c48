package signal

import (
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
)

// assignment 会话对单个信号灯的相位指定
type assignment struct {
	signal  *Signal
	phase   entity.SignalPhase
	flicker bool
}

// Session 信号周期中的一个会话
// 功能：开启时把一组信号灯设为指定相位并启用障碍物，持续duration秒后关闭
// 说明：会话是不可变配置，运行时只有开/关两种状态，开与关严格成对出现
type Session struct {
	name        string
	duration    float64
	assignments []assignment
	obstacles   []string

	on bool
}

func (s *Session) Name() string {
	return s.name
}

func (s *Session) Duration() float64 {
	return s.duration
}

// On 会话是否处于开启状态
func (s *Session) On() bool {
	return s.on
}

// turnOn 开启会话
// 算法说明：
// 1. 依次把每个信号灯切换到指定相位
// 2. 对标记为闪烁的灯组启动闪烁任务
// 3. 启用会话关联的障碍物
func (s *Session) turnOn(scene entity.IScene) {
	if s.on {
		log.Panicf("session %s turned on twice", s.name)
	}
	s.on = true
	for _, a := range s.assignments {
		a.signal.setPhase(a.phase)
		if a.flicker {
			a.signal.startFlicker(a.phase)
		}
	}
	for _, name := range s.obstacles {
		scene.SetObstacle(name, true)
	}
}

// turnOff 关闭会话
// 说明：取消本会话启动的闪烁并停用障碍物，信号灯保持当前相位直到下一会话改写
func (s *Session) turnOff(scene entity.IScene) {
	if !s.on {
		log.Panicf("session %s turned off while not on", s.name)
	}
	s.on = false
	for _, a := range s.assignments {
		if a.flicker {
			a.signal.stopFlicker(a.phase)
		}
	}
	for _, name := range s.obstacles {
		scene.SetObstacle(name, false)
	}
}
