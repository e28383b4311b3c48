package signal

import (
	"errors"
	"fmt"
	"sync"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/timer"
)

var (
	ErrBadSessionIndex = errors.New("session index out of range")
)

// Manager 信号相位控制器
// 功能：管理所有信号灯与会话，按轮转顺序无限循环会话，并负责灯组闪烁
// 说明：同一时刻至多一个会话处于开启状态
type Manager struct {
	scene entity.IScene

	data    map[int32]*Signal
	signals []*Signal

	sessions []*Session
	cursor   int         // 当前（或最近一次）开启的会话下标
	timer    timer.Timer // 当前会话的到期计时
	switches int         // 会话切换次数

	cycleBuffer      *int // 交互式接口写入的CycleFrom请求
	cycleBufferMutex sync.Mutex
}

// NewManager 创建信号相位控制器
// 参数：scene-场景（用于开关会话障碍物）
func NewManager(scene entity.IScene) *Manager {
	return &Manager{
		scene:    scene,
		data:     make(map[int32]*Signal),
		signals:  make([]*Signal, 0),
		sessions: make([]*Session, 0),
	}
}

// Init 初始化信号灯与会话
// 功能：根据配置创建信号灯，解析会话中的相位指定
// 参数：signals-信号灯配置，sessions-会话配置（按循环顺序）
// 返回：相位名无法解析或引用了不存在的信号灯时返回error
func (m *Manager) Init(signals []config.Signal, sessions []config.Session) error {
	m.signals = make([]*Signal, 0, len(signals))
	for _, c := range signals {
		s, err := newSignal(c)
		if err != nil {
			return err
		}
		m.signals = append(m.signals, s)
	}
	m.data = lo.SliceToMap(m.signals, func(s *Signal) (int32, *Signal) {
		return s.id, s
	})
	m.sessions = make([]*Session, 0, len(sessions))
	for _, c := range sessions {
		session := &Session{
			name:        c.Name,
			duration:    c.Duration,
			assignments: make([]assignment, 0, len(c.Phases)),
			obstacles:   c.Obstacles,
		}
		for _, p := range c.Phases {
			s, ok := m.data[p.Signal]
			if !ok {
				return fmt.Errorf("session %s: no id %d in signal data", c.Name, p.Signal)
			}
			phase, err := entity.ParsePhase(p.Phase)
			if err != nil {
				return fmt.Errorf("session %s: %w", c.Name, err)
			}
			session.assignments = append(session.assignments, assignment{signal: s, phase: phase, flicker: p.Flicker})
		}
		m.sessions = append(m.sessions, session)
	}
	log.Infof("Signal: %d, Session: %d", len(m.signals), len(m.sessions))
	return nil
}

// Get 根据ID获取信号灯，如果不存在则panic
func (m *Manager) Get(id int32) entity.ISignal {
	if s, ok := m.data[id]; !ok {
		log.Panicf("no id %d in signal data", id)
		return nil
	} else {
		return s
	}
}

// GetOrError 根据ID获取信号灯，如果不存在则返回错误
func (m *Manager) GetOrError(id int32) (entity.ISignal, error) {
	if s, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in signal data", id)
	} else {
		return s, nil
	}
}

// Signal 根据ID获取信号灯实体（含灯组）
func (m *Manager) Signal(id int32) (*Signal, bool) {
	s, ok := m.data[id]
	return s, ok
}

// Signals 全部信号灯（配置顺序）
func (m *Manager) Signals() []*Signal {
	return m.signals
}

// Phase 信号灯的当前相位
func (m *Manager) Phase(id int32) (entity.SignalPhase, error) {
	s, err := m.GetOrError(id)
	if err != nil {
		return entity.PhaseStop, err
	}
	return s.Phase(), nil
}

// Sessions 全部会话（循环顺序）
func (m *Manager) Sessions() []*Session {
	return m.sessions
}

// ActiveSession 当前开启的会话下标
// 返回：没有会话开启时ok为false
func (m *Manager) ActiveSession() (index int, ok bool) {
	if len(m.sessions) == 0 || !m.sessions[m.cursor].on {
		return -1, false
	}
	return m.cursor, true
}

// Remaining 当前会话的剩余时间，没有会话开启时为0
func (m *Manager) Remaining() float64 {
	return m.timer.Remaining()
}

// Switches 会话切换次数（不含CycleFrom的首次开启）
func (m *Manager) Switches() int {
	return m.switches
}

// CycleFrom 从指定会话开始循环
// 功能：取消正在进行的循环，开启startIndex对应的会话并在其时长后切换到下一个
// 参数：startIndex-起始会话下标
// 返回：下标越界时返回ErrBadSessionIndex，此时原有循环状态保持不变
// 说明：没有配置任何会话时不做任何事
func (m *Manager) CycleFrom(startIndex int) error {
	if len(m.sessions) == 0 {
		log.Warn("cycle with no session configured, ignored")
		return nil
	}
	if startIndex < 0 || startIndex >= len(m.sessions) {
		err := fmt.Errorf("%w: %d not in [0, %d)", ErrBadSessionIndex, startIndex, len(m.sessions))
		log.Warn(err)
		return err
	}
	m.Stop()
	m.cursor = startIndex
	m.sessions[m.cursor].turnOn(m.scene)
	m.timer.Start(m.sessions[m.cursor].duration, m.advance)
	log.Debugf("cycle from session %d (%s)", startIndex, m.sessions[startIndex].name)
	return nil
}

// Stop 停止循环并关闭当前会话
func (m *Manager) Stop() {
	m.timer.Cancel()
	if len(m.sessions) > 0 && m.sessions[m.cursor].on {
		m.sessions[m.cursor].turnOff(m.scene)
	}
}

// advance 当前会话到期：关闭当前会话，游标前进（末尾回到0），开启下一个会话
// 说明：续期时扣除本次到期的超出时长，长时间运行不累积误差
func (m *Manager) advance() {
	overshoot := m.timer.Overshoot()
	m.sessions[m.cursor].turnOff(m.scene)
	m.cursor = (m.cursor + 1) % len(m.sessions)
	next := m.sessions[m.cursor]
	next.turnOn(m.scene)
	m.switches++
	m.timer.Start(next.duration-overshoot, m.advance)
	log.Debugf("switch to session %d (%s)", m.cursor, next.name)
}

// Flicker 让信号灯某一相位的灯组开始闪烁
// 说明：同一灯组至多一个闪烁任务，新的任务取代旧的
func (m *Manager) Flicker(signalID int32, phase entity.SignalPhase) error {
	s, ok := m.data[signalID]
	if !ok {
		return fmt.Errorf("no id %d in signal data", signalID)
	}
	s.startFlicker(phase)
	return nil
}

// GetFacingSignal 查询最正对给定方向的行人信号灯
// 功能：在所有面向行人的信号灯中，找出自身朝向与给定方向点积最小的一个
// 参数：forward-查询方向（通常为行人前进方向）
// 返回：信号灯与其点积；不存在行人信号灯时返回nil与INF
// 说明：点积相同时保留先找到的信号灯
func (m *Manager) GetFacingSignal(forward geometry.Point) (entity.ISignal, float64) {
	var best *Signal
	bestScore := mathutil.INF
	for _, s := range m.signals {
		if !s.pedestrian {
			continue
		}
		if score := s.facingScore(forward); score < bestScore {
			best, bestScore = s, score
		}
	}
	if best == nil {
		return nil, mathutil.INF
	}
	return best, bestScore
}

// Prepare 准备阶段，处理交互式接口写入的循环请求
func (m *Manager) Prepare() {
	m.cycleBufferMutex.Lock()
	start := m.cycleBuffer
	m.cycleBuffer = nil
	m.cycleBufferMutex.Unlock()
	if start != nil {
		if err := m.CycleFrom(*start); err != nil {
			log.Warnf("buffered CycleFrom failed: %v", err)
		}
	}
}

// Update 更新阶段，推进会话计时与灯组闪烁
// 参数：dt-时间步长
// 说明：先推进闪烁再推进会话，本帧新开启的闪烁从下一帧开始计时
func (m *Manager) Update(dt float64) {
	for _, s := range m.signals {
		s.update(dt)
	}
	m.timer.Tick(dt)
}
