// 逐帧推进的显式计时器，用于替代“等待N秒后继续”的协程写法
package timer

// epsilon 计时器到期判定的浮点容差
const epsilon = 1e-9

// Timer 单次计时器
// 功能：保存剩余时间与到期动作，每帧由持有者调用Tick推进
// 说明：零值为未启动状态；到期后自动失效，不会重复触发
type Timer struct {
	remaining float64
	action    func()
	armed     bool
}

// Start 启动计时器
// 功能：取消正在进行的计时并重新开始
// 参数：after-等待时长（秒），action-到期动作（可为nil）
func (t *Timer) Start(after float64, action func()) {
	t.remaining = after
	t.action = action
	t.armed = true
}

// Cancel 取消计时器，到期动作不再执行
func (t *Timer) Cancel() {
	t.remaining = 0
	t.action = nil
	t.armed = false
}

// Tick 推进计时器
// 参数：dt-时间步长
// 返回：本次调用是否到期（到期动作在返回前执行）
func (t *Timer) Tick(dt float64) bool {
	if !t.armed {
		return false
	}
	t.remaining -= dt
	if t.remaining > epsilon {
		return false
	}
	t.armed = false
	action := t.action
	t.action = nil
	if action != nil {
		action()
	}
	return true
}

// Running 是否正在计时
func (t *Timer) Running() bool {
	return t.armed
}

// Remaining 剩余时长，未启动时为0
func (t *Timer) Remaining() float64 {
	if !t.armed {
		return 0
	}
	return t.remaining
}

// Overshoot 到期时超出的时长（非负），用于周期任务的无漂移续期
func (t *Timer) Overshoot() float64 {
	if t.armed || t.remaining >= 0 {
		return 0
	}
	return -t.remaining
}
