package clock

import (
	"fmt"

	"git.fiblab.net/sim/protos/v2/go/city/clock/v1/clockv1connect"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

// Clock 仿真时钟
// 功能：管理仿真的步数与时间，每步推进固定的DT
type Clock struct {
	clockv1connect.UnimplementedClockServiceHandler

	DT         float64 // 每步时间间隔（秒）
	START_STEP int32   // 起始步
	END_STEP   int32   // 结束步，模拟区间[START, END)

	T            float64 // 当前时间（秒）
	InternalStep int32   // 当前步数
}

// New 根据配置创建时钟
// 参数：stepConfig-控制步配置
func New(stepConfig config.ControlStep) *Clock {
	c := &Clock{
		DT:         stepConfig.Interval,
		START_STEP: stepConfig.Start,
		END_STEP:   stepConfig.Start + stepConfig.Total,
	}
	c.Init()
	return c
}

// Init 重置为起始步
func (c *Clock) Init() {
	c.InternalStep = c.START_STEP
	c.T = float64(c.InternalStep) * c.DT
}

// Advance 推进一步
// 说明：时间由步数乘DT得到，不做累加，避免浮点误差积累
func (c *Clock) Advance() {
	c.InternalStep++
	c.T = float64(c.InternalStep) * c.DT
}

// Done 是否已到达结束步
func (c *Clock) Done() bool {
	return c.InternalStep+1 >= c.END_STEP
}

// String 当前时间（HH:MM:SS）
func (c *Clock) String() string {
	hour, minute, second := c.GetHourMinuteSecond()
	return fmt.Sprintf("%02d:%02d:%02d", hour, minute, int(second))
}

// GetHourMinuteSecond 获取当前时间的小时、分钟、秒
// 返回：小时、分钟、秒（秒为浮点数，支持亚秒级精度）
func (c *Clock) GetHourMinuteSecond() (int, int, float64) {
	hour := int(c.T) / 3600
	minute := int(c.T) % 3600 / 60
	second := c.T - float64(hour*3600+minute*60)
	return hour, minute, second
}
