package pedestrian

import (
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

// guard 人行横道跨越的车辆路径及交点位置
type guard struct {
	path entity.IPath
	s    float64
}

// Crosswalk 人行横道
// 功能：轴对齐包围盒区域，行人处于区域内时需要根据信号灯决定是否通行
type Crosswalk struct {
	id         int32
	min, max   geometry.Point
	width      float64           // 过街长度
	lookPoints [2]geometry.Point // 左右张望参考点
	guards     []guard
}

func newCrosswalk(c config.Crosswalk, pathManager entity.IPathManager) (*Crosswalk, error) {
	if len(c.LookPoints) != 2 {
		return nil, fmt.Errorf("crosswalk %d needs exactly 2 look points", c.ID)
	}
	cw := &Crosswalk{
		id:    c.ID,
		min:   geometry.Point{X: min(c.Min.X, c.Max.X), Y: min(c.Min.Y, c.Max.Y)},
		max:   geometry.Point{X: max(c.Min.X, c.Max.X), Y: max(c.Min.Y, c.Max.Y)},
		width: c.Width,
		lookPoints: [2]geometry.Point{
			{X: c.LookPoints[0].X, Y: c.LookPoints[0].Y},
			{X: c.LookPoints[1].X, Y: c.LookPoints[1].Y},
		},
		guards: make([]guard, 0, len(c.Guards)),
	}
	for _, g := range c.Guards {
		p, err := pathManager.GetOrError(g.Path)
		if err != nil {
			return nil, fmt.Errorf("crosswalk %d: %w", c.ID, err)
		}
		cw.guards = append(cw.guards, guard{path: p, s: g.S})
	}
	return cw, nil
}

func (c *Crosswalk) ID() int32 {
	return c.id
}

// Contains 点是否在人行横道区域内（含边界）
func (c *Crosswalk) Contains(p geometry.Point) bool {
	return p.X >= c.min.X && p.X <= c.max.X && p.Y >= c.min.Y && p.Y <= c.max.Y
}

// gapSafe 车流间隙是否足够安全
// 功能：对人行横道跨越的每条路径，最早到达交点的车辆所需时间必须大于行人过街时间加额外等待时间
// 参数：speed-行人速度，commitDelay-行人的额外等待时间
func (c *Crosswalk) gapSafe(speed, commitDelay float64) bool {
	if speed <= 0 {
		return false
	}
	need := c.width/speed + commitDelay
	for _, g := range c.guards {
		if g.path.TimeToReach(g.s) <= need {
			return false
		}
	}
	return true
}
