package path

import (
	"fmt"
	"math"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
)

// Curve 按弧长参数化的折线
// 功能：给定弧长返回位姿，给定点返回最近弧长
// 说明：初始化后只读
type Curve struct {
	line       []geometry.Point
	lengths    []float64                    // 折线各节点处的累计长度
	directions []geometry.PolylineDirection // 折线每一段的方向（atan2）
}

// NewCurve 根据折线节点创建曲线
// 返回：节点数不足2或总长为0时返回error
func NewCurve(points []geometry.Point) (*Curve, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("curve needs at least 2 points, got %d", len(points))
	}
	c := &Curve{
		line:       points,
		lengths:    geometry.GetPolylineLengths2D(points),
		directions: geometry.GetPolylineDirections(points),
	}
	if c.Length() <= 0 {
		return nil, fmt.Errorf("curve has zero length")
	}
	return c, nil
}

// Length 曲线总长
func (c *Curve) Length() float64 {
	return c.lengths[len(c.lengths)-1]
}

// PoseAt 弧长位置对应的位姿
// 说明：s超出[0, Length]时截断到端点
func (c *Curve) PoseAt(s float64) entity.Pose {
	s = lo.Clamp(s, 0, c.Length())
	var pos geometry.Point
	var dir geometry.PolylineDirection
	if i := sort.SearchFloat64s(c.lengths, s); i == 0 {
		pos = c.line[0]
		dir = c.directions[0]
	} else {
		sHigh, sLow := c.lengths[i], c.lengths[i-1]
		pos = geometry.Blend(c.line[i-1], c.line[i], (s-sLow)/(sHigh-sLow))
		dir = c.directions[i-1]
	}
	return entity.Pose{
		Position:  pos,
		Direction: geometry.Point{X: math.Cos(dir.Direction), Y: math.Sin(dir.Direction)},
	}
}

// Project 将点投影到曲线上，返回最近的弧长位置
func (c *Curve) Project(p geometry.Point) float64 {
	s := geometry.GetClosestPolylineSToPoint2D(c.line, c.lengths, p)
	return lo.Clamp(s, 0, c.Length())
}
