package path

import (
	"fmt"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

const (
	defaultSensorLength = 10.0 // 默认入口传感器长度（米）
	stoppedSpeed        = 1e-3 // 低于该速度视为静止
)

// Path 车辆路径
// 功能：保存路径曲线、停车线、绑定信号灯、入口传感器与排队队列，并维护路径上车辆的有序链表
// 说明：链表按车头位置S升序排列，路径上不超车
type Path struct {
	id     int32
	curve  *Curve
	stopS  float64
	signal entity.ISignal

	sensorLength float64            // 入口传感器覆盖[0, sensorLength]
	occupants    map[int32]struct{} // 外部重叠事件报告的传感器占用者

	vehicles *entity.VehicleList
	queue    []int32 // 等待驶入的车辆ID（FIFO）
}

func newPath(c config.Path) (*Path, error) {
	curve, err := NewCurve(pointsOf(c.Points))
	if err != nil {
		return nil, fmt.Errorf("path %d: %w", c.ID, err)
	}
	if c.StopS < 0 || c.StopS > curve.Length() {
		return nil, fmt.Errorf("path %d: stop_s %v out of [0, %v]", c.ID, c.StopS, curve.Length())
	}
	sensor := c.SensorLength
	if sensor <= 0 {
		sensor = defaultSensorLength
	}
	return &Path{
		id:           c.ID,
		curve:        curve,
		stopS:        c.StopS,
		sensorLength: sensor,
		occupants:    make(map[int32]struct{}),
		vehicles:     &entity.VehicleList{ID: fmt.Sprintf("path %d vehicles", c.ID)},
		queue:        make([]int32, 0),
	}, nil
}

func pointsOf(xys []config.XY) []geometry.Point {
	points := make([]geometry.Point, len(xys))
	for i, xy := range xys {
		points[i] = geometry.Point{X: xy.X, Y: xy.Y}
	}
	return points
}

func (p *Path) String() string {
	return fmt.Sprintf("Path{ID:%d, Vehicles:%d, Queue:%d}", p.id, p.vehicles.Len(), len(p.queue))
}

func (p *Path) ID() int32 {
	return p.id
}

func (p *Path) Length() float64 {
	return p.curve.Length()
}

func (p *Path) StopS() float64 {
	return p.stopS
}

func (p *Path) PoseAt(s float64) entity.Pose {
	return p.curve.PoseAt(s)
}

func (p *Path) Project(pos geometry.Point) float64 {
	return p.curve.Project(pos)
}

func (p *Path) Signal() entity.ISignal {
	return p.signal
}

// Vehicles 路径上的车辆（按S升序）
func (p *Path) Vehicles() []entity.IVehicle {
	return p.vehicles.Values()
}

// Enter 车辆驶入路径，按node.S插入有序链表
func (p *Path) Enter(node *entity.VehicleNode) {
	p.vehicles.Insert(node)
}

// Leave 车辆驶离路径
func (p *Path) Leave(node *entity.VehicleNode) {
	p.vehicles.Remove(node)
}

// Leader 前车查询
// 功能：返回紧邻的前方车辆，当其车尾与本车车头的距离超过lookahead时视为没有前车
func (p *Path) Leader(node *entity.VehicleNode, lookahead float64) *entity.VehicleNode {
	if node.Parent() != p.vehicles {
		log.Panicf("path %d: leader query for node %v not on this path", p.id, node)
	}
	next := node.Next()
	if next == nil || next.Rear()-node.S > lookahead {
		return nil
	}
	return next
}

// TimeToReach 路径上尚未驶过s处的车辆中，最早到达s处所需的时间
// 返回：有车辆正压在s处时为0；没有车辆会到达（或都已静止）时为INF
func (p *Path) TimeToReach(s float64) float64 {
	best := mathutil.INF
	for node := p.vehicles.First(); node != nil; node = node.Next() {
		if node.Rear() >= s {
			break
		}
		if node.S >= s {
			return 0
		}
		if v := node.V(); v > stoppedSpeed {
			best = math.Min(best, (s-node.S)/v)
		}
	}
	return best
}

// SensorClear 入口传感器是否空闲
// 说明：最后驶入的车辆车尾仍在传感器范围内，或存在外部占用者时视为占用
func (p *Path) SensorClear() bool {
	if len(p.occupants) > 0 {
		return false
	}
	if head := p.vehicles.First(); head != nil && head.Rear() < p.sensorLength {
		return false
	}
	return true
}

// Overlap 接收外部重叠事件
// 说明：本仿真中的车辆已由链表检测，其事件被忽略；enter/stay记录占用者，exit移除
func (p *Path) Overlap(ev entity.OverlapEvent) {
	if ev.IsVehicle {
		return
	}
	switch ev.Kind {
	case entity.OverlapEnter, entity.OverlapStay:
		p.occupants[ev.Other] = struct{}{}
	case entity.OverlapExit:
		delete(p.occupants, ev.Other)
	}
}

func (p *Path) Enqueue(vehicleID int32) {
	p.queue = append(p.queue, vehicleID)
}

func (p *Path) Dequeue() (int32, bool) {
	if len(p.queue) == 0 {
		return 0, false
	}
	id := p.queue[0]
	p.queue = p.queue[1:]
	return id, true
}

func (p *Path) QueueLen() int {
	return len(p.queue)
}

func (p *Path) Flush() []int32 {
	ids := p.queue
	p.queue = make([]int32, 0)
	return ids
}
