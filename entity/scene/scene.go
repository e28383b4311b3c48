// 外部渲染引擎的边界替身：保存实体位姿、注视目标与场景障碍物状态
package scene

import (
	"slices"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
)

var log = logrus.WithField("module", "scene")

// Scene 场景状态表
// 功能：核心模块通过它写出位姿与注视目标、开关障碍物，外部渲染/动画层从中读取
// 说明：仅在仿真主循环中读写，不加锁
type Scene struct {
	holding   entity.Pose
	poses     map[entity.AgentID]entity.Pose
	lookAt    map[entity.AgentID]geometry.Point
	obstacles map[string]bool
}

// New 创建场景
// 参数：holding-回收实体的场外停放位置
func New(holding geometry.Point) *Scene {
	return &Scene{
		holding:   entity.Pose{Position: holding, Direction: geometry.Point{X: 1}},
		poses:     make(map[entity.AgentID]entity.Pose),
		lookAt:    make(map[entity.AgentID]geometry.Point),
		obstacles: make(map[string]bool),
	}
}

func (s *Scene) SetPose(id entity.AgentID, pose entity.Pose) {
	s.poses[id] = pose
}

func (s *Scene) Pose(id entity.AgentID) (entity.Pose, bool) {
	p, ok := s.poses[id]
	return p, ok
}

// SetLookAt 设置注视目标
// 说明：target为nil时清除注视目标，写入的是副本
func (s *Scene) SetLookAt(id entity.AgentID, target *geometry.Point) {
	if target == nil {
		delete(s.lookAt, id)
		return
	}
	s.lookAt[id] = *target
}

func (s *Scene) LookAt(id entity.AgentID) *geometry.Point {
	if p, ok := s.lookAt[id]; ok {
		return &p
	}
	return nil
}

func (s *Scene) SetObstacle(name string, enabled bool) {
	if s.obstacles[name] != enabled {
		log.Debugf("obstacle %s: %v", name, enabled)
	}
	s.obstacles[name] = enabled
}

// Obstacle 障碍物是否启用，未知障碍物视为未启用
func (s *Scene) Obstacle(name string) bool {
	return s.obstacles[name]
}

func (s *Scene) Holding() entity.Pose {
	return s.holding
}

// Obstacles 当前启用的障碍物名（按名称排序）
func (s *Scene) Obstacles() []string {
	names := lo.Filter(lo.Keys(s.obstacles), func(name string, _ int) bool {
		return s.obstacles[name]
	})
	slices.Sort(names)
	return names
}
