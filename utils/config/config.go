package config

import (
	"errors"
	"fmt"
)

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息
// 说明：将YAML配置转换为运行时可用的配置对象
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置
}

// NewRuntimeConfig 根据配置初始化全局变量
// 功能：创建运行时配置对象
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{}

	rc.All = config
	rc.C = config.Control

	return rc
}

var (
	ErrNoStepInterval = errors.New("control.step.interval must be positive")
)

// Validate 检查场景配置的结构正确性
// 功能：检查时长、速度等数值范围以及信号灯、路径之间的ID引用关系
// 返回：发现的第一个错误，全部通过则返回nil
// 说明：相位与拥堵等级名称由各自模块在解析时检查
func (c *Config) Validate() error {
	if c.Control.Step.Interval <= 0 {
		return ErrNoStepInterval
	}
	s := &c.Scene
	signals := make(map[int32]struct{}, len(s.Signals))
	for _, sig := range s.Signals {
		if _, ok := signals[sig.ID]; ok {
			return fmt.Errorf("duplicated signal id %d", sig.ID)
		}
		signals[sig.ID] = struct{}{}
	}
	for i, session := range s.Sessions {
		if session.Duration <= 0 {
			return fmt.Errorf("session %d (%s) has non-positive duration %v", i, session.Name, session.Duration)
		}
		for _, p := range session.Phases {
			if _, ok := signals[p.Signal]; !ok {
				return fmt.Errorf("session %s refers to unknown signal %d", session.Name, p.Signal)
			}
		}
	}
	paths := make(map[int32]struct{}, len(s.Paths))
	for _, p := range s.Paths {
		if _, ok := paths[p.ID]; ok {
			return fmt.Errorf("duplicated path id %d", p.ID)
		}
		paths[p.ID] = struct{}{}
		if len(p.Points) < 2 {
			return fmt.Errorf("path %d needs at least 2 points", p.ID)
		}
		if _, ok := signals[p.Signal]; !ok {
			return fmt.Errorf("path %d bound to unknown signal %d", p.ID, p.Signal)
		}
	}
	for _, cw := range s.Crosswalks {
		if len(cw.LookPoints) != 2 {
			return fmt.Errorf("crosswalk %d needs exactly 2 look points", cw.ID)
		}
		if cw.Width <= 0 {
			return fmt.Errorf("crosswalk %d has non-positive width %v", cw.ID, cw.Width)
		}
		for _, g := range cw.Guards {
			if _, ok := paths[g.Path]; !ok {
				return fmt.Errorf("crosswalk %d guards unknown path %d", cw.ID, g.Path)
			}
		}
	}
	v := s.Vehicles
	if v.Count > 0 && (v.MaxSpeed <= 0 || v.Accel <= 0 || v.Decel <= 0 || v.Length <= 0) {
		return fmt.Errorf("vehicles need positive max_speed/accel/decel/length, got %+v", v)
	}
	ped := s.Pedestrians
	if ped.Count > 0 {
		if len(ped.Routes) == 0 {
			return errors.New("pedestrians need at least one route")
		}
		if ped.Speed.Min <= 0 || ped.Speed.Max < ped.Speed.Min {
			return fmt.Errorf("bad pedestrian speed range %+v", ped.Speed)
		}
		for i, r := range ped.Routes {
			if len(r.Waypoints) == 0 {
				return fmt.Errorf("pedestrian route %d has no waypoint", i)
			}
		}
	}
	return nil
}
