package path

import (
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/config"
)

// Manager 路径管理器
type Manager struct {
	data  map[int32]*Path
	paths []*Path
}

// NewManager 创建路径管理器实例
func NewManager() *Manager {
	return &Manager{
		data:  make(map[int32]*Path),
		paths: make([]*Path, 0),
	}
}

type buildResult struct {
	path *Path
	err  error
}

// Init 初始化所有路径
// 功能：并行构建路径曲线，再绑定信号灯
// 参数：cs-路径配置，signalManager-信号灯管理器
// 返回：曲线不合法或信号灯不存在时返回error
func (m *Manager) Init(cs []config.Path, signalManager entity.ISignalManager) error {
	results := parallel.GoMap(cs, func(c config.Path) buildResult {
		p, err := newPath(c)
		return buildResult{path: p, err: err}
	})
	m.paths = make([]*Path, 0, len(results))
	for i, r := range results {
		if r.err != nil {
			return r.err
		}
		signal, err := signalManager.GetOrError(cs[i].Signal)
		if err != nil {
			return fmt.Errorf("path %d: %w", cs[i].ID, err)
		}
		r.path.signal = signal
		m.paths = append(m.paths, r.path)
	}
	m.data = lo.SliceToMap(m.paths, func(p *Path) (int32, *Path) {
		return p.id, p
	})
	log.Infof("Path: %d", len(m.paths))
	return nil
}

// Get 根据ID获取路径，如果不存在则panic
func (m *Manager) Get(id int32) entity.IPath {
	if p, ok := m.data[id]; !ok {
		log.Panicf("no id %d in path data", id)
		return nil
	} else {
		return p
	}
}

// GetOrError 根据ID获取路径，如果不存在则返回错误
func (m *Manager) GetOrError(id int32) (entity.IPath, error) {
	if p, ok := m.data[id]; !ok {
		return nil, fmt.Errorf("no id %d in path data", id)
	} else {
		return p, nil
	}
}

// Paths 全部路径（按配置顺序）
func (m *Manager) Paths() []entity.IPath {
	return lo.Map(m.paths, func(p *Path, _ int) entity.IPath { return p })
}

// Overlap 将外部重叠事件转发给对应路径的入口传感器
func (m *Manager) Overlap(ev entity.OverlapEvent) error {
	p, ok := m.data[ev.Path]
	if !ok {
		return fmt.Errorf("overlap event for unknown path %d", ev.Path)
	}
	p.Overlap(ev)
	return nil
}
