package signal

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/intersection-sim/utils"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/rpcutil"
)

const ServiceName = "intersection.signal.v1.SignalService"

type CycleFromRequest struct {
	Index int `json:"index"`
}

type CycleFromResponse struct{}

type GetSignalsRequest struct {
	IDs []int32 `json:"ids,omitempty"`
}

// SignalState 信号灯状态输出
type SignalState struct {
	ID         int32  `json:"id"`
	Name       string `json:"name"`
	Phase      string `json:"phase"`
	LightState string `json:"light_state"`
	Visible    bool   `json:"visible"`
	Flickering bool   `json:"flickering"`
}

type GetSignalsResponse struct {
	Signals       []SignalState `json:"signals"`
	ActiveSession int           `json:"active_session"` // 无开启会话时为-1
	Remaining     float64       `json:"remaining"`
}

// Register 将信号控制服务注册到sidecar
// 功能：提供CycleFrom与GetSignals两个接口
func (m *Manager) Register(sidecar *syncer.Sidecar) {
	s := rpcutil.NewService(ServiceName)
	rpcutil.Unary(s, "CycleFrom", m.handleCycleFrom)
	rpcutil.Unary(s, "GetSignals", m.handleGetSignals)
	sidecar.Register(ServiceName, s.Handler)
}

// handleCycleFrom RPC接口：从指定会话重新开始循环
// 说明：下标在此处检查，合法请求写入buffer，在下一步Prepare时生效
func (m *Manager) handleCycleFrom(
	ctx context.Context, in *connect.Request[CycleFromRequest],
) (*connect.Response[CycleFromResponse], error) {
	index := in.Msg.Index
	if index < 0 || index >= len(m.sessions) {
		return nil, connect.NewError(
			connect.CodeInvalidArgument,
			fmt.Errorf("%w: %d not in [0, %d)", ErrBadSessionIndex, index, len(m.sessions)),
		)
	}
	m.cycleBufferMutex.Lock()
	m.cycleBuffer = &index
	m.cycleBufferMutex.Unlock()
	return connect.NewResponse(&CycleFromResponse{}), nil
}

// handleGetSignals RPC接口：获取信号灯状态
// 说明：ids为空时返回全部信号灯，存在未知ID时返回错误
func (m *Manager) handleGetSignals(
	ctx context.Context, in *connect.Request[GetSignalsRequest],
) (*connect.Response[GetSignalsResponse], error) {
	signals, failed := utils.Find(m.data, m.signals, in.Msg.IDs)
	if len(failed) > 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("no id %v in signal data", failed))
	}
	index, ok := m.ActiveSession()
	if !ok {
		index = -1
	}
	return connect.NewResponse(&GetSignalsResponse{
		Signals: lo.Map(signals, func(s *Signal, _ int) SignalState {
			g := s.Group(s.phase)
			return SignalState{
				ID:         s.id,
				Name:       s.name,
				Phase:      s.phase.String(),
				LightState: s.phase.LightState().String(),
				Visible:    g.visible,
				Flickering: g.Flickering(),
			}
		}),
		ActiveSession: index,
		Remaining:     m.timer.Remaining(),
	}), nil
}
