package task

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
	"github.com/tsinghua-fib-lab/intersection-sim/utils/rpcutil"
)

const ServiceName = "intersection.control.v1.ControlService"

// congestionCommand 拥堵控制指令
type congestionCommand struct {
	kind  entity.AgentKind
	tier  entity.Tier
	reset bool
}

type SetCongestionRequest struct {
	Kind  string `json:"kind"`  // vehicle|pedestrian
	Tier  string `json:"tier"`  // off|low|medium|high|max
	Reset bool   `json:"reset"` // 是否同时回收全部在途实体
}

type SetCongestionResponse struct{}

type GetPopulationRequest struct{}

// PopulationState 一类智能体的数量统计
type PopulationState struct {
	Tier      string `json:"tier"`
	Inactive  int    `json:"inactive"`
	Waiting   int    `json:"waiting"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
}

type GetPopulationResponse struct {
	Job        string          `json:"job"`
	RunID      string          `json:"run_id"`
	Step       int32           `json:"step"`
	T          float64         `json:"t"`
	Vehicle    PopulationState `json:"vehicle"`
	Pedestrian PopulationState `json:"pedestrian"`
}

type ReportOverlapRequest struct {
	Path      int32  `json:"path"`
	Kind      string `json:"kind"` // enter|stay|exit
	Other     int32  `json:"other"`
	IsVehicle bool   `json:"is_vehicle"`
}

type ReportOverlapResponse struct{}

// Register 将控制服务注册到sidecar
// 功能：提供SetCongestion、GetPopulation与ReportOverlap三个接口
func (ctx *Context) Register(sidecar *syncer.Sidecar) {
	s := rpcutil.NewService(ServiceName)
	rpcutil.Unary(s, "SetCongestion", ctx.handleSetCongestion)
	rpcutil.Unary(s, "GetPopulation", ctx.handleGetPopulation)
	rpcutil.Unary(s, "ReportOverlap", ctx.handleReportOverlap)
	sidecar.Register(ServiceName, s.Handler)
}

func parseKind(s string) (entity.AgentKind, error) {
	switch s {
	case "vehicle":
		return entity.KindVehicle, nil
	case "pedestrian":
		return entity.KindPedestrian, nil
	default:
		return entity.KindVehicle, fmt.Errorf("unknown agent kind %q", s)
	}
}

// handleSetCongestion RPC接口：设置车辆或行人的拥堵等级
// 说明：参数在此处检查，合法请求写入buffer，在下一步prepare时生效
func (ctx *Context) handleSetCongestion(
	_ context.Context, in *connect.Request[SetCongestionRequest],
) (*connect.Response[SetCongestionResponse], error) {
	kind, err := parseKind(in.Msg.Kind)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	tier, err := entity.ParseTier(in.Msg.Tier)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	ctx.bufferMutex.Lock()
	ctx.congestionBuffer = append(ctx.congestionBuffer, congestionCommand{
		kind: kind, tier: tier, reset: in.Msg.Reset,
	})
	ctx.bufferMutex.Unlock()
	return connect.NewResponse(&SetCongestionResponse{}), nil
}

// handleGetPopulation RPC接口：获取车辆与行人的数量统计
func (ctx *Context) handleGetPopulation(
	_ context.Context, _ *connect.Request[GetPopulationRequest],
) (*connect.Response[GetPopulationResponse], error) {
	return connect.NewResponse(&GetPopulationResponse{
		Job:        ctx.job,
		RunID:      ctx.runID.String(),
		Step:       ctx.clock.InternalStep,
		T:          ctx.clock.T,
		Vehicle:    population(ctx.vehicleManager),
		Pedestrian: population(ctx.pedestrianManager),
	}), nil
}

// handleReportOverlap RPC接口：外部引擎上报路径入口传感器的重叠事件
func (ctx *Context) handleReportOverlap(
	_ context.Context, in *connect.Request[ReportOverlapRequest],
) (*connect.Response[ReportOverlapResponse], error) {
	kind, err := entity.ParseOverlapKind(in.Msg.Kind)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if _, err := ctx.pathManager.GetOrError(in.Msg.Path); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	ctx.bufferMutex.Lock()
	ctx.overlapBuffer = append(ctx.overlapBuffer, entity.OverlapEvent{
		Path:      in.Msg.Path,
		Kind:      kind,
		Other:     in.Msg.Other,
		IsVehicle: in.Msg.IsVehicle,
	})
	ctx.bufferMutex.Unlock()
	return connect.NewResponse(&ReportOverlapResponse{}), nil
}

type populationSource interface {
	Population() (inactive, waiting, active int)
	CompletedTrips() int
	Tier() entity.Tier
}

func population(m populationSource) PopulationState {
	inactive, waiting, active := m.Population()
	return PopulationState{
		Tier:      m.Tier().String(),
		Inactive:  inactive,
		Waiting:   waiting,
		Active:    active,
		Completed: m.CompletedTrips(),
	}
}

// applyBuffer 按写入顺序执行控制指令
func (ctx *Context) applyBuffer() {
	ctx.bufferMutex.Lock()
	congestion := ctx.congestionBuffer
	overlaps := ctx.overlapBuffer
	ctx.congestionBuffer = nil
	ctx.overlapBuffer = nil
	ctx.bufferMutex.Unlock()

	for _, cmd := range congestion {
		var m interface {
			SetTier(entity.Tier)
			Reset()
		} = ctx.vehicleManager
		if cmd.kind == entity.KindPedestrian {
			m = ctx.pedestrianManager
		}
		m.SetTier(cmd.tier)
		if cmd.reset {
			m.Reset()
		}
	}
	for _, ev := range overlaps {
		if err := ctx.pathManager.Overlap(ev); err != nil {
			log.Warnf("overlap: %v", err)
		}
	}
}
