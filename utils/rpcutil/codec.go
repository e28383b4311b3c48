// connect RPC的公共编解码与处理器工具
package rpcutil

import (
	"context"
	"encoding/json"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// jsonCodec 同时支持protobuf消息与普通Go结构体的JSON编解码器
// 功能：protobuf消息走protojson，其余类型走encoding/json
// 说明：控制类接口的请求/响应为普通结构体，没有对应的.proto定义
type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return protojson.Marshal(m)
	}
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return protojson.Unmarshal(data, m)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// WithJSON 使用jsonCodec的处理器选项
func WithJSON() connect.HandlerOption {
	return connect.WithCodec(jsonCodec{})
}

// Service 由若干unary处理器组成的服务
// 功能：把多个过程挂到同一个前缀下，返回值符合sidecar.Register的注册函数签名
type Service struct {
	Name     string                                                   // 服务全名，如intersection.signal.v1.SignalService
	handlers map[string]func(opts ...connect.HandlerOption) http.Handler // 过程名->处理器工厂
}

// NewService 创建服务
func NewService(name string) *Service {
	return &Service{
		Name:     name,
		handlers: make(map[string]func(opts ...connect.HandlerOption) http.Handler),
	}
}

// Procedure 过程的完整路径
func (s *Service) Procedure(method string) string {
	return "/" + s.Name + "/" + method
}

// Unary 注册一个unary过程
func Unary[Req, Res any](
	s *Service, method string,
	f func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error),
) {
	procedure := s.Procedure(method)
	s.handlers[procedure] = func(opts ...connect.HandlerOption) http.Handler {
		all := append([]connect.HandlerOption{WithJSON()}, opts...)
		return connect.NewUnaryHandler(procedure, f, all...)
	}
}

// Handler 生成服务的HTTP处理器
// 返回：路由前缀与处理器
func (s *Service) Handler(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
	mux := http.NewServeMux()
	for procedure, h := range s.handlers {
		mux.Handle(procedure, h(opts...))
	}
	return "/" + s.Name + "/", mux
}
