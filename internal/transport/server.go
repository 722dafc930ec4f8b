package transport

import (
	"context"
	"net"
	"time"

	"github.com/danielpatrickdp/creature-colony/internal/cell"
	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/creature"
	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/danielpatrickdp/creature-colony/internal/strategy"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "creature.v1.Colony"
	// CallerKey is the metadata key carrying the caller identity.
	CallerKey = "x-creature-caller"
)

// #region backend

// Backend is the service surface the server exposes. *creature.Service satisfies it.
type Backend interface {
	Register(ctx context.Context, identity string) (cell.State, bool, error)
	AnalyzeStrategy(ctx context.Context, identity string, data []byte) (creature.Result, error)
	DimensionalScores() dimension.Vector
	Strategy(ctx context.Context, id string) (strategy.Record, error)
	Metrics() colony.Metrics
}

// ColonyServer is the server API for the creature.v1.Colony service.
type ColonyServer interface {
	Register(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	AnalyzeStrategy(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	GetDimensionalScores(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetStrategy(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetMetrics(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// #endregion backend

// #region service-desc

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ColonyServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unary("Register", newEmpty, ColonyServer.Register)},
		{MethodName: "AnalyzeStrategy", Handler: unary("AnalyzeStrategy", newBytes, ColonyServer.AnalyzeStrategy)},
		{MethodName: "GetDimensionalScores", Handler: unary("GetDimensionalScores", newEmpty, ColonyServer.GetDimensionalScores)},
		{MethodName: "GetStrategy", Handler: unary("GetStrategy", newString, ColonyServer.GetStrategy)},
		{MethodName: "GetMetrics", Handler: unary("GetMetrics", newEmpty, ColonyServer.GetMetrics)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "creature/v1/colony.proto",
}

func newEmpty() *emptypb.Empty           { return new(emptypb.Empty) }
func newBytes() *wrapperspb.BytesValue   { return new(wrapperspb.BytesValue) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }

// unary builds a method handler that decodes T and dispatches to call,
// routing through the interceptor chain when one is installed.
func unary[T proto.Message](method string, newReq func() T, call func(ColonyServer, context.Context, T) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ColonyServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ColonyServer), ctx, req.(T))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// #endregion service-desc

// #region server

// Server serves a Backend over gRPC.
type Server struct {
	backend Backend
	log     *zap.Logger
	grpc    *grpc.Server
}

// NewServer creates a gRPC server exposing backend. Extra options are appended
// after the logging interceptor.
func NewServer(backend Backend, log *zap.Logger, opts ...grpc.ServerOption) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{backend: backend, log: log}
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(s.logCalls)}, opts...)
	s.grpc = grpc.NewServer(opts...)
	s.grpc.RegisterService(&serviceDesc, s)
	return s
}

// Serve accepts connections on lis until ctx is cancelled, then drains in-flight calls.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- s.grpc.Serve(lis) }()
	s.log.Info("[TRANSPORT] serving", zap.String("addr", lis.Addr().String()))

	select {
	case <-ctx.Done():
		s.grpc.GracefulStop()
		<-errc
		s.log.Info("[TRANSPORT] stopped")
		return nil
	case err := <-errc:
		return err
	}
}

// Stop closes every connection immediately.
func (s *Server) Stop() {
	s.grpc.Stop()
}

func (s *Server) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Debug("[TRANSPORT] call",
		zap.String("method", info.FullMethod),
		zap.String("caller", callerFrom(ctx)),
		zap.String("code", status.Code(err).String()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, err
}

// #endregion server

// #region handlers

// Register creates the caller's cell.
func (s *Server) Register(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	st, created, err := s.backend.Register(ctx, callerFrom(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	return wrap(encodeCell(st, created))
}

// AnalyzeStrategy analyzes the payload on behalf of the caller.
func (s *Server) AnalyzeStrategy(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	res, err := s.backend.AnalyzeStrategy(ctx, callerFrom(ctx), in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrap(encodeResult(res))
}

// GetDimensionalScores returns the colony-wide scores.
func (s *Server) GetDimensionalScores(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return wrap(encodeVector(s.backend.DimensionalScores()))
}

// GetStrategy looks up a strategy record.
func (s *Server) GetStrategy(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	rec, err := s.backend.Strategy(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	return wrap(encodeRecord(rec))
}

// GetMetrics returns the colony metrics.
func (s *Server) GetMetrics(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return wrap(encodeMetrics(s.backend.Metrics()))
}

func wrap(out *structpb.Struct, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

func callerFrom(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(CallerKey); len(v) > 0 {
		return v[0]
	}
	return ""
}

// #endregion handlers
