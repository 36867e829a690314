package rpc

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/caesar-terminal/synthbook/internal/engine"
	"github.com/caesar-terminal/synthbook/internal/synth"
)

const (
	serviceName     = "synthbook.v1.Synthetics"
	buildFullMethod = "/" + serviceName + "/Build"
)

// SyntheticsServer is the server API for the Synthetics service.
type SyntheticsServer interface {
	Build(ctx context.Context, req *BuildRequest) (*BuildResponse, error)
}

var syntheticsServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SyntheticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Build", Handler: buildHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "synthbook/v1/synthetics",
}

// RegisterSyntheticsServer registers srv on s.
func RegisterSyntheticsServer(s grpc.ServiceRegistrar, srv SyntheticsServer) {
	s.RegisterService(&syntheticsServiceDesc, srv)
}

func buildHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(BuildRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SyntheticsServer).Build(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: buildFullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SyntheticsServer).Build(ctx, req.(*BuildRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Handler implements SyntheticsServer over a synth.Service.
type Handler struct {
	svc *synth.Service
}

// NewHandler creates a Handler wired to the given Service.
func NewHandler(svc *synth.Service) *Handler {
	return &Handler{svc: svc}
}

// Build composes one synthetic book. Validation failures map to
// InvalidArgument; degraded legs are reported in the response.
func (h *Handler) Build(ctx context.Context, req *BuildRequest) (*BuildResponse, error) {
	depth := int(req.Depth)
	if depth == 0 {
		depth = h.svc.Config().DefaultDepth
	}

	book, err := h.svc.Build(ctx, req.engineLegs(), depth)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrValidation):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, context.Canceled):
			return nil, status.Error(codes.Canceled, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			return nil, status.Error(codes.DeadlineExceeded, err.Error())
		default:
			return nil, status.Errorf(codes.Internal, "build failed: %v", err)
		}
	}
	return newBuildResponse(book), nil
}

// loggingInterceptor logs one line per call.
func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("elapsed", time.Since(start)).
		Msg("rpc")
	return resp, err
}
