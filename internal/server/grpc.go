package server

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// GRPCOptions configures the control-plane gRPC server.
type GRPCOptions struct {
	MaxConcurrentStreams int
}

// NewGRPCServer builds the gRPC server with the health service registered.
// The hub's serving state is mirrored into the health status.
func NewGRPCServer(hub *Hub, opts GRPCOptions, logger *zap.Logger) *grpc.Server {
	serverOpts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	}
	if opts.MaxConcurrentStreams > 0 {
		serverOpts = append(serverOpts, grpc.MaxConcurrentStreams(uint32(opts.MaxConcurrentStreams)))
	}
	srv := grpc.NewServer(serverOpts...)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)
	if hub != nil {
		hub.SetServingHook(func(serving bool) {
			st := healthpb.HealthCheckResponse_SERVING
			if !serving {
				st = healthpb.HealthCheckResponse_NOT_SERVING
			}
			healthServer.SetServingStatus("", st)
			healthServer.SetServingStatus(ServiceName, st)
		})
	} else {
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	}
	return srv
}

// ServiceName is the health-check service name for the match hub.
const ServiceName = "reversus.Hub"

// ChainUnaryInterceptors runs interceptors in order, outermost first.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			next, ic := chained, interceptors[i]
			chained = func(ctx context.Context, req any) (any, error) {
				return ic(ctx, req, info, next)
			}
		}
		return chained(ctx, req)
	}
}

// RecoveryInterceptor turns handler panics into Internal errors.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				buf := make([]byte, 4096)
				buf = buf[:runtime.Stack(buf, false)]
				if logger != nil {
					logger.Error("panic in gRPC handler",
						zap.String("method", info.FullMethod),
						zap.Any("panic", r),
						zap.ByteString("stack", buf),
					)
				}
				err = status.Error(codes.Internal, fmt.Sprintf("internal error: %v", r))
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every unary call with its duration and status.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if logger == nil {
			return resp, err
		}
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.String("code", status.Code(err).String()),
		}
		if m, ok := req.(proto.Message); ok {
			fields = append(fields, zap.Int("request_bytes", proto.Size(m)))
		}
		if err != nil {
			logger.Warn("gRPC call failed", append(fields, zap.Error(err))...)
		} else {
			logger.Debug("gRPC call", fields...)
		}
		return resp, err
	}
}
