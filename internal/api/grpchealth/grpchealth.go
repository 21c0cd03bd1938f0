package grpchealth

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Serve runs a gRPC server exposing only the standard health service until
// ctx is done. The overall status flips to NOT_SERVING before shutdown.
func Serve(ctx context.Context, lis net.Listener, service string) error {
	s := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(s, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	if service != "" {
		healthSrv.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	}

	go func() {
		<-ctx.Done()
		healthSrv.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			s.Stop()
		}
		_ = lis.Close()
	}()

	slog.Info("gRPC health server listening", "addr", lis.Addr().String(), "service", service)
	return s.Serve(lis)
}
