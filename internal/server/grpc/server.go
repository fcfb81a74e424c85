// Package grpcserver hosts the process's gRPC surface. Per this service's
// design the domain operations are HTTP-only (§4.8); the only RPC
// exposed here is the standard gRPC health-checking protocol, which lets
// orchestrators (Kubernetes, load balancers) probe the process the same
// way they probe any other gRPC service without topicd inventing its own
// health wire format.
package grpcserver

import (
	"context"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/topicd/internal/runtime"
)

// Server owns the gRPC server instance and polls the runtime's health so
// the standard health service reflects it.
type Server struct {
	rt     *runtime.Runtime
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	stopCh chan struct{}
	stopOnce sync.Once
}

// New constructs a gRPC server with only the health service registered.
func New(rt *runtime.Runtime, opts ...grpc.ServerOption) *Server {
	hs := health.NewServer()
	s := &Server{rt: rt, grpc: grpc.NewServer(opts...), health: hs, stopCh: make(chan struct{})}
	healthpb.RegisterHealthServer(s.grpc, hs)
	return s
}

// ListenAndServe binds addr, serves until ctx is done, and in the
// meantime keeps the health service's serving status synced to the
// engine's activity every second.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	go s.watchHealth(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) watchHealth(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if s.rt.CheckHealth(ctx) == nil {
			status = healthpb.HealthCheckResponse_SERVING
		}
		s.health.SetServingStatus("", status)
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
		}
	}
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
