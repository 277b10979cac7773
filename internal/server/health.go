package server

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// RelayServiceName is the gRPC health service name reported for the relay.
const RelayServiceName = "fpsnet.Relay"

// HealthService serves the standard gRPC health checking protocol so load
// balancers and orchestrators can probe the relay.
type HealthService struct {
	addr   string
	logger *zap.Logger

	grpcServer *grpc.Server
	health     *health.Server

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
	once     sync.Once
}

// NewHealthService creates a health service bound to addr on Start. Both the
// overall ("") and RelayServiceName statuses start NOT_SERVING.
//
// Precondition: logger must be non-nil.
func NewHealthService(addr string, logger *zap.Logger) *HealthService {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(RelayServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &HealthService{
		addr:       addr,
		logger:     logger,
		grpcServer: gs,
		health:     hs,
		ready:      make(chan struct{}),
	}
}

// SetServing flips the reported status of the relay.
func (h *HealthService) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(RelayServiceName, status)
}

// Start listens and serves health checks until Stop.
func (h *HealthService) Start() error {
	lis, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}
	h.mu.Lock()
	h.listener = lis
	h.mu.Unlock()
	h.once.Do(func() { close(h.ready) })

	h.logger.Info("gRPC health service listening",
		zap.String("addr", lis.Addr().String()),
	)
	return h.grpcServer.Serve(lis)
}

// Stop reports NOT_SERVING to watchers and stops the gRPC server.
func (h *HealthService) Stop() {
	h.health.Shutdown()
	h.grpcServer.GracefulStop()
}

// Ready is closed once the listener is bound.
func (h *HealthService) Ready() <-chan struct{} {
	return h.ready
}

// Addr returns the bound address, or "" before Start has listened.
func (h *HealthService) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}
