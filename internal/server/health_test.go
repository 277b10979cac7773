package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthService_ReportsServingStatus(t *testing.T) {
	hs := NewHealthService("127.0.0.1:0", zaptest.NewLogger(t))

	errCh := make(chan error, 1)
	go func() { errCh <- hs.Start() }()
	select {
	case <-hs.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("health service did not bind")
	}

	conn, err := grpc.NewClient(hs.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: RelayServiceName})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())
	hs.SetServing(true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check())
	hs.SetServing(false)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())

	hs.Stop()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("health service did not stop")
	}
}
