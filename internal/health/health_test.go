package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/gomoku-relay/internal/config"
)

func startHealth(t *testing.T) (*Server, grpc_health_v1.HealthClient, chan error) {
	t.Helper()
	srv := NewServer(config.HealthConfig{Enabled: true, GRPCHost: "127.0.0.1", GRPCPort: 0}, zaptest.NewLogger(t))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	deadline := time.After(2 * time.Second)
	for srv.Addr() == "" {
		select {
		case <-deadline:
			t.Fatal("health server did not start in time")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() {
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return srv, grpc_health_v1.NewHealthClient(conn), errCh
}

func check(t *testing.T, client grpc_health_v1.HealthClient, service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthStartsNotServing(t *testing.T) {
	_, client, _ := startHealth(t)

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, client, ""))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, client, Service))
}

func TestHealthSetServing(t *testing.T) {
	srv, client, _ := startHealth(t)

	srv.SetServing(true)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(t, client, Service))

	srv.SetServing(false)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(t, client, Service))
}

func TestHealthStopReturnsCleanly(t *testing.T) {
	srv, _, errCh := startHealth(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	srv.Stop(ctx)
	srv.Stop(ctx)

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after Stop")
	}
}
