package store

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a throwaway Redis and returns its address.
// The test is skipped when no container runtime is reachable.
func setupRedisContainer(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Skipf("Failed to setup Redis container: %v", err)
	}

	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	return addr
}

// setupRedisStore returns a RedisStore backed by a fresh container.
func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	store, err := NewRedisStoreFromOptions(RedisOptions{Addr: setupRedisContainer(t)})
	if err != nil {
		t.Fatalf("NewRedisStoreFromOptions() error = %v", err)
	}
	t.Cleanup(store.Close)
	return store
}
