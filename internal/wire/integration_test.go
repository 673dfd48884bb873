//go:build integration

package wire

import (
	"context"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/stretchr/testify/require"

	"github.com/swam244/flux/internal/config"
)

// TestClientAgainstRealRedis exercises the pool and client against an actual
// Redis server, complementing the miniredis-backed unit tests with a check
// against the real RESP2 implementation. Run with `-tags integration`.
func TestClientAgainstRealRedis(t *testing.T) {
	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	cfg := config.RedisConfig{Host: host, Port: port.Int(), PoolSize: 3, TimeoutMS: 1000}
	pool := NewPool(cfg)
	defer pool.Close()
	client := NewClient(pool)

	require.NoError(t, client.Ping(ctx))

	digest, err := client.ScriptLoad(ctx, `return {0, 0, 1}`)
	require.NoError(t, err)

	reply, err := client.EvalScript(ctx, digest, `return {0, 0, 1}`, []string{"flux:integration:test"})
	require.NoError(t, err)
	require.Equal(t, []interface{}{int64(0), int64(0), int64(1)}, reply)
}
