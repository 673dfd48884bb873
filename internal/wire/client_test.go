package wire

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swam244/flux/internal/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.RedisConfig{Host: "ignored", Port: 0, PoolSize: 3, TimeoutMS: 200}
	pool := NewPoolWithDialer(cfg, func(_ string) *redis.Client {
		return redis.NewClient(&redis.Options{Addr: mr.Addr(), PoolSize: 1})
	})
	return NewClient(pool), mr
}

func TestClientPing(t *testing.T) {
	client, _ := newTestClient(t)
	require.NoError(t, client.Ping(context.Background()))
}

func TestClientScriptLoadAndEval(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	digest, err := client.ScriptLoad(ctx, "return 1")
	require.NoError(t, err)
	assert.NotEmpty(t, digest)

	res, err := client.EvalScript(ctx, digest, "return 1", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res)
}

func TestClientEvalScriptReloadsOnNoScript(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	source := "return 42"
	res, err := client.EvalScript(ctx, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", source, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 42, res)
}

func TestClientHashOperations(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.HSet(ctx, "stats:global", map[string]interface{}{"c:allowed": 0}))
	n, err := client.HIncrBy(ctx, "stats:global", "c:allowed", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	all, err := client.HGetAll(ctx, "stats:global")
	require.NoError(t, err)
	assert.Equal(t, "3", all["c:allowed"])
}

func TestClientStreamOperations(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	id, err := client.XAdd(ctx, "flux:events", map[string]interface{}{"ep": "login", "d": "1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, client.XGroupCreate(ctx, "flux:events", "aggregator", "0"))
	// Creating the same group twice must be ignored (BUSYGROUP), not an error.
	require.NoError(t, client.XGroupCreate(ctx, "flux:events", "aggregator", "0"))

	streams, err := client.XReadGroup(ctx, "aggregator", "worker-1", "flux:events", 10)
	require.NoError(t, err)
	require.Len(t, streams, 1)
	require.Len(t, streams[0].Messages, 1)

	n, err := client.XAck(ctx, "flux:events", "aggregator", streams[0].Messages[0].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestClientPingFailsWhenStoreDown(t *testing.T) {
	cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1, PoolSize: 1, TimeoutMS: 50}
	pool := NewPool(cfg)
	client := NewClient(pool)
	err := client.Ping(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
	assert.Contains(t, err.Error(), "Redis Connection Failed")
}
