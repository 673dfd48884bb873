package wire

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swam244/flux/internal/config"
)

func newTestPool(t *testing.T, size int) (*Pool, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.RedisConfig{Host: "ignored", Port: 0, PoolSize: size, TimeoutMS: 200}
	pool := NewPoolWithDialer(cfg, func(_ string) *redis.Client {
		return redis.NewClient(&redis.Options{Addr: mr.Addr(), PoolSize: 1})
	})
	return pool, mr
}

func TestPoolBorrowReturn(t *testing.T) {
	pool, _ := newTestPool(t, 2)
	defer pool.Close()

	c1, err := pool.Borrow(context.Background())
	require.NoError(t, err)
	c2, err := pool.Borrow(context.Background())
	require.NoError(t, err)

	pool.Return(c1, true)
	pool.Return(c2, true)

	c3, err := pool.Borrow(context.Background())
	require.NoError(t, err)
	pool.Return(c3, true)
}

func TestPoolExhaustedTimesOut(t *testing.T) {
	pool, _ := newTestPool(t, 1)
	defer pool.Close()

	c1, err := pool.Borrow(context.Background())
	require.NoError(t, err)
	defer pool.Return(c1, true)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = pool.Borrow(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestPoolFairnessUnderConcurrency(t *testing.T) {
	pool, _ := newTestPool(t, 5)
	defer pool.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 200)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				c, err := pool.Borrow(ctx)
				cancel()
				if err != nil {
					errs <- err
					continue
				}
				if err := c.client.Ping(context.Background()).Err(); err != nil {
					errs <- err
				}
				pool.Return(c, true)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestPoolDiscardsBrokenConnection(t *testing.T) {
	pool, _ := newTestPool(t, 1)
	defer pool.Close()

	c, err := pool.Borrow(context.Background())
	require.NoError(t, err)
	pool.Return(c, false)

	c2, err := pool.Borrow(context.Background())
	require.NoError(t, err)
	pool.Return(c2, true)
}
