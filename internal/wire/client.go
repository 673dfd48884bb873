package wire

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/swam244/flux/internal/observability"
)

// fixedSequence reproduces the three-attempt, 50ms/150ms backoff schedule as
// a backoff.BackOff so the retry driver can come straight from
// cenkalti/backoff/v4 instead of a hand-rolled loop. Two delays bound
// backoff.Retry to exactly three invocations of the operation: the initial
// attempt plus one retry after each delay.
type fixedSequence struct {
	delays []time.Duration
	next   int
}

func newFixedSequence() *fixedSequence {
	return &fixedSequence{delays: []time.Duration{50 * time.Millisecond, 150 * time.Millisecond}}
}

func (f *fixedSequence) NextBackOff() time.Duration {
	if f.next >= len(f.delays) {
		return backoff.Stop
	}
	d := f.delays[f.next]
	f.next++
	return d
}

func (f *fixedSequence) Reset() { f.next = 0 }

// retryable reports whether err is a connection-reset/IO failure or a
// NOSCRIPT reply, the only classes of error the wire protocol retries.
// Logical store errors (wrong type, syntax, script semantics) are not.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrConnection) || isNoScript(err)
}

func isNoScript(err error) bool {
	return err != nil && len(err.Error()) >= 8 && err.Error()[:8] == "NOSCRIPT"
}

func isIOError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}

// wrapStoreErr classifies a raw go-redis error: network/IO failures become a
// retryable ErrConnection, everything else (syntax, wrong type, script
// semantics) becomes a non-retried ErrCommand.
func wrapStoreErr(verb string, err error) error {
	if err == nil {
		return nil
	}
	if isIOError(err) {
		return fmt.Errorf("%w: %s: %v", ErrConnection, verb, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrCommand, verb, err)
}

// Client is the public wire protocol surface used by the limiter and
// analytics packages: a pooled, retrying Redis command executor.
type Client struct {
	pool *Pool
}

// NewClient wraps pool as a Client.
func NewClient(pool *Pool) *Client {
	return &Client{pool: pool}
}

// withConn borrows a connection, runs fn, and returns it marking it broken
// when fn's error looks like a connection failure rather than a logical one.
func (c *Client) withConn(ctx context.Context, fn func(*redis.Client) error) error {
	conn, err := c.pool.Borrow(ctx)
	if err != nil {
		return err
	}
	err = fn(conn.client)
	healthy := !errors.Is(err, ErrConnection) && !isIOError(err)
	c.pool.Return(conn, healthy)
	return err
}

// withRetry drives fn through the 3-attempt fixed backoff schedule, logging
// each failed attempt, and only for retryable error classes.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		observability.LoggerFromContext(ctx).Warn(fmt.Sprintf("Attempt %d/3 failed: %v", attempt, err))
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(newFixedSequence(), ctx))
}

// Ping verifies connectivity, returning ErrConnection on failure.
func (c *Client) Ping(ctx context.Context) error {
	return c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return wrapStoreErr("ping", err)
			}
			return nil
		})
	})
}

// ScriptLoad loads source into the store and returns its SHA-1 digest.
func (c *Client) ScriptLoad(ctx context.Context, source string) (string, error) {
	var digest string
	err := c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			d, err := rdb.ScriptLoad(ctx, source).Result()
			if err != nil {
				return wrapStoreErr("script load", err)
			}
			digest = d
			return nil
		})
	})
	return digest, err
}

// EvalScript runs the script identified by digest via EVALSHA. On a NOSCRIPT
// reply it transparently reloads source and retries once, per protocol.
func (c *Client) EvalScript(ctx context.Context, digest, source string, keys []string, args ...interface{}) (interface{}, error) {
	var result interface{}
	err := c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			res, err := rdb.EvalSha(ctx, digest, keys, args...).Result()
			if err != nil && isNoScript(err) {
				newDigest, loadErr := rdb.ScriptLoad(ctx, source).Result()
				if loadErr != nil {
					return wrapStoreErr("script reload", loadErr)
				}
				digest = newDigest
				res, err = rdb.EvalSha(ctx, digest, keys, args...).Result()
			}
			if err != nil {
				return wrapStoreErr("eval", err)
			}
			result = res
			return nil
		})
	})
	return result, err
}

// streamMaxLen bounds the analytics stream to an approximate length so an
// unread consumer group cannot grow it without limit; Redis trims lazily
// with the `~` modifier, which costs far less than exact trimming.
const streamMaxLen = 1_000_000

// XAdd appends fields to stream and returns the assigned entry ID.
func (c *Client) XAdd(ctx context.Context, stream string, fields map[string]interface{}) (string, error) {
	var id string
	err := c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			got, err := rdb.XAdd(ctx, &redis.XAddArgs{
				Stream: stream,
				MaxLen: streamMaxLen,
				Approx: true,
				Values: fields,
			}).Result()
			if err != nil {
				return wrapStoreErr("xadd", err)
			}
			id = got
			return nil
		})
	})
	return id, err
}

// XGroupCreate creates group on stream starting at start, ignoring the
// BUSYGROUP error returned when the group already exists.
func (c *Client) XGroupCreate(ctx context.Context, stream, group, start string) error {
	return c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			err := rdb.XGroupCreateMkStream(ctx, stream, group, start).Err()
			if err != nil && !isBusyGroup(err) {
				return wrapStoreErr("xgroup create", err)
			}
			return nil
		})
	})
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

// XReadGroup reads up to count new entries from stream for consumer in group.
func (c *Client) XReadGroup(ctx context.Context, group, consumer, stream string, count int64) ([]redis.XStream, error) {
	var streams []redis.XStream
	err := c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			res, err := rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    group,
				Consumer: consumer,
				Streams:  []string{stream, ">"},
				Count:    count,
				Block:    0,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return nil
				}
				return wrapStoreErr("xreadgroup", err)
			}
			streams = res
			return nil
		})
	})
	return streams, err
}

// XAck acknowledges ids on stream within group.
func (c *Client) XAck(ctx context.Context, stream, group string, ids ...string) (int64, error) {
	var count int64
	err := c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			n, err := rdb.XAck(ctx, stream, group, ids...).Result()
			if err != nil {
				return wrapStoreErr("xack", err)
			}
			count = n
			return nil
		})
	})
	return count, err
}

// HIncrBy increments field of key by delta and returns the new value.
func (c *Client) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	var result int64
	err := c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			n, err := rdb.HIncrBy(ctx, key, field, delta).Result()
			if err != nil {
				return wrapStoreErr("hincrby", err)
			}
			result = n
			return nil
		})
	})
	return result, err
}

// HSet sets fields on key.
func (c *Client) HSet(ctx context.Context, key string, fields map[string]interface{}) error {
	return c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			if err := rdb.HSet(ctx, key, fields).Err(); err != nil {
				return wrapStoreErr("hset", err)
			}
			return nil
		})
	})
}

// HGetAll returns all fields of key.
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var result map[string]string
	err := c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			m, err := rdb.HGetAll(ctx, key).Result()
			if err != nil {
				return wrapStoreErr("hgetall", err)
			}
			result = m
			return nil
		})
	})
	return result, err
}

// Scan returns every key matching pattern. Used only by the read-only
// inspector, never on the hot path.
func (c *Client) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			var cursor uint64
			keys = keys[:0]
			for {
				batch, next, err := rdb.Scan(ctx, cursor, pattern, 100).Result()
				if err != nil {
					return wrapStoreErr("scan", err)
				}
				keys = append(keys, batch...)
				cursor = next
				if cursor == 0 {
					return nil
				}
			}
		})
	})
	return keys, err
}

// Del deletes the given keys and returns how many existed. Used only by the
// `flux clear` operator command, never on the hot path.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var deleted int64
	err := c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			n, err := rdb.Del(ctx, keys...).Result()
			if err != nil {
				return wrapStoreErr("del", err)
			}
			deleted = n
			return nil
		})
	})
	return deleted, err
}

// TTL returns the remaining time-to-live of key.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	var ttl time.Duration
	err := c.withRetry(ctx, func() error {
		return c.withConn(ctx, func(rdb *redis.Client) error {
			d, err := rdb.TTL(ctx, key).Result()
			if err != nil {
				return wrapStoreErr("ttl", err)
			}
			ttl = d
			return nil
		})
	})
	return ttl, err
}

// Close releases the underlying pool.
func (c *Client) Close() error {
	return c.pool.Close()
}
