package wire

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swam244/flux/internal/config"
	"github.com/swam244/flux/internal/observability"
)

// ConnState is a connection slot's position in the pool lifecycle:
// Disconnected -> Connecting -> Idle -> InUse -> (Idle | Broken) -> (Disconnected | Connecting).
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateIdle
	StateInUse
	StateBroken
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateIdle:
		return "idle"
	case StateInUse:
		return "inuse"
	case StateBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// conn is one pooled slot.
type conn struct {
	state  ConnState
	client *redis.Client
}

// Dialer constructs the underlying transport for a slot. Production code
// uses dialRedis; tests substitute a dialer pointed at miniredis.
type Dialer func(addr string) *redis.Client

// Pool is a bounded, borrow/return pool of Redis connections. It owns only
// the slot bookkeeping; retries live in Client and the wire codec itself is
// go-redis's.
type Pool struct {
	mu   sync.Mutex
	cond *sync.Cond

	addr    string
	size    int
	timeout time.Duration
	dial    Dialer

	idle    []*conn
	total   int
	metrics *observability.ConnectionMetrics
	breaker *observability.CircuitBreaker
}

func dialRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, PoolSize: 1})
}

// NewPool constructs a Pool from redis configuration. No connections are
// dialed until first Borrow.
func NewPool(cfg config.RedisConfig) *Pool {
	return NewPoolWithDialer(cfg, dialRedis)
}

// NewPoolWithDialer is NewPool with an injectable dialer, used by tests to
// target miniredis instead of a real network address.
func NewPoolWithDialer(cfg config.RedisConfig, dial Dialer) *Pool {
	p := &Pool{
		addr:    cfg.Addr(),
		size:    cfg.PoolSize,
		timeout: cfg.Timeout(),
		dial:    dial,
		metrics: observability.NewConnectionMetrics(observability.ConnectionTypeRedis, observability.OperationTypeRequest, cfg.Addr()),
		breaker: observability.NewCircuitBreaker(5, 10*time.Second, 0.5),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Borrow waits for a free slot, dialing lazily when the pool has not yet
// reached its configured size, and returns the exclusively-held connection.
func (p *Pool) Borrow(ctx context.Context) (*conn, error) {
	p.metrics.RecordRequest()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			p.cond.Broadcast()
			p.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	p.mu.Lock()
	for {
		if len(p.idle) > 0 {
			c := p.idle[len(p.idle)-1]
			p.idle = p.idle[:len(p.idle)-1]
			c.state = StateInUse
			p.mu.Unlock()
			p.metrics.RecordSuccess(time.Since(start))
			return c, nil
		}
		if p.total < p.size {
			if !p.breaker.CanExecute() {
				p.mu.Unlock()
				p.metrics.RecordFailure(ErrConnection, time.Since(start))
				return nil, fmt.Errorf("%w: circuit breaker open", ErrConnection)
			}
			p.total++
			p.mu.Unlock()

			c, err := p.connect()
			if err != nil {
				p.mu.Lock()
				p.total--
				p.cond.Broadcast()
				p.mu.Unlock()
				p.metrics.RecordFailure(err, time.Since(start))
				p.breaker.RecordFailure()
				return nil, err
			}
			p.breaker.RecordSuccess()
			p.metrics.RecordSuccess(time.Since(start))
			return c, nil
		}
		if ctx.Err() != nil {
			p.mu.Unlock()
			p.metrics.RecordTimeout(time.Since(start))
			observability.PoolExhaustedTotal.Inc()
			return nil, fmt.Errorf("%w: timed out after %s", ErrPoolExhausted, p.timeout)
		}
		p.cond.Wait()
	}
}

func (p *Pool) connect() (*conn, error) {
	client := p.dial(p.addr)
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, p.addr, err)
	}
	return &conn{state: StateInUse, client: client}, nil
}

// Return releases c back to the pool. When healthy is false the connection
// is discarded (Broken) and a replacement is dialed lazily on next Borrow.
func (p *Pool) Return(c *conn, healthy bool) {
	if c == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !healthy {
		c.state = StateBroken
		_ = c.client.Close()
		p.total--
		p.cond.Broadcast()
		return
	}
	c.state = StateIdle
	p.idle = append(p.idle, c)
	p.cond.Broadcast()
}

// Close tears down every idle connection. Connections borrowed at the time
// are not closed by it: a later healthy Return puts them back on the idle
// list, and only an unhealthy Return closes them.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, c := range p.idle {
		if err := c.client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.idle = nil
	p.total = 0
	return firstErr
}

// Metrics exposes the pool's connection health counters.
func (p *Pool) Metrics() *observability.ConnectionMetrics {
	return p.metrics
}
