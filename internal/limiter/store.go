package limiter

import (
	"context"
	"fmt"
	"sync"

	"github.com/swam244/flux/internal/scripts"
)

// Store is the seam between the limiter façade and the wire protocol. The
// production implementation is *wire.Client; unit tests use MemoryStore so
// the façade's decision logic (jitter, fail_silently, analytics emission)
// can be exercised without a running Redis.
type Store interface {
	EvalScript(ctx context.Context, digest, source string, keys []string, args ...interface{}) (interface{}, error)
}

// MemoryStore is an in-process Store fake that replicates the four policy
// algorithms directly in Go, keyed by the script source it receives (it
// recognizes which policy a script implements via scripts.PolicyForSource
// rather than interpreting Lua).
type MemoryStore struct {
	mu       sync.Mutex
	scalars  map[string]float64
	hashes   map[string]map[string]float64
	counters map[string]int64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scalars:  map[string]float64{},
		hashes:   map[string]map[string]float64{},
		counters: map[string]int64{},
	}
}

func toFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}

// EvalScript dispatches to the Go equivalent of the policy the source text
// belongs to, mirroring the truncate-to-integer reply conversion a real
// Redis Lua script result undergoes.
func (m *MemoryStore) EvalScript(_ context.Context, _ string, source string, keys []string, args ...interface{}) (interface{}, error) {
	if len(keys) != 1 {
		return nil, fmt.Errorf("limiter: memory store expects exactly one key")
	}
	policy, ok := scripts.PolicyForSource(source)
	if !ok {
		return nil, fmt.Errorf("limiter: memory store does not recognize script")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := keys[0]
	switch policy {
	case scripts.GCRA:
		return m.evalGCRA(key, args)
	case scripts.TokenBucket:
		return m.evalTokenBucket(key, args)
	case scripts.LeakyBucket:
		return m.evalLeakyBucket(key, args)
	case scripts.FixedWindow:
		return m.evalFixedWindow(key, args)
	default:
		return nil, fmt.Errorf("limiter: unsupported policy %q", policy)
	}
}

func reply(status int64, retryAfter, remaining float64) []interface{} {
	return []interface{}{status, int64(retryAfter), int64(remaining)}
}

func (m *MemoryStore) evalGCRA(key string, args []interface{}) (interface{}, error) {
	now := toFloat(args[0])
	period := toFloat(args[1])
	requests := toFloat(args[2])
	burst := toFloat(args[3])
	cost := 1.0
	if len(args) > 4 {
		cost = toFloat(args[4])
	}

	emissionInterval := period / requests
	delayVarianceLimit := emissionInterval * burst

	tat := now
	if stored, ok := m.scalars[key]; ok {
		tat = stored
	}
	if tat < now {
		tat = now
	}

	newTat := tat + emissionInterval*cost
	allowAt := newTat - delayVarianceLimit

	if now >= allowAt {
		m.scalars[key] = newTat
		remaining := (delayVarianceLimit - (newTat - now)) / emissionInterval
		return reply(0, 0, remaining), nil
	}
	return reply(1, allowAt-now, 0), nil
}

func (m *MemoryStore) evalTokenBucket(key string, args []interface{}) (interface{}, error) {
	now := toFloat(args[0])
	period := toFloat(args[1])
	requests := toFloat(args[2])
	burst := toFloat(args[3])

	refillRate := requests / period
	h, ok := m.hashes[key]
	tokens, ts := burst, now
	if ok {
		tokens, ts = h["tokens"], h["ts"]
	}

	elapsed := now - ts
	if elapsed < 0 {
		elapsed = 0
	}
	tokens += elapsed * refillRate
	if tokens > burst {
		tokens = burst
	}

	var status int64
	var retryAfter, remaining float64
	if tokens >= 1 {
		tokens -= 1
		status = 0
		remaining = tokens
	} else {
		status = 1
		retryAfter = (1 - tokens) / refillRate
	}

	m.hashes[key] = map[string]float64{"tokens": tokens, "ts": now}
	return reply(status, retryAfter, remaining), nil
}

func (m *MemoryStore) evalLeakyBucket(key string, args []interface{}) (interface{}, error) {
	now := toFloat(args[0])
	period := toFloat(args[1])
	requests := toFloat(args[2])
	capacity := toFloat(args[3])

	leakRate := requests / period
	h, ok := m.hashes[key]
	level, ts := 0.0, now
	if ok {
		level, ts = h["level"], h["ts"]
	}

	elapsed := now - ts
	if elapsed < 0 {
		elapsed = 0
	}
	level -= elapsed * leakRate
	if level < 0 {
		level = 0
	}

	var status int64
	var retryAfter, remaining float64
	if level+1 <= capacity {
		level += 1
		status = 0
		remaining = capacity - level
	} else {
		status = 1
		retryAfter = (level + 1 - capacity) / leakRate
	}

	m.hashes[key] = map[string]float64{"level": level, "ts": now}
	return reply(status, retryAfter, remaining), nil
}

func (m *MemoryStore) evalFixedWindow(key string, args []interface{}) (interface{}, error) {
	now := toFloat(args[0])
	period := toFloat(args[1])
	requests := toFloat(args[2])

	window := float64(int64(now / period))
	windowKey := fmt.Sprintf("%s:%d", key, int64(window))
	m.counters[windowKey]++
	n := m.counters[windowKey]

	if float64(n) <= requests {
		return reply(0, 0, requests-float64(n)), nil
	}
	retryAfter := (window+1)*period - now
	return reply(1, retryAfter, 0), nil
}
