package analytics

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream is an in-memory Reader + HashReader used to test worker
// aggregation and the inspector snapshot without a running Redis.
type fakeStream struct {
	mu      sync.Mutex
	entries []StreamEntry
	groups  map[string]bool
	acked   map[string]bool
	hashes  map[string]map[string]string
	nextID  int
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		groups: map[string]bool{},
		acked:  map[string]bool{},
		hashes: map[string]map[string]string{},
	}
}

func (f *fakeStream) push(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("%d-0", f.nextID)
	f.entries = append(f.entries, StreamEntry{ID: id, Values: e.ToFields()})
}

func (f *fakeStream) XGroupCreate(_ context.Context, _, group, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[group] = true
	return nil
}

func (f *fakeStream) XReadGroup(_ context.Context, _, _, _ string, count int64) ([]StreamEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []StreamEntry
	for _, e := range f.entries {
		if f.acked[e.ID] {
			continue
		}
		pending = append(pending, e)
		if int64(len(pending)) >= count {
			break
		}
	}
	return pending, nil
}

func (f *fakeStream) XAck(_ context.Context, _, _ string, ids ...string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.acked[id] = true
	}
	return int64(len(ids)), nil
}

func (f *fakeStream) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = map[string]string{}
		f.hashes[key] = h
	}
	current, _ := strconv.ParseInt(h[field], 10, 64)
	current += delta
	h[field] = strconv.FormatInt(current, 10)
	return current, nil
}

func (f *fakeStream) HSet(_ context.Context, key string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = map[string]string{}
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = fmt.Sprintf("%v", v)
	}
	return nil
}

func (f *fakeStream) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStream) Scan(_ context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := pattern[:len(pattern)-1]
	var keys []string
	for k := range f.hashes {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func TestWorkerAggregatesAllowedAndBlocked(t *testing.T) {
	stream := newFakeStream()
	stream.push(Event{Endpoint: "login", Allowed: true})
	stream.push(Event{Endpoint: "login", Allowed: true})
	stream.push(Event{Endpoint: "login", Allowed: false})

	w := NewWorker(stream, "flux:events", "aggregator", "worker-1", "flux:")
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.drainOnceForTest(ctx))
	cancel()

	fields, err := stream.HGetAll(context.Background(), "flux:stats:ep:login")
	require.NoError(t, err)
	assert.Equal(t, "2", fields["c:allowed"])
	assert.Equal(t, "1", fields["c:blocked"])

	global, err := stream.HGetAll(context.Background(), "flux:stats:global")
	require.NoError(t, err)
	assert.Equal(t, "3", global["l:count"])

	// Every aggregated event must be acknowledged.
	for _, e := range stream.entries {
		assert.True(t, stream.acked[e.ID])
	}
}

func TestSnapshotReflectsAggregates(t *testing.T) {
	stream := newFakeStream()
	stream.push(Event{Endpoint: "checkout", Allowed: true})
	stream.push(Event{Endpoint: "checkout", Allowed: false})

	w := NewWorker(stream, "flux:events", "aggregator", "worker-1", "flux:")
	require.NoError(t, w.drainOnceForTest(context.Background()))

	snap, err := Snapshot(context.Background(), stream, "flux:")
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Global.Count)
	assert.Equal(t, int64(1), snap.Endpoints["checkout"].Allowed)
	assert.Equal(t, int64(1), snap.Endpoints["checkout"].Blocked)
}

// drainOnceForTest exposes the unexported drainOnce to this package's tests.
func (w *Worker) drainOnceForTest(ctx context.Context) error {
	return w.drainOnce(ctx)
}

func TestWorkerRunStopsOnContextCancel(t *testing.T) {
	stream := newFakeStream()
	w := NewWorker(stream, "flux:events", "aggregator", "worker-1", "flux:")
	w.errorSleep = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
}
