package analytics

import (
	"context"

	"github.com/swam244/flux/internal/wire"
)

// WireReader adapts *wire.Client to the Reader interface, translating the
// go-redis stream reply shape into this package's StreamEntry.
type WireReader struct {
	Client *wire.Client
}

func (w WireReader) XGroupCreate(ctx context.Context, stream, group, start string) error {
	return w.Client.XGroupCreate(ctx, stream, group, start)
}

func (w WireReader) XAck(ctx context.Context, stream, group string, ids ...string) (int64, error) {
	return w.Client.XAck(ctx, stream, group, ids...)
}

func (w WireReader) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	return w.Client.HIncrBy(ctx, key, field, delta)
}

func (w WireReader) HSet(ctx context.Context, key string, fields map[string]interface{}) error {
	return w.Client.HSet(ctx, key, fields)
}

func (w WireReader) XReadGroup(ctx context.Context, group, consumer, stream string, count int64) ([]StreamEntry, error) {
	streams, err := w.Client.XReadGroup(ctx, group, consumer, stream, count)
	if err != nil {
		return nil, err
	}
	var entries []StreamEntry
	for _, s := range streams {
		for _, msg := range s.Messages {
			entries = append(entries, StreamEntry{ID: msg.ID, Values: msg.Values})
		}
	}
	return entries, nil
}

// HGetAll and Scan satisfy HashReader, letting Snapshot read the aggregate
// counters through the same wire.Client the worker writes them with.

func (w WireReader) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return w.Client.HGetAll(ctx, key)
}

func (w WireReader) Scan(ctx context.Context, pattern string) ([]string, error) {
	return w.Client.Scan(ctx, pattern)
}
