package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/swam244/flux/internal/observability"
)

// Reader is the minimal wire surface the Worker needs to drain and
// acknowledge the event stream, satisfied by WireReader (which wraps
// *wire.Client).
type Reader interface {
	XGroupCreate(ctx context.Context, stream, group, start string) error
	XReadGroup(ctx context.Context, group, consumer, stream string, count int64) ([]StreamEntry, error)
	XAck(ctx context.Context, stream, group string, ids ...string) (int64, error)
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)
	HSet(ctx context.Context, key string, fields map[string]interface{}) error
}

// StreamEntry is the subset of a redis.XMessage the worker consumes, kept
// local so this package does not need to import go-redis directly.
type StreamEntry struct {
	ID     string
	Values map[string]interface{}
}

// Worker folds stream entries into per-endpoint and global hash counters.
// It is horizontally scalable: multiple processes sharing Group but using
// distinct Consumer names split the stream's entries between them.
type Worker struct {
	reader     Reader
	stream     string
	group      string
	consumer   string
	keyPrefix  string
	batchSize  int
	errorSleep time.Duration
}

// NewWorker constructs a Worker draining stream into group under consumer,
// prefixing aggregate hash keys with keyPrefix.
func NewWorker(reader Reader, stream, group, consumer, keyPrefix string) *Worker {
	return &Worker{
		reader:     reader,
		stream:     stream,
		group:      group,
		consumer:   consumer,
		keyPrefix:  keyPrefix,
		batchSize:  100,
		errorSleep: time.Second,
	}
}

// Run creates the consumer group if absent and loops reading and
// aggregating batches until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.reader.XGroupCreate(ctx, w.stream, w.group, "0"); err != nil {
		return fmt.Errorf("analytics: create group: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.drainOnce(ctx); err != nil {
			slog.Warn("analytics worker read error, backing off", slog.Any("error", err))
			select {
			case <-time.After(w.errorSleep):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (w *Worker) drainOnce(ctx context.Context) error {
	entries, err := w.reader.XReadGroup(ctx, w.group, w.consumer, w.stream, int64(w.batchSize))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err := w.aggregate(ctx, entry); err != nil {
			slog.Warn("analytics worker failed to aggregate entry", slog.String("id", entry.ID), slog.Any("error", err))
			continue
		}
		ids = append(ids, entry.ID)
		observability.AnalyticsEventsProcessedTotal.Inc()
	}

	if len(ids) == 0 {
		return nil
	}
	if _, err := w.reader.XAck(ctx, w.stream, w.group, ids...); err != nil {
		return fmt.Errorf("ack batch: %w", err)
	}
	return nil
}

func (w *Worker) aggregate(ctx context.Context, entry StreamEntry) error {
	event := ParseEvent(entry.Values)

	field := "c:blocked"
	if event.Allowed {
		field = "c:allowed"
	}

	epKey := fmt.Sprintf("%sstats:ep:%s", w.keyPrefix, event.Endpoint)
	if _, err := w.reader.HIncrBy(ctx, epKey, field, 1); err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	if err := w.reader.HSet(ctx, epKey, map[string]interface{}{"m:last_updated": now}); err != nil {
		return err
	}

	globalKey := w.keyPrefix + "stats:global"
	if _, err := w.reader.HIncrBy(ctx, globalKey, "l:count", 1); err != nil {
		return err
	}
	return w.reader.HSet(ctx, globalKey, map[string]interface{}{"m:last_updated": now})
}
