package analytics

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// EndpointStats mirrors one `stats:ep:{ep}` hash.
type EndpointStats struct {
	Endpoint    string
	Allowed     int64
	Blocked     int64
	LastUpdated time.Time
}

// GlobalStats mirrors the `stats:global` hash.
type GlobalStats struct {
	Count       int64
	LastUpdated time.Time
}

// Stats is the read-only snapshot the inspector CLI renders.
type Stats struct {
	Global    GlobalStats
	Endpoints map[string]EndpointStats
}

// HashReader is the minimal wire surface Snapshot needs.
type HashReader interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Snapshot reads the aggregate counters for every endpoint seen under
// keyPrefix plus the global row. It never mutates state.
func Snapshot(ctx context.Context, reader HashReader, keyPrefix string) (Stats, error) {
	global, err := readGlobal(ctx, reader, keyPrefix)
	if err != nil {
		return Stats{}, err
	}

	keys, err := reader.Scan(ctx, keyPrefix+"stats:ep:*")
	if err != nil {
		return Stats{}, fmt.Errorf("analytics: scan endpoint stats: %w", err)
	}

	endpoints := make(map[string]EndpointStats, len(keys))
	prefixLen := len(keyPrefix + "stats:ep:")
	for _, key := range keys {
		if len(key) <= prefixLen {
			continue
		}
		ep := key[prefixLen:]
		stats, err := readEndpoint(ctx, reader, key, ep)
		if err != nil {
			return Stats{}, err
		}
		endpoints[ep] = stats
	}

	return Stats{Global: global, Endpoints: endpoints}, nil
}

func readGlobal(ctx context.Context, reader HashReader, keyPrefix string) (GlobalStats, error) {
	fields, err := reader.HGetAll(ctx, keyPrefix+"stats:global")
	if err != nil {
		return GlobalStats{}, fmt.Errorf("analytics: read global stats: %w", err)
	}
	return GlobalStats{
		Count:       parseInt(fields["l:count"]),
		LastUpdated: parseMillis(fields["m:last_updated"]),
	}, nil
}

func readEndpoint(ctx context.Context, reader HashReader, key, endpoint string) (EndpointStats, error) {
	fields, err := reader.HGetAll(ctx, key)
	if err != nil {
		return EndpointStats{}, fmt.Errorf("analytics: read endpoint stats %s: %w", endpoint, err)
	}
	return EndpointStats{
		Endpoint:    endpoint,
		Allowed:     parseInt(fields["c:allowed"]),
		Blocked:     parseInt(fields["c:blocked"]),
		LastUpdated: parseMillis(fields["m:last_updated"]),
	}, nil
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseMillis(s string) time.Time {
	ms := parseInt(s)
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
