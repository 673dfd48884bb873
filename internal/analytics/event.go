// Package analytics consumes the append-only hit event stream and
// materializes per-endpoint and global counters.
package analytics

import "strconv"

// Event is appended to the stream once per hit when analytics is enabled.
type Event struct {
	TimestampMS int64
	Key         string
	Endpoint    string
	Policy      string
	Allowed     bool
	Remaining   int64
	RetryAfter  float64
}

// ToFields renders the event using the wire schema: ts, key, ep, p, d, r, a.
func (e Event) ToFields() map[string]interface{} {
	decision := "0"
	if e.Allowed {
		decision = "1"
	}
	return map[string]interface{}{
		"ts":  e.TimestampMS,
		"key": e.Key,
		"ep":  e.Endpoint,
		"p":   e.Policy,
		"d":   decision,
		"r":   e.Remaining,
		"a":   strconv.FormatFloat(e.RetryAfter, 'f', -1, 64),
	}
}

// ParseEvent reconstructs an Event from the raw stream field map XReadGroup
// hands back.
func ParseEvent(fields map[string]interface{}) Event {
	return Event{
		TimestampMS: toInt64(fields["ts"]),
		Key:         toString(fields["key"]),
		Endpoint:    toString(fields["ep"]),
		Policy:      toString(fields["p"]),
		Allowed:     toString(fields["d"]) == "1",
		Remaining:   toInt64(fields["r"]),
		RetryAfter:  toFloat64(fields["a"]),
	}
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}
