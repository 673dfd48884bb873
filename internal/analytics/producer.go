package analytics

import "context"

// Appender is the minimal wire surface a Producer needs, satisfied by
// *wire.Client. Kept as an interface so the limiter façade's tests can swap
// in a fake without importing the wire package.
type Appender interface {
	XAdd(ctx context.Context, stream string, fields map[string]interface{}) (string, error)
}

// Producer appends hit events to the analytics stream. Emission failures are
// the caller's problem to log and swallow; a hit is never failed because
// analytics emission failed.
type Producer struct {
	client Appender
	stream string
}

// NewProducer constructs a Producer writing to stream via client.
func NewProducer(client Appender, stream string) *Producer {
	return &Producer{client: client, stream: stream}
}

// Emit appends event to the stream.
func (p *Producer) Emit(ctx context.Context, event Event) error {
	_, err := p.client.XAdd(ctx, p.stream, event.ToFields())
	return err
}
