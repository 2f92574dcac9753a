package audit

import "context"

// Sink consumes batches of audit events. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies this interface so
// pipeline components stay agnostic about buffering and shipping.
type Emitter interface {
	Emit(evt Event)
}

// NopEmitter discards all events. Useful as a constructor default.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(Event) {}
