package events

import "context"

// Sink consumes batches of events. Implementations must honor ctx deadlines
// and may be called repeatedly from the hub goroutine.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it; a nil *Hub is a
// valid no-op emitter.
type Emitter interface {
	Emit(evt Event)
}
