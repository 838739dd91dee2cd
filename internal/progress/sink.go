package progress

import "context"

// Sink consumes batches of run events. Implementations must be safe for
// repeated calls and honor ctx deadlines.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. The runner only knows this interface.
type Emitter interface {
	Emit(evt Event)
}

// EmitterFunc adapts a plain function to the Emitter interface.
type EmitterFunc func(Event)

// Emit calls f(evt).
func (f EmitterFunc) Emit(evt Event) {
	f(evt)
}

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})
