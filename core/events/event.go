package events

import (
	"context"
	"log/slog"
	"sync"

	"nftpawn/core/types"
)

// Event represents a structured state change emitted by the ledger or the
// lending engine.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render themselves as a typed
// attribute map.
type Payload interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder retains every emitted event in order. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []*types.Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	rendered := render(evt)
	r.mu.Lock()
	r.events = append(r.events, rendered)
	r.mu.Unlock()
}

// Events returns a snapshot of the recorded events.
func (r *Recorder) Events() []*types.Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Since returns the events recorded after the first n.
func (r *Recorder) Since(n int) []*types.Event {
	all := r.Events()
	if n < 0 {
		n = 0
	}
	if n >= len(all) {
		return nil
	}
	return all[n:]
}

// Types returns the type of every recorded event in order.
func (r *Recorder) Types() []string {
	all := r.Events()
	out := make([]string, len(all))
	for i, evt := range all {
		out[i] = evt.Type
	}
	return out
}

// LogEmitter writes every event to a structured logger at info level.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements the Emitter interface.
func (l LogEmitter) Emit(evt Event) {
	if evt == nil {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rendered := render(evt)
	attrs := make([]slog.Attr, 0, len(rendered.Attributes)+1)
	attrs = append(attrs, slog.String("event", rendered.Type))
	for k, v := range rendered.Attributes {
		attrs = append(attrs, slog.String(k, v))
	}
	logger.LogAttrs(context.Background(), slog.LevelInfo, "event emitted", attrs...)
}

// Fanout forwards each event to every wrapped emitter.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

func render(evt Event) *types.Event {
	if payload, ok := evt.(Payload); ok {
		if rendered := payload.Event(); rendered != nil {
			return rendered
		}
	}
	return &types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}
