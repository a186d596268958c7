package events

import (
	"sync"

	"bonuschain/core/types"
)

// Event represents a structured state change emitted by the chain.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. indexers, logs).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer collects emitted events in order. The node drains it after each
// committed call and tests inspect it directly.
type Buffer struct {
	mu     sync.Mutex
	events []types.Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	raw := evt.Event()
	if raw == nil {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, *raw)
	b.mu.Unlock()
}

// Events returns a copy of the buffered events.
func (b *Buffer) Events() []types.Event {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]types.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Drain returns the buffered events and clears the buffer.
func (b *Buffer) Drain() []types.Event {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.events
	b.events = nil
	return out
}

// Reset discards buffered events without returning them.
func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.events = nil
	b.mu.Unlock()
}

// OfType filters the buffered events by type.
func (b *Buffer) OfType(kind string) []types.Event {
	var out []types.Event
	for _, evt := range b.Events() {
		if evt.Type == kind {
			out = append(out, evt)
		}
	}
	return out
}
