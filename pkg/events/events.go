// Package events carries the structured events emitted by committed
// ledger, marketplace and training operations.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/neuralforge/platform/pkg/common/models"
)

// Event is a single state change announced by a component.
type Event interface {
	// EventType is the stable name, e.g. "ModelSold".
	EventType() string
	// Parties lists every account the event concerns, for activity feeds.
	Parties() []string
}

// Emitter receives events while an operation runs. Events emitted by an
// operation that is later rolled back are discarded by the engine.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

// Discard drops every event. Useful for components used standalone.
var Discard Emitter = EmitterFunc(func(Event) {})

// Buffer collects events for one operation.
type Buffer struct {
	pending []Event
}

func (b *Buffer) Emit(ev Event) { b.pending = append(b.pending, ev) }

// Drain returns the collected events and empties the buffer.
func (b *Buffer) Drain() []Event {
	out := b.pending
	b.pending = nil
	return out
}

// Reset discards collected events.
func (b *Buffer) Reset() { b.pending = nil }

// Record is a committed event with its global position.
type Record struct {
	Seq    uint64    `json:"seq"`
	Op     string    `json:"op"`
	Caller string    `json:"caller"`
	At     time.Time `json:"at"`
	Event  Event     `json:"-"`
}

func (r Record) Type() string {
	if r.Event == nil {
		return ""
	}
	return r.Event.EventType()
}

// Envelope converts the record into the bus message published to Kafka.
func (r Record) Envelope(source string) (models.Event, error) {
	payload, err := json.Marshal(r.Event)
	if err != nil {
		return models.Event{}, err
	}
	return models.Event{
		ID:        uuid.New().String(),
		Type:      r.Type(),
		Source:    source,
		Sequence:  r.Seq,
		Operation: r.Op,
		Caller:    r.Caller,
		Accounts:  r.Event.Parties(),
		Data:      payload,
		Timestamp: r.At,
	}, nil
}
