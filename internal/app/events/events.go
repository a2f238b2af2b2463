// Package events provides the audit record surface of the pawnshop layer.
// Every state transition performed by an engine emits exactly one record here;
// explorers, notification services and indexers consume them through
// subscriptions or the bounded in-memory ring.
package events

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// EntityKind identifies the record type a transition applies to.
type EntityKind string

const (
	KindAssetRequest EntityKind = "asset_request"
	KindAppointment  EntityKind = "appointment"
	KindEvaluation   EntityKind = "evaluation"
	KindCollateral   EntityKind = "collateral"
	KindOffer        EntityKind = "offer"
	KindLoanContract EntityKind = "loan_contract"
	KindEvaluator    EntityKind = "evaluator"
	KindReputation   EntityKind = "reputation"
)

// Amount is one value movement associated with a transition.
type Amount struct {
	Token string          `json:"token"`
	Value decimal.Decimal `json:"value"`
	From  string          `json:"from"`
	To    string          `json:"to"`
}

// Record is a single audit entry. Amounts lists every transfer performed in
// the same atomic step as the transition.
type Record struct {
	EntityKind EntityKind `json:"entity_kind"`
	EntityID   string     `json:"entity_id"`
	NewState   string     `json:"new_state"`
	Actor      string     `json:"actor"`
	Timestamp  time.Time  `json:"timestamp"`
	Amounts    []Amount   `json:"amounts,omitempty"`
}

// Handler processes records as they are emitted.
type Handler func(Record)

// Bus fans records out to subscribers and keeps a bounded ring of recent
// entries for the audit endpoint.
type Bus struct {
	mu       sync.Mutex
	handlers map[int]Handler
	nextSub  int
	recent   []Record
	max      int
}

// NewBus creates a bus retaining at most max recent records.
func NewBus(max int) *Bus {
	if max <= 0 {
		max = 512
	}
	return &Bus{
		handlers: make(map[int]Handler),
		max:      max,
	}
}

// Emit publishes a record. The timestamp is filled in when zero.
func (b *Bus) Emit(rec Record) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	b.recent = append(b.recent, rec)
	if len(b.recent) > b.max {
		b.recent = b.recent[len(b.recent)-b.max:]
	}
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(rec)
	}
}

// Subscribe registers a handler and returns an unsubscribe function.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Recent returns a copy of the retained records, oldest first.
func (b *Bus) Recent() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Record, len(b.recent))
	copy(out, b.recent)
	return out
}
