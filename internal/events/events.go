// Package events describes the domain events the ledger emits after a
// committed change and the publishers that deliver them.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeLoanBorrowed       = "loan.borrowed"
	TypeLoanReturned       = "loan.returned"
	TypeReservationCreated = "reservation.created"
	TypeBookAdded          = "book.added"
	TypeBookUpdated        = "book.updated"
	TypeMemberRegistered   = "member.registered"
	TypeLedgerReset        = "ledger.reset"
)

// Version is the schema version stamped on every event.
const Version = "1.0.0"

// Event represents a domain event.
type Event struct {
	EventID       string         `json:"event_id"`
	EventType     string         `json:"event_type"`
	EventVersion  string         `json:"event_version"`
	Timestamp     string         `json:"timestamp"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Payload       map[string]any `json:"payload"`
}

// New builds an event with a fresh id and the correlation id carried by ctx.
func New(ctx context.Context, eventType string, occurredAt time.Time, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  Version,
		Timestamp:     occurredAt.UTC().Format(time.RFC3339),
		CorrelationID: CorrelationIDFromContext(ctx),
		Payload:       payload,
	}
}

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Noop discards every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

// Publish records the event and returns r.Err.
func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, e := range r.events {
		types[i] = e.EventType
	}
	return types
}

type correlationKey struct{}

// ContextWithCorrelationID stores the id that New copies onto events.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFromContext returns the stored correlation id or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
