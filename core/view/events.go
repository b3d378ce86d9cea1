package view

import (
	"context"
	"time"
)

// EventType identifies a view lifecycle event.
type EventType string

const (
	SchemaLoadStart    EventType = "schema.load.start"
	SchemaLoadSuccess  EventType = "schema.load.success"
	SchemaLoadFailed   EventType = "schema.load.failed"
	QueryStart         EventType = "query.start"
	QuerySuccess       EventType = "query.success"
	QueryFailed        EventType = "query.failed"
	MutateStart        EventType = "mutate.start"
	MutateSuccess      EventType = "mutate.success"
	MutateFailed       EventType = "mutate.failed"
	ReferencesResolved EventType = "references.resolved"
	StateChanged       EventType = "state.changed"
)

// Event is emitted on the view's bus around every lifecycle transition, so a
// hosting shell can re-render or surface progress without polling.
type Event struct {
	Type      EventType     `json:"type"`
	Operation string        `json:"operation"`
	Schema    string        `json:"schema"`
	State     State         `json:"state,omitempty"`
	Input     any           `json:"input,omitempty"`
	Error     *string       `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Callback receives view events delivered through a subscription. A returned
// error is the bus's concern; the view never inspects it.
type Callback func(ctx context.Context, event Event) error

// SubscriptionInfo describes one registered event subscription.
type SubscriptionInfo struct {
	ID          string
	Event       EventType
	Label       *string
	Description *string
	Unsubscribe func()
}

// RegisterSubscriptionOptions configures a new subscription.
type RegisterSubscriptionOptions struct {
	Event       EventType
	Callback    Callback
	Label       *string
	Description *string
}

// createEvent builds a lifecycle event with timing relative to start.
func createEvent(eventType EventType, operation, schemaName string, state State, input any, err error, start time.Time) Event {
	e := Event{
		Type:      eventType,
		Operation: operation,
		Schema:    schemaName,
		State:     state,
		Input:     input,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	}
	if err != nil {
		msg := err.Error()
		e.Error = &msg
	}
	return e
}
