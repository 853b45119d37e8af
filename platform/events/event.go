// Package events is the in-process event bus. Events carry facts that are
// already committed; handlers react to them but never write engine state.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is anything published on the bus. EventName is the subscription key.
type Event interface {
	EventName() string
	EventID() uuid.UUID
	OccurredAt() time.Time
}

// BaseEvent is embedded by every concrete event.
type BaseEvent struct {
	ID        uuid.UUID `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) EventID() uuid.UUID    { return e.ID }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent stamps a fresh id and the current UTC time.
func NewBaseEvent() BaseEvent {
	return BaseEvent{ID: uuid.New(), Timestamp: time.Now().UTC()}
}

type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus fans committed events out to subscribers.
type Bus interface {
	// Publish returns immediately; handlers run in the background.
	Publish(ctx context.Context, event Event)
	// PublishSync runs handlers in subscription order and joins their errors.
	PublishSync(ctx context.Context, event Event) error
	Subscribe(eventName string, handler Handler)
}
