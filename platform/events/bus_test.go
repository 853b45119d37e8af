package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestPublishSyncRunsOnlyMatchingHandlers(t *testing.T) {
	bus := NewInMemoryBus(nil)

	var provisioned, transitioned int
	bus.Subscribe("batch.provisioned", HandlerFunc(func(context.Context, Event) error {
		provisioned++
		return nil
	}))
	bus.Subscribe("baglet.status_changed", HandlerFunc(func(context.Context, Event) error {
		transitioned++
		return nil
	}))

	if err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "batch.provisioned"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if provisioned != 1 || transitioned != 0 {
		t.Fatalf("expected only the provisioned handler to run, got provisioned=%d transitioned=%d", provisioned, transitioned)
	}
}

func TestPublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(nil)
	first := errors.New("first")
	second := errors.New("second")

	bus.Subscribe("x", HandlerFunc(func(context.Context, Event) error { return first }))
	bus.Subscribe("x", HandlerFunc(func(context.Context, Event) error { return second }))

	err := bus.PublishSync(context.Background(), testEvent{name: "x"})
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Fatalf("expected both errors, got %v", err)
	}
}

func TestPublishAsyncCompletesBeforeClose(t *testing.T) {
	bus := NewInMemoryBus(nil)

	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("x", HandlerFunc(func(context.Context, Event) error {
			calls.Add(1)
			return nil
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, testEvent{name: "x"})
	cancel()
	bus.Close()

	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 handler calls, got %d", got)
	}
}

func TestNewBaseEventStampsIdentity(t *testing.T) {
	a, b := NewBaseEvent(), NewBaseEvent()

	if a.EventID() == uuid.Nil || a.EventID() == b.EventID() {
		t.Fatalf("expected distinct non-nil event ids, got %s and %s", a.EventID(), b.EventID())
	}
	if a.OccurredAt().Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %s", a.OccurredAt().Location())
	}
}
