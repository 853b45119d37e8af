package cultivation

import (
	"context"

	"cultivation_backend/internal/events"
	"cultivation_backend/platform/logger"
)

// Recorder receives lifecycle counters.
type Recorder interface {
	BatchProvisioned(farmID string, baglets int)
	StatusTransitioned(to, mode string, count int)
	FindingsRecorded(n int)
}

// Subscriber turns committed lifecycle events into counters and audit logs.
// It never writes engine state.
type Subscriber struct {
	rec Recorder
	log *logger.Logger
}

// NewSubscriber creates a lifecycle event subscriber.
func NewSubscriber(rec Recorder, log *logger.Logger) *Subscriber {
	if log == nil {
		log = logger.Nop()
	}
	return &Subscriber{rec: rec, log: log}
}

// RegisterHandlers subscribes to every cultivation event.
func (s *Subscriber) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.BatchProvisioned{}.EventName(), s)
	bus.Subscribe(events.BatchSoftDeleted{}.EventName(), s)
	bus.Subscribe(events.BagletStatusChanged{}.EventName(), s)
	bus.Subscribe(events.BagletsBulkTransitioned{}.EventName(), s)
	bus.Subscribe(events.ContaminationRecorded{}.EventName(), s)
	bus.Subscribe(events.MetricsRecorded{}.EventName(), s)
}

// Handle routes events to the appropriate recorder call.
func (s *Subscriber) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.BatchProvisioned:
		s.rec.BatchProvisioned(e.FarmID, len(e.BagletIDs))
		s.rec.StatusTransitioned("PLANNED", "provision", len(e.BagletIDs))
	case events.BagletStatusChanged:
		s.rec.StatusTransitioned(e.NewStatus, "single", 1)
	case events.BagletsBulkTransitioned:
		s.rec.StatusTransitioned(e.ToStatus, "bulk", len(e.BagletIDs))
	case events.ContaminationRecorded:
		s.rec.FindingsRecorded(len(e.Codes))
	case events.BatchSoftDeleted:
		s.log.WithContext(ctx).Info("batch hidden from reads", "batchId", e.BatchID, "baglets", e.BagletsFlagged, "actor", e.Actor)
	case events.MetricsRecorded:
		s.log.WithContext(ctx).Debug("baglet metrics recorded", "bagletId", e.BagletID, "fields", e.Fields)
	}
	return nil
}
