// Package events defines the cultivation and catalog events. Each one is
// published only after the transaction that produced it has committed.
package events

import (
	"cultivation_backend/platform/events"
	"cultivation_backend/platform/logger"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus builds the process-local bus used by cmd/api.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Provisioning Events
// =============================================================================

// BatchProvisioned is published when a batch and all its baglets exist.
type BatchProvisioned struct {
	BaseEvent
	BatchID     string   `json:"batchId"`
	FarmID      string   `json:"farmId"`
	StrainCode  string   `json:"strainCode"`
	SubstrateID string   `json:"substrateId"`
	BagletIDs   []string `json:"bagletIds"`
	CreatedBy   string   `json:"createdBy"`
}

func (e BatchProvisioned) EventName() string { return "cultivation.batch.provisioned" }

// BatchSoftDeleted is published when an administrator flags a batch as deleted.
type BatchSoftDeleted struct {
	BaseEvent
	BatchID        string `json:"batchId"`
	BagletsFlagged int    `json:"bagletsFlagged"`
	Actor          string `json:"actor"`
}

func (e BatchSoftDeleted) EventName() string { return "cultivation.batch.soft_deleted" }

// =============================================================================
// Lifecycle Events
// =============================================================================

// BagletStatusChanged is published for every committed single-baglet transition.
type BagletStatusChanged struct {
	BaseEvent
	BagletID       string `json:"bagletId"`
	BatchID        string `json:"batchId"`
	PreviousStatus string `json:"previousStatus"`
	NewStatus      string `json:"newStatus"`
	Actor          string `json:"actor"`
}

func (e BagletStatusChanged) EventName() string { return "cultivation.baglet.status_changed" }

// BagletsBulkTransitioned is published once per committed cohort transition.
type BagletsBulkTransitioned struct {
	BaseEvent
	BatchID    string   `json:"batchId"`
	FromStatus string   `json:"fromStatus"`
	ToStatus   string   `json:"toStatus"`
	BagletIDs  []string `json:"bagletIds"`
	Actor      string   `json:"actor"`
}

func (e BagletsBulkTransitioned) EventName() string { return "cultivation.baglets.bulk_transitioned" }

// =============================================================================
// Observation Events
// =============================================================================

// MetricsRecorded is published after a metrics merge commits.
type MetricsRecorded struct {
	BaseEvent
	BagletID string `json:"bagletId"`
	Fields   int    `json:"fields"`
}

func (e MetricsRecorded) EventName() string { return "cultivation.baglet.metrics_recorded" }

// ContaminationRecorded is published after findings are stored.
type ContaminationRecorded struct {
	BaseEvent
	BagletID string   `json:"bagletId"`
	BatchID  string   `json:"batchId"`
	Codes    []string `json:"codes"`
	Actor    string   `json:"actor"`
}

func (e ContaminationRecorded) EventName() string { return "cultivation.baglet.contamination_recorded" }

// =============================================================================
// Catalog Events
// =============================================================================

// CatalogChanged is published after an admin upsert so caches can drop stale entries.
type CatalogChanged struct {
	BaseEvent
	Section string `json:"section"`
	Count   int    `json:"count"`
}

func (e CatalogChanged) EventName() string { return "catalog.changed" }
