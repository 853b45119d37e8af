// Package service implements the cultivation engine: batch provisioning,
// lifecycle transitions with their audit trail, metrics merges and
// contamination findings. Every public operation is one unit of work that
// either commits fully or returns exactly one apperr kind.
package service

import (
	"context"
	"strings"
	"time"

	"cultivation_backend/internal/cultivation/repository"
	"cultivation_backend/internal/events"
	"cultivation_backend/platform/apperr"
	"cultivation_backend/platform/config"
	"cultivation_backend/platform/logger"
	"cultivation_backend/platform/validator"

	"github.com/google/uuid"
)

// Operation names used in logs and metrics.
const (
	opProvisionBatch   = "provision_batch"
	opTransitionBaglet = "transition_baglet"
	opBulkTransition   = "bulk_transition"
	opPrepareBaglet    = "prepare_baglet"
	opMergeMetrics     = "merge_metrics"
	opRecordFindings   = "record_findings"
	opSoftDeleteBatch  = "soft_delete_batch"
	opRead             = "read"
)

// OperationObserver receives the outcome of every engine operation. kind is
// empty on success.
type OperationObserver interface {
	ObserveOperation(operation string, started time.Time, kind string)
}

// Service is the cultivation engine.
type Service struct {
	repo     repository.Repository
	bus      events.Bus
	val      *validator.Validator
	cfg      config.CultivationConfig
	log      *logger.Logger
	observer OperationObserver
	now      func() time.Time
	newID    func() uuid.UUID
}

// Option customizes a Service.
type Option func(*Service)

// WithObserver reports operation latency and failures.
func WithObserver(o OperationObserver) Option {
	return func(s *Service) { s.observer = o }
}

// WithClock replaces time.Now, used for the default prepared date and
// finding timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces uuid.New for audit and finding ids.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *Service) { s.newID = gen }
}

// New creates the cultivation service.
func New(repo repository.Repository, bus events.Bus, val *validator.Validator, cfg config.CultivationConfig, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		repo:  repo,
		bus:   bus,
		val:   val,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	return s
}

// run bounds fn by the operation timeout and folds any untyped error into
// a storage failure, so callers always see a single taxonomy kind.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GetOperationTimeout())
	defer cancel()

	err := apperr.AsStorage(op, fn(ctx))

	kind := ""
	if err != nil {
		kind = apperr.GetKind(err).String()
		if apperr.Is(err, apperr.KindStorage) {
			s.log.WithContext(ctx).DatabaseError(op, err)
		}
	}
	if s.observer != nil {
		s.observer.ObserveOperation(op, started, kind)
	}
	return err
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, event)
	}
}

func requireActor(actor string) (string, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "", apperr.Validation("actor is required")
	}
	return actor, nil
}

func requireID(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperr.Validation(name + " is required")
	}
	return value, nil
}
