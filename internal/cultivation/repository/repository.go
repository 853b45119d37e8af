// Package repository persists batches, baglets, status history and
// contamination findings in PostgreSQL.
package repository

import (
	"context"
	"time"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/platform/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	batchNotFoundMessage  = "batch not found"
	bagletNotFoundMessage = "baglet not found"
)

// Store is the write surface available inside a unit of work. Every method
// runs on the same transaction; nothing is visible to other callers until
// WithinTx returns nil.
type Store interface {
	GetStrain(ctx context.Context, strainCode string) (domain.Strain, error)
	GetSubstrateRecipe(ctx context.Context, substrateID string) (domain.SubstrateRecipe, error)

	LockBatchScope(ctx context.Context, farmID string, preparedDate time.Time) error
	NextBatchSequence(ctx context.Context, farmID string, preparedDate time.Time) (int, error)
	InsertBatch(ctx context.Context, batch domain.Batch) (time.Time, error)
	InsertBaglets(ctx context.Context, baglets []NewBaglet) error
	AppendStatusLog(ctx context.Context, entries []NewStatusLogEntry) error

	LockBatch(ctx context.Context, batchID string) (domain.Batch, error)
	GetBaglet(ctx context.Context, bagletID string) (domain.Baglet, error)
	LockBaglet(ctx context.Context, bagletID string) (domain.Baglet, error)
	CompareAndSwapStatus(ctx context.Context, params CASParams) (string, bool, error)
	ClaimCohort(ctx context.Context, params CohortParams) ([]string, error)
	MergeMetrics(ctx context.Context, bagletID string, patch domain.PartialMetrics) (domain.ObservedMetrics, error)

	MissingContaminationCodes(ctx context.Context, codes []string) ([]string, error)
	InsertFindings(ctx context.Context, findings []domain.ContaminationFinding) error
}

// Reader is the read side, served straight from the pool.
type Reader interface {
	GetBatch(ctx context.Context, batchID string) (domain.Batch, error)
	ListBatches(ctx context.Context, params ListBatchesParams) ([]domain.Batch, int, error)
	GetBaglet(ctx context.Context, bagletID string) (domain.Baglet, error)
	ListBaglets(ctx context.Context, batchID string) ([]domain.Baglet, error)
	ListStatusHistory(ctx context.Context, bagletID string) ([]domain.StatusLogEntry, error)
	StatusCounts(ctx context.Context, batchID string) (domain.StatusCounts, error)
	ListFindings(ctx context.Context, bagletID string) ([]domain.ContaminationFinding, error)
}

// Repository is the full persistence contract the services depend on.
type Repository interface {
	Reader
	WithinTx(ctx context.Context, fn func(Store) error) error
	SoftDeleteBatch(ctx context.Context, batchID string) (int, error)
}

// NewBaglet is a baglet row written at provisioning.
type NewBaglet struct {
	BagletID       string
	BatchID        string
	BagletSequence int
	Status         domain.Status
}

// NewStatusLogEntry is one audit row to append.
type NewStatusLogEntry struct {
	ID             uuid.UUID
	BagletID       string
	BatchID        string
	PreviousStatus *domain.Status
	Status         domain.Status
	Notes          string
	Actor          string
}

// CASParams conditions a single baglet status write on its current value.
type CASParams struct {
	BagletID string
	Expected domain.Status
	Next     domain.Status
}

// CohortParams selects every live baglet of a batch at From and moves it to To.
type CohortParams struct {
	BatchID string
	From    domain.Status
	To      domain.Status
}

// ListBatchesParams filters the batch listing. Zero values mean "any".
type ListBatchesParams struct {
	FarmID       string
	PreparedDate *time.Time
	Limit        int
	Offset       int
}

// Repo implements Repository over a pgx pool.
type Repo struct {
	queries
	pool db.Pool
}

// New creates a new cultivation repository.
func New(pool db.Pool) *Repo {
	return &Repo{queries: queries{q: pool}, pool: pool}
}

// Compile-time checks.
var (
	_ Repository = (*Repo)(nil)
	_ Store      = (*queries)(nil)
)

// WithinTx runs fn as one unit of work at read committed. Sequence
// allocation relies on LockBatchScope and status writes are conditional.
func (r *Repo) WithinTx(ctx context.Context, fn func(Store) error) error {
	return db.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&queries{q: tx})
	})
}

// queries holds every statement; it runs against either the pool or a tx.
type queries struct {
	q db.Querier
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func statusName(s *domain.Status) *string {
	if s == nil {
		return nil
	}
	name := s.String()
	return &name
}
