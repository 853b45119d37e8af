package service

import (
	"context"
	"time"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/internal/cultivation/repository"
	"cultivation_backend/internal/events"
	"cultivation_backend/platform/apperr"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// BatchView is a batch with its live status counts and derived status.
type BatchView struct {
	Batch         domain.Batch
	StatusCounts  domain.StatusCounts
	DerivedStatus string
}

// ListBatchesInput filters and pages the batch listing.
type ListBatchesInput struct {
	FarmID       string
	PreparedDate *time.Time
	Page         int
	PageSize     int
}

// BatchPage is one page of batches.
type BatchPage struct {
	Items    []domain.Batch
	Total    int
	Page     int
	PageSize int
}

// GetBatch returns a live batch with its status summary.
func (s *Service) GetBatch(ctx context.Context, batchID string) (BatchView, error) {
	batchID, err := requireID("batch id", batchID)
	if err != nil {
		return BatchView{}, err
	}

	var view BatchView
	err = s.run(ctx, opRead, func(ctx context.Context) error {
		batch, err := s.liveBatch(ctx, batchID)
		if err != nil {
			return err
		}
		counts, err := s.repo.StatusCounts(ctx, batchID)
		if err != nil {
			return err
		}
		view = BatchView{Batch: batch, StatusCounts: counts, DerivedStatus: domain.DeriveBatchStatus(counts)}
		return nil
	})
	return view, err
}

// ListBatches lists live batches, newest prepared date first.
func (s *Service) ListBatches(ctx context.Context, in ListBatchesInput) (BatchPage, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.PageSize < 1 {
		in.PageSize = defaultPageSize
	}
	if in.PageSize > maxPageSize {
		in.PageSize = maxPageSize
	}
	if in.PreparedDate != nil {
		d := domain.DateOnly(*in.PreparedDate)
		in.PreparedDate = &d
	}

	page := BatchPage{Page: in.Page, PageSize: in.PageSize}
	err := s.run(ctx, opRead, func(ctx context.Context) error {
		items, total, err := s.repo.ListBatches(ctx, repository.ListBatchesParams{
			FarmID:       in.FarmID,
			PreparedDate: in.PreparedDate,
			Limit:        in.PageSize,
			Offset:       (in.Page - 1) * in.PageSize,
		})
		if err != nil {
			return err
		}
		page.Items, page.Total = items, total
		return nil
	})
	return page, err
}

// GetBaglet returns a live baglet.
func (s *Service) GetBaglet(ctx context.Context, bagletID string) (domain.Baglet, error) {
	bagletID, err := requireID("baglet id", bagletID)
	if err != nil {
		return domain.Baglet{}, err
	}

	var baglet domain.Baglet
	err = s.run(ctx, opRead, func(ctx context.Context) error {
		var err error
		baglet, err = s.liveBaglet(ctx, bagletID)
		return err
	})
	return baglet, err
}

// ListBaglets lists the live baglets of a live batch in sequence order.
func (s *Service) ListBaglets(ctx context.Context, batchID string) ([]domain.Baglet, error) {
	batchID, err := requireID("batch id", batchID)
	if err != nil {
		return nil, err
	}

	var baglets []domain.Baglet
	err = s.run(ctx, opRead, func(ctx context.Context) error {
		if _, err := s.liveBatch(ctx, batchID); err != nil {
			return err
		}
		var err error
		baglets, err = s.repo.ListBaglets(ctx, batchID)
		return err
	})
	return baglets, err
}

// ListStatusHistory returns a baglet's audit trail in append order.
func (s *Service) ListStatusHistory(ctx context.Context, bagletID string) ([]domain.StatusLogEntry, error) {
	bagletID, err := requireID("baglet id", bagletID)
	if err != nil {
		return nil, err
	}

	var entries []domain.StatusLogEntry
	err = s.run(ctx, opRead, func(ctx context.Context) error {
		if _, err := s.liveBaglet(ctx, bagletID); err != nil {
			return err
		}
		var err error
		entries, err = s.repo.ListStatusHistory(ctx, bagletID)
		return err
	})
	return entries, err
}

// GetStatusCounts returns the live baglet count per status for a batch.
func (s *Service) GetStatusCounts(ctx context.Context, batchID string) (domain.StatusCounts, error) {
	batchID, err := requireID("batch id", batchID)
	if err != nil {
		return nil, err
	}

	var counts domain.StatusCounts
	err = s.run(ctx, opRead, func(ctx context.Context) error {
		if _, err := s.liveBatch(ctx, batchID); err != nil {
			return err
		}
		var err error
		counts, err = s.repo.StatusCounts(ctx, batchID)
		return err
	})
	return counts, err
}

// SoftDeleteBatch hides a batch and its baglets from every read and write.
// Statuses and history are left as they are.
func (s *Service) SoftDeleteBatch(ctx context.Context, batchID, actor string) (int, error) {
	batchID, err := requireID("batch id", batchID)
	if err != nil {
		return 0, err
	}
	if actor, err = requireActor(actor); err != nil {
		return 0, err
	}

	var flagged int
	err = s.run(ctx, opSoftDeleteBatch, func(ctx context.Context) error {
		var err error
		flagged, err = s.repo.SoftDeleteBatch(ctx, batchID)
		return err
	})
	if err != nil {
		return 0, err
	}

	s.log.WithContext(ctx).Info("batch soft-deleted", "batchId", batchID, "baglets", flagged, "actor", actor)
	s.publish(ctx, events.BatchSoftDeleted{
		BaseEvent:      events.NewBaseEvent(),
		BatchID:        batchID,
		BagletsFlagged: flagged,
		Actor:          actor,
	})
	return flagged, nil
}

func (s *Service) liveBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return domain.Batch{}, err
	}
	if batch.IsDeleted {
		return domain.Batch{}, apperr.NotFound("batch not found")
	}
	return batch, nil
}

func (s *Service) liveBaglet(ctx context.Context, bagletID string) (domain.Baglet, error) {
	baglet, err := s.repo.GetBaglet(ctx, bagletID)
	if err != nil {
		return domain.Baglet{}, err
	}
	if baglet.IsDeleted {
		return domain.Baglet{}, apperr.NotFound("baglet not found")
	}
	return baglet, nil
}
