package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/internal/cultivation/repository"
	"cultivation_backend/internal/events"
	"cultivation_backend/platform/apperr"
)

// ProvisionInput describes a new batch. Empty FarmID and zero PreparedDate
// take the configured farm and today's date in the farm's timezone.
type ProvisionInput struct {
	FarmID       string
	PreparedDate time.Time
	StrainCode   string
	SubstrateID  string
	BagletCount  int
	CreatedBy    string
}

// ProvisionResult is everything created by one provisioning run.
type ProvisionResult struct {
	Batch     domain.Batch
	BagletIDs []string
	Recipe    domain.RecipeBreakdown
}

// ProvisionBatch creates one batch and its baglets, all PLANNED with their
// creation log entries, or nothing at all.
func (s *Service) ProvisionBatch(ctx context.Context, in ProvisionInput) (ProvisionResult, error) {
	in, err := s.normalizeProvision(in)
	if err != nil {
		return ProvisionResult{}, err
	}

	var result ProvisionResult
	err = s.run(ctx, opProvisionBatch, func(ctx context.Context) error {
		return s.repo.WithinTx(ctx, func(st repository.Store) error {
			strain, err := st.GetStrain(ctx, in.StrainCode)
			if err != nil {
				return err
			}
			recipe, err := st.GetSubstrateRecipe(ctx, in.SubstrateID)
			if err != nil {
				return err
			}

			if err := st.LockBatchScope(ctx, in.FarmID, in.PreparedDate); err != nil {
				return err
			}
			seq, err := st.NextBatchSequence(ctx, in.FarmID, in.PreparedDate)
			if err != nil {
				return err
			}

			batch := domain.Batch{
				BatchID:            domain.FormatBatchID(in.FarmID, in.PreparedDate, seq),
				FarmID:             in.FarmID,
				PreparedDate:       in.PreparedDate,
				BatchSequence:      seq,
				StrainCode:         strain.StrainCode,
				SubstrateID:        recipe.SubstrateID,
				PlannedBagletCount: in.BagletCount,
				CreatedBy:          in.CreatedBy,
			}
			if batch.CreatedAt, err = st.InsertBatch(ctx, batch); err != nil {
				return err
			}

			baglets := make([]repository.NewBaglet, in.BagletCount)
			logs := make([]repository.NewStatusLogEntry, in.BagletCount)
			ids := make([]string, in.BagletCount)
			for i := range baglets {
				seq := i + 1
				id := domain.FormatBagletID(batch.BatchID, strain.StrainCode, strain.StrainVendorID, recipe.SubstrateID, seq)
				ids[i] = id
				baglets[i] = repository.NewBaglet{
					BagletID:       id,
					BatchID:        batch.BatchID,
					BagletSequence: seq,
					Status:         domain.InitialStatus,
				}
				logs[i] = repository.NewStatusLogEntry{
					ID:       s.newID(),
					BagletID: id,
					BatchID:  batch.BatchID,
					Status:   domain.InitialStatus,
					Actor:    in.CreatedBy,
				}
			}
			if err := st.InsertBaglets(ctx, baglets); err != nil {
				return err
			}
			if err := st.AppendStatusLog(ctx, logs); err != nil {
				return err
			}

			result = ProvisionResult{
				Batch:     batch,
				BagletIDs: ids,
				Recipe:    domain.ScaleRecipe(recipe, in.BagletCount),
			}
			return nil
		})
	})
	if err != nil {
		return ProvisionResult{}, err
	}

	s.log.WithContext(ctx).BatchProvisioned(result.Batch.BatchID, result.Batch.FarmID, len(result.BagletIDs), in.CreatedBy)
	s.publish(ctx, events.BatchProvisioned{
		BaseEvent:   events.NewBaseEvent(),
		BatchID:     result.Batch.BatchID,
		FarmID:      result.Batch.FarmID,
		StrainCode:  result.Batch.StrainCode,
		SubstrateID: result.Batch.SubstrateID,
		BagletIDs:   result.BagletIDs,
		CreatedBy:   in.CreatedBy,
	})
	return result, nil
}

func (s *Service) normalizeProvision(in ProvisionInput) (ProvisionInput, error) {
	in.FarmID = strings.ToUpper(strings.TrimSpace(in.FarmID))
	if in.FarmID == "" {
		in.FarmID = s.cfg.GetDefaultFarmID()
	}
	if err := s.val.Var(in.FarmID, "farmid"); err != nil {
		return in, apperr.Validation(fmt.Sprintf("invalid farm id %q", in.FarmID))
	}

	if in.PreparedDate.IsZero() {
		in.PreparedDate = domain.DateOnly(s.now().In(s.cfg.GetFarmLocation()))
	} else {
		in.PreparedDate = domain.DateOnly(in.PreparedDate)
	}

	in.StrainCode = strings.TrimSpace(in.StrainCode)
	in.SubstrateID = strings.TrimSpace(in.SubstrateID)
	if in.StrainCode == "" {
		return in, apperr.Validation("strain code is required")
	}
	if in.SubstrateID == "" {
		return in, apperr.Validation("substrate id is required")
	}

	if max := s.cfg.GetMaxBagletsPerBatch(); in.BagletCount < 1 || in.BagletCount > max {
		return in, apperr.Validation(fmt.Sprintf("baglet count must be between 1 and %d", max))
	}

	in.CreatedBy = strings.TrimSpace(in.CreatedBy)
	if err := s.val.Var(in.CreatedBy, "required,email"); err != nil {
		return in, apperr.Validation("creator must be a valid email address")
	}
	return in, nil
}
