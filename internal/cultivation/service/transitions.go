package service

import (
	"context"
	"fmt"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/internal/cultivation/repository"
	"cultivation_backend/internal/events"
	"cultivation_backend/platform/apperr"
	"cultivation_backend/platform/sanitize"
)

// TransitionInput moves one baglet. ExpectedStatus is the status the caller
// believes the baglet is in; the write only lands if that is still true.
type TransitionInput struct {
	BagletID       string
	ExpectedStatus domain.Status
	NewStatus      domain.Status
	Notes          string
	Actor          string
}

// TransitionResult reports the edge that was committed.
type TransitionResult struct {
	BagletID       string
	BatchID        string
	PreviousStatus domain.Status
	NewStatus      domain.Status
}

// BulkTransitionInput moves every live baglet of a batch at FromStatus.
type BulkTransitionInput struct {
	BatchID    string
	FromStatus domain.Status
	ToStatus   domain.Status
	Notes      string
	Actor      string
}

// BulkTransitionResult lists exactly the baglets that changed.
type BulkTransitionResult struct {
	UpdatedCount int
	BagletIDs    []string
}

// PrepareInput records preparation metrics and moves a PLANNED baglet to
// PREPARED.
type PrepareInput struct {
	BagletID string
	Metrics  domain.PartialMetrics
	Notes    string
	Actor    string
}

// ListAvailableTransitions returns the statuses reachable from status in one
// step. Terminal statuses yield an empty list.
func (s *Service) ListAvailableTransitions(status domain.Status) ([]domain.Status, error) {
	if !status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown status %d", status))
	}
	return domain.AvailableTransitions(status), nil
}

// TransitionBaglet applies one lifecycle edge and appends its audit entry.
func (s *Service) TransitionBaglet(ctx context.Context, in TransitionInput) (TransitionResult, error) {
	var err error
	if in.BagletID, err = requireID("baglet id", in.BagletID); err != nil {
		return TransitionResult{}, err
	}
	if in.Actor, err = requireActor(in.Actor); err != nil {
		return TransitionResult{}, err
	}
	if err := checkEdge(in.ExpectedStatus, in.NewStatus); err != nil {
		return TransitionResult{}, err
	}
	in.Notes = sanitize.Notes(in.Notes)

	var result TransitionResult
	err = s.run(ctx, opTransitionBaglet, func(ctx context.Context) error {
		return s.repo.WithinTx(ctx, func(st repository.Store) error {
			batchID, err := s.swapStatus(ctx, st, in.BagletID, in.ExpectedStatus, in.NewStatus)
			if err != nil {
				return err
			}
			if err := st.AppendStatusLog(ctx, []repository.NewStatusLogEntry{
				s.logEntry(in.BagletID, batchID, in.ExpectedStatus, in.NewStatus, in.Notes, in.Actor),
			}); err != nil {
				return err
			}
			result = TransitionResult{
				BagletID:       in.BagletID,
				BatchID:        batchID,
				PreviousStatus: in.ExpectedStatus,
				NewStatus:      in.NewStatus,
			}
			return nil
		})
	})
	if err != nil {
		return TransitionResult{}, err
	}

	s.log.WithContext(ctx).StatusTransitioned(result.BagletID, result.PreviousStatus.String(), result.NewStatus.String(), 1, in.Actor)
	s.publish(ctx, events.BagletStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		BagletID:       result.BagletID,
		BatchID:        result.BatchID,
		PreviousStatus: result.PreviousStatus.String(),
		NewStatus:      result.NewStatus.String(),
		Actor:          in.Actor,
	})
	return result, nil
}

// BulkTransition moves the whole cohort of a batch at FromStatus in one
// statement. The result and the audit rows cover exactly the baglets the
// statement changed.
func (s *Service) BulkTransition(ctx context.Context, in BulkTransitionInput) (BulkTransitionResult, error) {
	var err error
	if in.BatchID, err = requireID("batch id", in.BatchID); err != nil {
		return BulkTransitionResult{}, err
	}
	if in.Actor, err = requireActor(in.Actor); err != nil {
		return BulkTransitionResult{}, err
	}
	if err := checkEdge(in.FromStatus, in.ToStatus); err != nil {
		return BulkTransitionResult{}, err
	}
	in.Notes = sanitize.Notes(in.Notes)

	var ids []string
	err = s.run(ctx, opBulkTransition, func(ctx context.Context) error {
		return s.repo.WithinTx(ctx, func(st repository.Store) error {
			if _, err := st.LockBatch(ctx, in.BatchID); err != nil {
				return err
			}

			claimed, err := st.ClaimCohort(ctx, repository.CohortParams{
				BatchID: in.BatchID,
				From:    in.FromStatus,
				To:      in.ToStatus,
			})
			if err != nil {
				return err
			}
			if len(claimed) == 0 {
				return apperr.NoEligibleBaglets(fmt.Sprintf("no baglets in batch %s are %s", in.BatchID, in.FromStatus))
			}

			entries := make([]repository.NewStatusLogEntry, len(claimed))
			for i, id := range claimed {
				entries[i] = s.logEntry(id, in.BatchID, in.FromStatus, in.ToStatus, in.Notes, in.Actor)
			}
			if err := st.AppendStatusLog(ctx, entries); err != nil {
				return err
			}
			ids = claimed
			return nil
		})
	})
	if err != nil {
		return BulkTransitionResult{}, err
	}

	s.log.WithContext(ctx).StatusTransitioned(in.BatchID, in.FromStatus.String(), in.ToStatus.String(), len(ids), in.Actor)
	s.publish(ctx, events.BagletsBulkTransitioned{
		BaseEvent:  events.NewBaseEvent(),
		BatchID:    in.BatchID,
		FromStatus: in.FromStatus.String(),
		ToStatus:   in.ToStatus.String(),
		BagletIDs:  ids,
		Actor:      in.Actor,
	})
	return BulkTransitionResult{UpdatedCount: len(ids), BagletIDs: ids}, nil
}

// PrepareBaglet moves a PLANNED baglet to PREPARED and records any supplied
// preparation metrics in the same unit of work.
func (s *Service) PrepareBaglet(ctx context.Context, in PrepareInput) (domain.Baglet, error) {
	var err error
	if in.BagletID, err = requireID("baglet id", in.BagletID); err != nil {
		return domain.Baglet{}, err
	}
	if in.Actor, err = requireActor(in.Actor); err != nil {
		return domain.Baglet{}, err
	}
	if err := in.Metrics.Validate(); err != nil {
		return domain.Baglet{}, apperr.Validation(err.Error())
	}
	in.Notes = sanitize.Notes(in.Notes)

	var baglet domain.Baglet
	err = s.run(ctx, opPrepareBaglet, func(ctx context.Context) error {
		return s.repo.WithinTx(ctx, func(st repository.Store) error {
			batchID, err := s.swapStatus(ctx, st, in.BagletID, domain.StatusPlanned, domain.StatusPrepared)
			if err != nil {
				return err
			}
			if !in.Metrics.IsEmpty() {
				if _, err := st.MergeMetrics(ctx, in.BagletID, in.Metrics); err != nil {
					return err
				}
			}
			if err := st.AppendStatusLog(ctx, []repository.NewStatusLogEntry{
				s.logEntry(in.BagletID, batchID, domain.StatusPlanned, domain.StatusPrepared, in.Notes, in.Actor),
			}); err != nil {
				return err
			}
			baglet, err = st.GetBaglet(ctx, in.BagletID)
			return err
		})
	})
	if err != nil {
		return domain.Baglet{}, err
	}

	s.log.WithContext(ctx).StatusTransitioned(in.BagletID, domain.StatusPlanned.String(), domain.StatusPrepared.String(), 1, in.Actor)
	s.publish(ctx, events.BagletStatusChanged{
		BaseEvent:      events.NewBaseEvent(),
		BagletID:       baglet.BagletID,
		BatchID:        baglet.BatchID,
		PreviousStatus: domain.StatusPlanned.String(),
		NewStatus:      domain.StatusPrepared.String(),
		Actor:          in.Actor,
	})
	return baglet, nil
}

// swapStatus performs the conditional write and, when it misses, works out
// whether the baglet is gone or has moved on.
func (s *Service) swapStatus(ctx context.Context, st repository.Store, bagletID string, expected, next domain.Status) (string, error) {
	batchID, ok, err := st.CompareAndSwapStatus(ctx, repository.CASParams{
		BagletID: bagletID,
		Expected: expected,
		Next:     next,
	})
	if err != nil {
		return "", err
	}
	if ok {
		return batchID, nil
	}

	current, err := st.GetBaglet(ctx, bagletID)
	if err != nil {
		return "", err
	}
	if current.IsDeleted {
		return "", apperr.NotFound("baglet not found")
	}
	return "", apperr.InvalidTransition(current.CurrentStatus.String(), next.String())
}

func (s *Service) logEntry(bagletID, batchID string, from, to domain.Status, notes, actor string) repository.NewStatusLogEntry {
	prev := from
	return repository.NewStatusLogEntry{
		ID:             s.newID(),
		BagletID:       bagletID,
		BatchID:        batchID,
		PreviousStatus: &prev,
		Status:         to,
		Notes:          notes,
		Actor:          actor,
	}
}

func checkEdge(from, to domain.Status) error {
	if !from.Valid() || !to.Valid() {
		return apperr.Validation("unknown status")
	}
	// NONE -> PLANNED only happens through provisioning.
	if from == domain.StatusNone || !domain.ValidateTransition(from, to) {
		return apperr.InvalidTransition(from.String(), to.String())
	}
	return nil
}
