package service

import (
	"context"
	"fmt"
	"strings"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/internal/cultivation/repository"
	"cultivation_backend/internal/events"
	"cultivation_backend/platform/apperr"
	"cultivation_backend/platform/sanitize"
)

// FindingInput is one coded observation.
type FindingInput struct {
	Code  string
	Notes string
}

// RecordFindingsInput attaches findings to a contaminated baglet.
type RecordFindingsInput struct {
	BagletID string
	Findings []FindingInput
	Actor    string
}

// RecordFindingsResult holds the stored findings and the status the baglet
// ended in. Transitioned is set when this call moved it to CRC_ANALYZED.
type RecordFindingsResult struct {
	Findings     []domain.ContaminationFinding
	Status       domain.Status
	Transitioned bool
}

// RecordFindings stores contamination findings. A CONTAMINATED baglet is
// moved to CRC_ANALYZED with an audit entry in the same unit of work; a
// baglet already at CRC_ANALYZED keeps its status.
func (s *Service) RecordFindings(ctx context.Context, in RecordFindingsInput) (RecordFindingsResult, error) {
	var err error
	if in.BagletID, err = requireID("baglet id", in.BagletID); err != nil {
		return RecordFindingsResult{}, err
	}
	if in.Actor, err = requireActor(in.Actor); err != nil {
		return RecordFindingsResult{}, err
	}
	if len(in.Findings) == 0 {
		return RecordFindingsResult{}, apperr.Validation("at least one finding is required")
	}
	codes := make([]string, len(in.Findings))
	for i := range in.Findings {
		f := &in.Findings[i]
		f.Code = strings.ToUpper(strings.TrimSpace(f.Code))
		f.Notes = sanitize.Notes(f.Notes)
		if f.Code == "" {
			return RecordFindingsResult{}, apperr.Validation(fmt.Sprintf("finding %d: code is required", i+1))
		}
		if f.Notes == "" {
			return RecordFindingsResult{}, apperr.Validation(fmt.Sprintf("finding %d: notes are required", i+1))
		}
		codes[i] = f.Code
	}

	var result RecordFindingsResult
	err = s.run(ctx, opRecordFindings, func(ctx context.Context) error {
		return s.repo.WithinTx(ctx, func(st repository.Store) error {
			baglet, err := st.LockBaglet(ctx, in.BagletID)
			if err != nil {
				return err
			}
			if baglet.CurrentStatus != domain.StatusContaminated && baglet.CurrentStatus != domain.StatusCRCAnalyzed {
				return apperr.InvalidTransition(baglet.CurrentStatus.String(), domain.StatusCRCAnalyzed.String())
			}

			missing, err := st.MissingContaminationCodes(ctx, codes)
			if err != nil {
				return err
			}
			if len(missing) > 0 {
				return apperr.InvalidReference("unknown contamination codes: " + strings.Join(missing, ", ")).
					WithDetails(map[string][]string{"codes": missing})
			}

			recordedAt := s.now().UTC()
			findings := make([]domain.ContaminationFinding, len(in.Findings))
			for i, f := range in.Findings {
				findings[i] = domain.ContaminationFinding{
					ID:         s.newID(),
					BagletID:   baglet.BagletID,
					BatchID:    baglet.BatchID,
					Code:       f.Code,
					Notes:      f.Notes,
					RecordedBy: in.Actor,
					RecordedAt: recordedAt,
				}
			}
			if err := st.InsertFindings(ctx, findings); err != nil {
				return err
			}

			result = RecordFindingsResult{Findings: findings, Status: baglet.CurrentStatus}
			if baglet.CurrentStatus != domain.StatusContaminated {
				return nil
			}

			if _, err := s.swapStatus(ctx, st, baglet.BagletID, domain.StatusContaminated, domain.StatusCRCAnalyzed); err != nil {
				return err
			}
			if err := st.AppendStatusLog(ctx, []repository.NewStatusLogEntry{
				s.logEntry(baglet.BagletID, baglet.BatchID, domain.StatusContaminated, domain.StatusCRCAnalyzed, "findings recorded", in.Actor),
			}); err != nil {
				return err
			}
			result.Status = domain.StatusCRCAnalyzed
			result.Transitioned = true
			return nil
		})
	})
	if err != nil {
		return RecordFindingsResult{}, err
	}

	if result.Transitioned {
		s.log.WithContext(ctx).StatusTransitioned(in.BagletID, domain.StatusContaminated.String(), domain.StatusCRCAnalyzed.String(), 1, in.Actor)
		s.publish(ctx, events.BagletStatusChanged{
			BaseEvent:      events.NewBaseEvent(),
			BagletID:       in.BagletID,
			BatchID:        result.Findings[0].BatchID,
			PreviousStatus: domain.StatusContaminated.String(),
			NewStatus:      domain.StatusCRCAnalyzed.String(),
			Actor:          in.Actor,
		})
	}
	s.publish(ctx, events.ContaminationRecorded{
		BaseEvent: events.NewBaseEvent(),
		BagletID:  in.BagletID,
		BatchID:   result.Findings[0].BatchID,
		Codes:     codes,
		Actor:     in.Actor,
	})
	return result, nil
}

// ListFindings returns the findings recorded on a baglet, oldest first.
func (s *Service) ListFindings(ctx context.Context, bagletID string) ([]domain.ContaminationFinding, error) {
	bagletID, err := requireID("baglet id", bagletID)
	if err != nil {
		return nil, err
	}

	var findings []domain.ContaminationFinding
	err = s.run(ctx, opRead, func(ctx context.Context) error {
		if _, err := s.liveBaglet(ctx, bagletID); err != nil {
			return err
		}
		var err error
		findings, err = s.repo.ListFindings(ctx, bagletID)
		return err
	})
	return findings, err
}
