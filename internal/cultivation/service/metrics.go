package service

import (
	"context"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/internal/cultivation/repository"
	"cultivation_backend/internal/events"
	"cultivation_backend/platform/apperr"
)

// MergeMetrics overwrites only the supplied metric fields of a live baglet
// and returns the merged result.
func (s *Service) MergeMetrics(ctx context.Context, bagletID string, patch domain.PartialMetrics) (domain.ObservedMetrics, error) {
	bagletID, err := requireID("baglet id", bagletID)
	if err != nil {
		return domain.ObservedMetrics{}, err
	}
	if patch.IsEmpty() {
		return domain.ObservedMetrics{}, apperr.Validation("at least one metric is required")
	}
	if err := patch.Validate(); err != nil {
		return domain.ObservedMetrics{}, apperr.Validation(err.Error())
	}

	var merged domain.ObservedMetrics
	err = s.run(ctx, opMergeMetrics, func(ctx context.Context) error {
		return s.repo.WithinTx(ctx, func(st repository.Store) error {
			var err error
			merged, err = st.MergeMetrics(ctx, bagletID, patch)
			return err
		})
	})
	if err != nil {
		return domain.ObservedMetrics{}, err
	}

	s.publish(ctx, events.MetricsRecorded{
		BaseEvent: events.NewBaseEvent(),
		BagletID:  bagletID,
		Fields:    suppliedFields(patch),
	})
	return merged, nil
}

func suppliedFields(p domain.PartialMetrics) int {
	n := 0
	for _, v := range []*float64{p.WeightG, p.TemperatureC, p.HumidityPct, p.PH} {
		if v != nil {
			n++
		}
	}
	return n
}
