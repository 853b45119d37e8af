package repository

import (
	"context"

	"cultivation_backend/internal/cultivation/domain"
)

// Substrate is a catalog substrate with its ordered per-baglet recipe.
type Substrate struct {
	SubstrateID string                  `json:"substrateId"`
	Name        string                  `json:"name"`
	IsActive    bool                    `json:"isActive"`
	Mediums     []domain.MediumLine     `json:"mediums"`
	Supplements []domain.SupplementLine `json:"supplements"`
}

// Recipe returns the substrate's recipe view.
func (s Substrate) Recipe() domain.SubstrateRecipe {
	return domain.SubstrateRecipe{
		SubstrateID: s.SubstrateID,
		Mediums:     s.Mediums,
		Supplements: s.Supplements,
	}
}

// Repository defines the catalog persistence contract. Reads skip inactive
// rows unless asked otherwise; upserts replace whole entries.
type Repository interface {
	ListStrains(ctx context.Context, includeInactive bool) ([]domain.Strain, error)
	ListSubstrates(ctx context.Context, includeInactive bool) ([]Substrate, error)
	GetSubstrate(ctx context.Context, substrateID string) (Substrate, error)
	ListContaminationCodes(ctx context.Context, includeInactive bool) ([]domain.ContaminationCode, error)

	UpsertStrains(ctx context.Context, strains []domain.Strain) error
	UpsertSubstrates(ctx context.Context, substrates []Substrate) error
	UpsertContaminationCodes(ctx context.Context, codes []domain.ContaminationCode) error
}
