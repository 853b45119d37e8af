package repository

import (
	"context"
	"errors"
	"fmt"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
)

// GetStrain resolves an active strain. The row is share-locked so it cannot
// be deactivated while a batch referencing it is being written.
func (s *queries) GetStrain(ctx context.Context, strainCode string) (domain.Strain, error) {
	query := `
		SELECT strain_code, strain_vendor_id, species, COALESCE(vendor_name, ''), is_active
		FROM strains
		WHERE strain_code = $1 AND is_active
		FOR SHARE`

	var strain domain.Strain
	if err := s.q.QueryRow(ctx, query, strainCode).Scan(
		&strain.StrainCode, &strain.StrainVendorID, &strain.Species, &strain.VendorName, &strain.IsActive,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Strain{}, apperr.InvalidReference(fmt.Sprintf("unknown strain %q", strainCode))
		}
		return domain.Strain{}, fmt.Errorf("get strain: %w", err)
	}
	return strain, nil
}

// GetSubstrateRecipe resolves an active substrate together with its ordered
// mediums and supplements.
func (s *queries) GetSubstrateRecipe(ctx context.Context, substrateID string) (domain.SubstrateRecipe, error) {
	var id string
	err := s.q.QueryRow(ctx, `
		SELECT substrate_id FROM substrates
		WHERE substrate_id = $1 AND is_active
		FOR SHARE`, substrateID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SubstrateRecipe{}, apperr.InvalidReference(fmt.Sprintf("unknown substrate %q", substrateID))
		}
		return domain.SubstrateRecipe{}, fmt.Errorf("get substrate: %w", err)
	}

	recipe := domain.SubstrateRecipe{
		SubstrateID: id,
		Mediums:     []domain.MediumLine{},
		Supplements: []domain.SupplementLine{},
	}

	rows, err := s.q.Query(ctx, `
		SELECT medium_id, medium_name, qty_g
		FROM substrate_mediums
		WHERE substrate_id = $1
		ORDER BY position`, id)
	if err != nil {
		return domain.SubstrateRecipe{}, fmt.Errorf("list substrate mediums: %w", err)
	}
	for rows.Next() {
		var m domain.MediumLine
		if err := rows.Scan(&m.MediumID, &m.MediumName, &m.QtyG); err != nil {
			rows.Close()
			return domain.SubstrateRecipe{}, fmt.Errorf("scan substrate medium: %w", err)
		}
		recipe.Mediums = append(recipe.Mediums, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return domain.SubstrateRecipe{}, fmt.Errorf("iterate substrate mediums: %w", err)
	}

	rows, err = s.q.Query(ctx, `
		SELECT supplement_id, supplement_name, qty, unit
		FROM substrate_supplements
		WHERE substrate_id = $1
		ORDER BY position`, id)
	if err != nil {
		return domain.SubstrateRecipe{}, fmt.Errorf("list substrate supplements: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sp domain.SupplementLine
		if err := rows.Scan(&sp.SupplementID, &sp.SupplementName, &sp.Qty, &sp.Unit); err != nil {
			return domain.SubstrateRecipe{}, fmt.Errorf("scan substrate supplement: %w", err)
		}
		recipe.Supplements = append(recipe.Supplements, sp)
	}
	if err := rows.Err(); err != nil {
		return domain.SubstrateRecipe{}, fmt.Errorf("iterate substrate supplements: %w", err)
	}

	return recipe, nil
}

// MissingContaminationCodes returns the codes that are not active catalog
// entries, in input order.
func (s *queries) MissingContaminationCodes(ctx context.Context, codes []string) ([]string, error) {
	rows, err := s.q.Query(ctx, `
		SELECT code FROM contamination_codes
		WHERE code = ANY($1) AND is_active`, codes)
	if err != nil {
		return nil, fmt.Errorf("check contamination codes: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool, len(codes))
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan contamination code: %w", err)
		}
		known[code] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contamination codes: %w", err)
	}

	var missing []string
	for _, code := range codes {
		if !known[code] {
			missing = append(missing, code)
		}
	}
	return missing, nil
}
