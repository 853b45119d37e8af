// Package repository persists the reference catalog: strains, substrates
// with their recipes, and contamination codes.
package repository

import (
	"context"
	"errors"
	"fmt"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/platform/apperr"
	"cultivation_backend/platform/db"

	"github.com/jackc/pgx/v5"
)

const substrateNotFoundMessage = "substrate not found"

// Repo implements the catalog repository.
type Repo struct {
	pool db.Pool
}

// New creates a new catalog repository.
func New(pool db.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// ListStrains lists strains ordered by code.
func (r *Repo) ListStrains(ctx context.Context, includeInactive bool) ([]domain.Strain, error) {
	query := `
		SELECT strain_code, strain_vendor_id, species, COALESCE(vendor_name, ''), is_active
		FROM strains
		WHERE is_active OR $1
		ORDER BY strain_code`

	rows, err := r.pool.Query(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list strains: %w", err)
	}
	defer rows.Close()

	strains := make([]domain.Strain, 0)
	for rows.Next() {
		var s domain.Strain
		if err := rows.Scan(&s.StrainCode, &s.StrainVendorID, &s.Species, &s.VendorName, &s.IsActive); err != nil {
			return nil, fmt.Errorf("scan strain: %w", err)
		}
		strains = append(strains, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strains: %w", err)
	}
	return strains, nil
}

// ListSubstrates lists substrate headers ordered by id. Recipes are not
// loaded; use GetSubstrate for those.
func (r *Repo) ListSubstrates(ctx context.Context, includeInactive bool) ([]Substrate, error) {
	query := `
		SELECT substrate_id, name, is_active
		FROM substrates
		WHERE is_active OR $1
		ORDER BY substrate_id`

	rows, err := r.pool.Query(ctx, query, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list substrates: %w", err)
	}
	defer rows.Close()

	substrates := make([]Substrate, 0)
	for rows.Next() {
		var s Substrate
		if err := rows.Scan(&s.SubstrateID, &s.Name, &s.IsActive); err != nil {
			return nil, fmt.Errorf("scan substrate: %w", err)
		}
		substrates = append(substrates, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate substrates: %w", err)
	}
	return substrates, nil
}

// GetSubstrate loads a substrate with its recipe lines in position order.
func (r *Repo) GetSubstrate(ctx context.Context, substrateID string) (Substrate, error) {
	var s Substrate
	err := r.pool.QueryRow(ctx, `
		SELECT substrate_id, name, is_active FROM substrates WHERE substrate_id = $1`, substrateID,
	).Scan(&s.SubstrateID, &s.Name, &s.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Substrate{}, apperr.NotFound(substrateNotFoundMessage)
		}
		return Substrate{}, fmt.Errorf("get substrate: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT medium_id, medium_name, qty_g
		FROM substrate_mediums
		WHERE substrate_id = $1
		ORDER BY position`, substrateID)
	if err != nil {
		return Substrate{}, fmt.Errorf("list substrate mediums: %w", err)
	}
	mediums, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.MediumLine, error) {
		var m domain.MediumLine
		err := row.Scan(&m.MediumID, &m.MediumName, &m.QtyG)
		return m, err
	})
	if err != nil {
		return Substrate{}, fmt.Errorf("scan substrate mediums: %w", err)
	}

	rows, err = r.pool.Query(ctx, `
		SELECT supplement_id, supplement_name, qty, unit
		FROM substrate_supplements
		WHERE substrate_id = $1
		ORDER BY position`, substrateID)
	if err != nil {
		return Substrate{}, fmt.Errorf("list substrate supplements: %w", err)
	}
	supplements, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SupplementLine, error) {
		var sp domain.SupplementLine
		err := row.Scan(&sp.SupplementID, &sp.SupplementName, &sp.Qty, &sp.Unit)
		return sp, err
	})
	if err != nil {
		return Substrate{}, fmt.Errorf("scan substrate supplements: %w", err)
	}

	s.Mediums, s.Supplements = mediums, supplements
	return s, nil
}

// ListContaminationCodes lists contamination codes ordered by code.
func (r *Repo) ListContaminationCodes(ctx context.Context, includeInactive bool) ([]domain.ContaminationCode, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT code, description, is_active
		FROM contamination_codes
		WHERE is_active OR $1
		ORDER BY code`, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("list contamination codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ContaminationCode, error) {
		var c domain.ContaminationCode
		err := row.Scan(&c.Code, &c.Description, &c.IsActive)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan contamination codes: %w", err)
	}
	return codes, nil
}

// UpsertStrains inserts or replaces strains in one transaction.
func (r *Repo) UpsertStrains(ctx context.Context, strains []domain.Strain) error {
	query := `
		INSERT INTO strains (strain_code, strain_vendor_id, species, vendor_name, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (strain_code) DO UPDATE
		SET strain_vendor_id = EXCLUDED.strain_vendor_id,
			species = EXCLUDED.species,
			vendor_name = EXCLUDED.vendor_name,
			is_active = EXCLUDED.is_active`

	return db.WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, s := range strains {
			if _, err := tx.Exec(ctx, query, s.StrainCode, s.StrainVendorID, s.Species, nullIfEmpty(s.VendorName), s.IsActive); err != nil {
				return fmt.Errorf("upsert strain %s: %w", s.StrainCode, err)
			}
		}
		return nil
	})
}

// UpsertSubstrates inserts or replaces substrates. Recipe lines are
// rewritten wholesale so positions always match the supplied order.
func (r *Repo) UpsertSubstrates(ctx context.Context, substrates []Substrate) error {
	return db.WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, s := range substrates {
			if _, err := tx.Exec(ctx, `
				INSERT INTO substrates (substrate_id, name, is_active)
				VALUES ($1, $2, $3)
				ON CONFLICT (substrate_id) DO UPDATE
				SET name = EXCLUDED.name, is_active = EXCLUDED.is_active`,
				s.SubstrateID, s.Name, s.IsActive,
			); err != nil {
				return fmt.Errorf("upsert substrate %s: %w", s.SubstrateID, err)
			}
			if _, err := tx.Exec(ctx, `DELETE FROM substrate_mediums WHERE substrate_id = $1`, s.SubstrateID); err != nil {
				return fmt.Errorf("clear substrate mediums: %w", err)
			}
			if _, err := tx.Exec(ctx, `DELETE FROM substrate_supplements WHERE substrate_id = $1`, s.SubstrateID); err != nil {
				return fmt.Errorf("clear substrate supplements: %w", err)
			}

			if len(s.Mediums) > 0 {
				rows := make([][]any, len(s.Mediums))
				for i, m := range s.Mediums {
					rows[i] = []any{s.SubstrateID, i + 1, m.MediumID, m.MediumName, m.QtyG}
				}
				if _, err := tx.CopyFrom(ctx, pgx.Identifier{"substrate_mediums"},
					[]string{"substrate_id", "position", "medium_id", "medium_name", "qty_g"},
					pgx.CopyFromRows(rows)); err != nil {
					return fmt.Errorf("copy substrate mediums: %w", err)
				}
			}
			if len(s.Supplements) > 0 {
				rows := make([][]any, len(s.Supplements))
				for i, sp := range s.Supplements {
					rows[i] = []any{s.SubstrateID, i + 1, sp.SupplementID, sp.SupplementName, sp.Qty, sp.Unit}
				}
				if _, err := tx.CopyFrom(ctx, pgx.Identifier{"substrate_supplements"},
					[]string{"substrate_id", "position", "supplement_id", "supplement_name", "qty", "unit"},
					pgx.CopyFromRows(rows)); err != nil {
					return fmt.Errorf("copy substrate supplements: %w", err)
				}
			}
		}
		return nil
	})
}

// UpsertContaminationCodes inserts or replaces contamination codes.
func (r *Repo) UpsertContaminationCodes(ctx context.Context, codes []domain.ContaminationCode) error {
	query := `
		INSERT INTO contamination_codes (code, description, is_active)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE
		SET description = EXCLUDED.description, is_active = EXCLUDED.is_active`

	return db.WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, c := range codes {
			if _, err := tx.Exec(ctx, query, c.Code, c.Description, c.IsActive); err != nil {
				return fmt.Errorf("upsert contamination code %s: %w", c.Code, err)
			}
		}
		return nil
	})
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
