package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cultivation_backend/internal/catalog/repository"
	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/platform/apperr"

	"gopkg.in/yaml.v3"
)

// Seed is the YAML catalog file format.
type Seed struct {
	Strains            []SeedStrain            `yaml:"strains"`
	Substrates         []SeedSubstrate         `yaml:"substrates"`
	ContaminationCodes []SeedContaminationCode `yaml:"contamination_codes"`
}

// SeedStrain is one strain entry.
type SeedStrain struct {
	Code     string `yaml:"code"`
	VendorID string `yaml:"vendor_id"`
	Species  string `yaml:"species"`
	Vendor   string `yaml:"vendor"`
	Active   *bool  `yaml:"active"`
}

type SeedSubstrate struct {
	ID          string           `yaml:"id"`
	Name        string           `yaml:"name"`
	Active      *bool            `yaml:"active"`
	Mediums     []SeedMedium     `yaml:"mediums"`
	Supplements []SeedSupplement `yaml:"supplements"`
}

type SeedMedium struct {
	ID   string  `yaml:"id"`
	Name string  `yaml:"name"`
	QtyG float64 `yaml:"qty_g"`
}

type SeedSupplement struct {
	ID   string  `yaml:"id"`
	Name string  `yaml:"name"`
	Qty  float64 `yaml:"qty"`
	Unit string  `yaml:"unit"`
}

type SeedContaminationCode struct {
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
	Active      *bool  `yaml:"active"`
}

// SeedResult counts the entries written per section.
type SeedResult struct {
	Strains            int
	Substrates         int
	ContaminationCodes int
}

// ParseSeed decodes a YAML catalog. Unknown keys are rejected. Entries
// without an explicit active flag are active.
func ParseSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return Seed{}, apperr.Validation("catalog seed is empty")
		}
		return Seed{}, apperr.Wrap(apperr.KindValidation, "invalid catalog seed", err)
	}
	return seed, nil
}

// LoadSeed parses a YAML catalog and upserts every non-empty section.
// Sections are written in dependency order; a failure stops the load.
func (s *Service) LoadSeed(ctx context.Context, r io.Reader) (SeedResult, error) {
	seed, err := ParseSeed(r)
	if err != nil {
		return SeedResult{}, err
	}

	var res SeedResult
	if len(seed.Strains) > 0 {
		if res.Strains, err = s.UpsertStrains(ctx, seed.strains()); err != nil {
			return res, fmt.Errorf("seed strains: %w", err)
		}
	}
	if len(seed.Substrates) > 0 {
		if res.Substrates, err = s.UpsertSubstrates(ctx, seed.substrates()); err != nil {
			return res, fmt.Errorf("seed substrates: %w", err)
		}
	}
	if len(seed.ContaminationCodes) > 0 {
		if res.ContaminationCodes, err = s.UpsertContaminationCodes(ctx, seed.codes()); err != nil {
			return res, fmt.Errorf("seed contamination codes: %w", err)
		}
	}
	return res, nil
}

func (seed Seed) strains() []domain.Strain {
	out := make([]domain.Strain, len(seed.Strains))
	for i, st := range seed.Strains {
		out[i] = domain.Strain{
			StrainCode:     st.Code,
			StrainVendorID: st.VendorID,
			Species:        st.Species,
			VendorName:     st.Vendor,
			IsActive:       active(st.Active),
		}
	}
	return out
}

func (seed Seed) substrates() []repository.Substrate {
	out := make([]repository.Substrate, len(seed.Substrates))
	for i, sub := range seed.Substrates {
		mediums := make([]domain.MediumLine, len(sub.Mediums))
		for j, m := range sub.Mediums {
			mediums[j] = domain.MediumLine{MediumID: m.ID, MediumName: m.Name, QtyG: m.QtyG}
		}
		supplements := make([]domain.SupplementLine, len(sub.Supplements))
		for j, sp := range sub.Supplements {
			supplements[j] = domain.SupplementLine{SupplementID: sp.ID, SupplementName: sp.Name, Qty: sp.Qty, Unit: sp.Unit}
		}
		out[i] = repository.Substrate{
			SubstrateID: sub.ID,
			Name:        sub.Name,
			IsActive:    active(sub.Active),
			Mediums:     mediums,
			Supplements: supplements,
		}
	}
	return out
}

func (seed Seed) codes() []domain.ContaminationCode {
	out := make([]domain.ContaminationCode, len(seed.ContaminationCodes))
	for i, c := range seed.ContaminationCodes {
		out[i] = domain.ContaminationCode{Code: c.Code, Description: c.Description, IsActive: active(c.Active)}
	}
	return out
}

func active(flag *bool) bool {
	return flag == nil || *flag
}
