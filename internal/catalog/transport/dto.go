package transport

import (
	"cultivation_backend/internal/catalog/repository"
	"cultivation_backend/internal/cultivation/domain"
)

// Strains

type StrainRequest struct {
	StrainCode     string `json:"strainCode" validate:"required,catalogcode"`
	StrainVendorID string `json:"strainVendorId" validate:"required,max=100"`
	Species        string `json:"species" validate:"required,max=200"`
	VendorName     string `json:"vendorName" validate:"max=200"`
	IsActive       *bool  `json:"isActive"`
}

type UpsertStrainsRequest struct {
	Strains []StrainRequest `json:"strains" validate:"required,min=1,max=500,dive"`
}

// Substrates

type MediumLineRequest struct {
	MediumID   string  `json:"mediumId" validate:"required,max=100"`
	MediumName string  `json:"mediumName" validate:"required,max=200"`
	QtyG       float64 `json:"qtyG" validate:"gte=0"`
}

type SupplementLineRequest struct {
	SupplementID   string  `json:"supplementId" validate:"required,max=100"`
	SupplementName string  `json:"supplementName" validate:"required,max=200"`
	Qty            float64 `json:"qty" validate:"gte=0"`
	Unit           string  `json:"unit" validate:"required,max=20"`
}

type SubstrateRequest struct {
	SubstrateID string                  `json:"substrateId" validate:"required,catalogcode"`
	Name        string                  `json:"name" validate:"required,max=200"`
	IsActive    *bool                   `json:"isActive"`
	Mediums     []MediumLineRequest     `json:"mediums" validate:"dive"`
	Supplements []SupplementLineRequest `json:"supplements" validate:"dive"`
}

type UpsertSubstratesRequest struct {
	Substrates []SubstrateRequest `json:"substrates" validate:"required,min=1,max=200,dive"`
}

// Contamination codes

type ContaminationCodeRequest struct {
	Code        string `json:"code" validate:"required,catalogcode"`
	Description string `json:"description" validate:"required,max=500"`
	IsActive    *bool  `json:"isActive"`
}

type UpsertContaminationCodesRequest struct {
	Codes []ContaminationCodeRequest `json:"codes" validate:"required,min=1,max=500,dive"`
}

// Responses

type StrainListResponse struct {
	Items []domain.Strain `json:"items"`
}

type SubstrateListResponse struct {
	Items []repository.Substrate `json:"items"`
}

type ContaminationCodeListResponse struct {
	Items []domain.ContaminationCode `json:"items"`
}

type UpsertResponse struct {
	Section string `json:"section"`
	Count   int    `json:"count"`
}

// ToStrains maps request entries to domain strains. Entries without an
// isActive flag are active.
func (r UpsertStrainsRequest) ToStrains() []domain.Strain {
	out := make([]domain.Strain, len(r.Strains))
	for i, s := range r.Strains {
		out[i] = domain.Strain{
			StrainCode:     s.StrainCode,
			StrainVendorID: s.StrainVendorID,
			Species:        s.Species,
			VendorName:     s.VendorName,
			IsActive:       activeOrDefault(s.IsActive),
		}
	}
	return out
}

// ToSubstrates maps request entries to substrates, keeping line order.
func (r UpsertSubstratesRequest) ToSubstrates() []repository.Substrate {
	out := make([]repository.Substrate, len(r.Substrates))
	for i, s := range r.Substrates {
		mediums := make([]domain.MediumLine, len(s.Mediums))
		for j, m := range s.Mediums {
			mediums[j] = domain.MediumLine{MediumID: m.MediumID, MediumName: m.MediumName, QtyG: m.QtyG}
		}
		supplements := make([]domain.SupplementLine, len(s.Supplements))
		for j, sp := range s.Supplements {
			supplements[j] = domain.SupplementLine{
				SupplementID:   sp.SupplementID,
				SupplementName: sp.SupplementName,
				Qty:            sp.Qty,
				Unit:           sp.Unit,
			}
		}
		out[i] = repository.Substrate{
			SubstrateID: s.SubstrateID,
			Name:        s.Name,
			IsActive:    activeOrDefault(s.IsActive),
			Mediums:     mediums,
			Supplements: supplements,
		}
	}
	return out
}

// ToCodes maps request entries to contamination codes.
func (r UpsertContaminationCodesRequest) ToCodes() []domain.ContaminationCode {
	out := make([]domain.ContaminationCode, len(r.Codes))
	for i, c := range r.Codes {
		out[i] = domain.ContaminationCode{Code: c.Code, Description: c.Description, IsActive: activeOrDefault(c.IsActive)}
	}
	return out
}

func activeOrDefault(v *bool) bool {
	return v == nil || *v
}
