package domain

import "math"

// quantityScale matches the NUMERIC(12,3) storage precision of recipe quantities.
const quantityScale = 1000

// MediumLine is one medium in a recipe, in grams.
type MediumLine struct {
	MediumID   string  `json:"mediumId"`
	MediumName string  `json:"mediumName"`
	QtyG       float64 `json:"qtyG"`
}

// SupplementLine is one supplement in a recipe with its own unit.
type SupplementLine struct {
	SupplementID   string  `json:"supplementId"`
	SupplementName string  `json:"supplementName"`
	Qty            float64 `json:"qty"`
	Unit           string  `json:"unit"`
}

// SubstrateRecipe is the ordered per-unit composition of a substrate.
type SubstrateRecipe struct {
	SubstrateID string           `json:"substrateId"`
	Mediums     []MediumLine     `json:"mediums"`
	Supplements []SupplementLine `json:"supplements"`
}

// RecipeBreakdown carries the per-baglet and per-batch quantities for one
// provisioning run.
type RecipeBreakdown struct {
	BagletCount int             `json:"bagletCount"`
	PerUnit     SubstrateRecipe `json:"perUnit"`
	PerBatch    SubstrateRecipe `json:"perBatch"`
}

// ScaleRecipe multiplies every ingredient by count. Both halves of the
// result are fresh copies; recipe is left untouched.
func ScaleRecipe(recipe SubstrateRecipe, count int) RecipeBreakdown {
	return RecipeBreakdown{
		BagletCount: count,
		PerUnit:     scale(recipe, 1),
		PerBatch:    scale(recipe, count),
	}
}

func scale(recipe SubstrateRecipe, factor int) SubstrateRecipe {
	out := SubstrateRecipe{
		SubstrateID: recipe.SubstrateID,
		Mediums:     make([]MediumLine, len(recipe.Mediums)),
		Supplements: make([]SupplementLine, len(recipe.Supplements)),
	}
	for i, m := range recipe.Mediums {
		m.QtyG = roundQty(m.QtyG * float64(factor))
		out.Mediums[i] = m
	}
	for i, s := range recipe.Supplements {
		s.Qty = roundQty(s.Qty * float64(factor))
		out.Supplements[i] = s
	}
	return out
}

func roundQty(v float64) float64 {
	return math.Round(v*quantityScale) / quantityScale
}
