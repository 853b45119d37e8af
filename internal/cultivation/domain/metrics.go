package domain

import (
	"fmt"
	"math"
)

// MaxWeightG is the largest weight the store can hold (NUMERIC(12,3)).
const MaxWeightG = 999_999_999.999

// PartialMetrics is a metrics patch. A nil field means "not supplied" and
// leaves the stored value untouched; a non-nil zero is a real measurement.
type PartialMetrics struct {
	WeightG      *float64 `json:"weightG,omitempty"`
	TemperatureC *float64 `json:"temperatureC,omitempty"`
	HumidityPct  *float64 `json:"humidityPct,omitempty"`
	PH           *float64 `json:"ph,omitempty"`
}

// IsEmpty reports whether no field is supplied.
func (p PartialMetrics) IsEmpty() bool {
	return p.WeightG == nil && p.TemperatureC == nil && p.HumidityPct == nil && p.PH == nil
}

// Validate checks the supplied fields against their physical ranges.
func (p PartialMetrics) Validate() error {
	if err := checkRange("weightG", p.WeightG, 0, MaxWeightG); err != nil {
		return err
	}
	if err := checkRange("temperatureC", p.TemperatureC, -50, 100); err != nil {
		return err
	}
	if err := checkRange("humidityPct", p.HumidityPct, 0, 100); err != nil {
		return err
	}
	return checkRange("ph", p.PH, 0, 14)
}

func checkRange(field string, v *float64, lo, hi float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return fmt.Errorf("%s must be a finite number", field)
	}
	if *v < lo || *v > hi {
		return fmt.Errorf("%s must be between %g and %g", field, lo, hi)
	}
	return nil
}

// Apply merges p over current and returns the result. current is not
// modified.
func (p PartialMetrics) Apply(current ObservedMetrics) ObservedMetrics {
	if p.WeightG != nil {
		current.WeightG = ptr(*p.WeightG)
	}
	if p.TemperatureC != nil {
		current.TemperatureC = ptr(*p.TemperatureC)
	}
	if p.HumidityPct != nil {
		current.HumidityPct = ptr(*p.HumidityPct)
	}
	if p.PH != nil {
		current.PH = ptr(*p.PH)
	}
	return current
}

func ptr(v float64) *float64 { return &v }
