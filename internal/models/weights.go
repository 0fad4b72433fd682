// internal/models/weights.go
package models

import (
	"fmt"
	"math"
	"time"
)

type Factor string

const (
	FactorSector   Factor = "sector"
	FactorGeo      Factor = "geo"
	FactorSize     Factor = "size"
	FactorOwner    Factor = "owner"
	FactorKeywords Factor = "keywords"
)

// Factors lists every scoring factor in explain order.
var Factors = []Factor{FactorSector, FactorGeo, FactorSize, FactorOwner, FactorKeywords}

func (f Factor) Valid() bool {
	switch f {
	case FactorSector, FactorGeo, FactorSize, FactorOwner, FactorKeywords:
		return true
	}
	return false
}

// Weights are independent non-negative multipliers, one per factor.
// They are not required to sum to 1.
type Weights struct {
	Sector   float64 `json:"sector"`
	Geo      float64 `json:"geo"`
	Size     float64 `json:"size"`
	Owner    float64 `json:"owner"`
	Keywords float64 `json:"keywords"`
}

func DefaultWeights() Weights {
	return Weights{
		Sector:   0.35,
		Geo:      0.20,
		Size:     0.20,
		Owner:    0.15,
		Keywords: 0.10,
	}
}

func (w Weights) Get(f Factor) float64 {
	switch f {
	case FactorSector:
		return w.Sector
	case FactorGeo:
		return w.Geo
	case FactorSize:
		return w.Size
	case FactorOwner:
		return w.Owner
	case FactorKeywords:
		return w.Keywords
	}
	return 0
}

// With returns a copy of w with factor f set to v.
func (w Weights) With(f Factor, v float64) Weights {
	switch f {
	case FactorSector:
		w.Sector = v
	case FactorGeo:
		w.Geo = v
	case FactorSize:
		w.Size = v
	case FactorOwner:
		w.Owner = v
	case FactorKeywords:
		w.Keywords = v
	}
	return w
}

func (w Weights) Sum() float64 {
	var sum float64
	for _, f := range Factors {
		sum += w.Get(f)
	}
	return sum
}

func (w Weights) Validate() error {
	for _, f := range Factors {
		v := w.Get(f)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %s is not a finite number", f)
		}
		if v < 0 {
			return fmt.Errorf("weight %s must be non-negative, got %v", f, v)
		}
	}
	return nil
}

func (w Weights) ToMap() map[string]float64 {
	out := make(map[string]float64, len(Factors))
	for _, f := range Factors {
		out[string(f)] = w.Get(f)
	}
	return out
}

// WeightsFromMap builds a vector from factor names. Missing factors are zero,
// unknown factors and negative values are rejected.
func WeightsFromMap(m map[string]float64) (Weights, error) {
	var w Weights
	for name, v := range m {
		f := Factor(name)
		if !f.Valid() {
			return Weights{}, fmt.Errorf("unknown factor %q", name)
		}
		w = w.With(f, v)
	}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// WeightsRecord is the persisted per-mandate vector. SignalsThrough is the
// creation time of the newest signal already folded into Weights.
type WeightsRecord struct {
	MandateID      string    `json:"mandateId"`
	Weights        Weights   `json:"weights"`
	Version        int64     `json:"version"`
	SignalsThrough time.Time `json:"signalsThrough"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
