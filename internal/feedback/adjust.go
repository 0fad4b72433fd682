package feedback

import (
	"math"

	"mandate-matching/internal/matching"
	"mandate-matching/internal/models"
)

// FactorEvidence is the |weight|-weighted mean indicator per factor over
// positive and negative signals.
type FactorEvidence struct {
	Positive       map[models.Factor]float64
	Negative       map[models.Factor]float64
	PositiveWeight float64
	NegativeWeight float64
}

type signalObservation struct {
	weight     float64
	indicators map[models.Factor]float64
}

func collectEvidence(observations []signalObservation) FactorEvidence {
	ev := FactorEvidence{
		Positive: make(map[models.Factor]float64, len(models.Factors)),
		Negative: make(map[models.Factor]float64, len(models.Factors)),
	}
	for _, o := range observations {
		w := math.Abs(o.weight)
		target := ev.Positive
		if o.weight > 0 {
			ev.PositiveWeight += w
		} else {
			target = ev.Negative
			ev.NegativeWeight += w
		}
		for _, f := range models.Factors {
			target[f] += w * o.indicators[f]
		}
	}
	for _, f := range models.Factors {
		if ev.PositiveWeight > 0 {
			ev.Positive[f] /= ev.PositiveWeight
		}
		if ev.NegativeWeight > 0 {
			ev.Negative[f] /= ev.NegativeWeight
		}
	}
	return ev
}

// Adjust applies one learning step:
//
//	w[f] = clamp(old[f] + lr * (pos[f] - neg[f]), 0, 1)
//
// and rescales the result so it sums to defaults.Sum(). A vector that
// collapses to zero resets to defaults.
func Adjust(old models.Weights, ev FactorEvidence, lr float64, defaults models.Weights) models.Weights {
	var next models.Weights
	for _, f := range models.Factors {
		delta := lr * (ev.Positive[f] - ev.Negative[f])
		next = next.With(f, matching.Clamp(old.Get(f)+delta, 0, 1))
	}

	sum := next.Sum()
	if sum == 0 {
		return defaults
	}
	target := defaults.Sum()
	for _, f := range models.Factors {
		next = next.With(f, matching.Round(next.Get(f)*target/sum, 6))
	}
	return next
}
