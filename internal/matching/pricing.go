package matching

import (
	"fmt"
	"math"
	"sort"

	apperrors "mandate-matching/internal/common/errors"
)

const (
	baseChurnRisk          = 0.5
	activityChurnRelief    = 0.3
	tenureChurnRelief      = 0.2
	tenureSaturationMonths = 24
	lowEngagementPenalty   = 0.2
	lowEngagementRatio     = 0.25

	zeroCostROI = 10

	discountROIThreshold   = 1.0
	discountChurnThreshold = 0.25
	retentionDiscount      = -15

	upgradeOverageFactor = 1.5
)

type UsageCounter struct {
	Used     int `json:"used"`
	Included int `json:"included"`
}

type PricingInput struct {
	RevenueEUR    float64                 `json:"revenueEUR"`
	CostEUR       float64                 `json:"costEUR"`
	TenureMonths  int                     `json:"tenureMonths"`
	ActivityScore float64                 `json:"activityScore"`
	Usage         map[string]UsageCounter `json:"usage,omitempty"`
}

type OverageSuggestion struct {
	Metric         string `json:"metric"`
	OverageUnits   int    `json:"overageUnits"`
	Recommendation string `json:"recommendation"`
}

type PricingResult struct {
	CLV               float64             `json:"clv"`
	ChurnRisk         float64             `json:"churnRisk"`
	ROI               float64             `json:"roi"`
	SuggestedDiscount int                 `json:"suggestedDiscount"`
	Overages          []OverageSuggestion `json:"overages"`
	Explain           map[string]float64  `json:"explain"`
}

func (in PricingInput) Validate() error {
	switch {
	case in.RevenueEUR < 0:
		return apperrors.NewInvalidInputError("revenueEUR must not be negative")
	case in.CostEUR < 0:
		return apperrors.NewInvalidInputError("costEUR must not be negative")
	case in.TenureMonths < 0:
		return apperrors.NewInvalidInputError("tenureMonths must not be negative")
	case in.ActivityScore < 0 || in.ActivityScore > 100:
		return apperrors.NewInvalidInputError("activityScore must be within [0, 100]")
	}
	for metric, u := range in.Usage {
		if u.Used < 0 || u.Included < 0 {
			return apperrors.NewInvalidInputError(fmt.Sprintf("usage %s must not be negative", metric))
		}
	}
	return nil
}

// EvaluatePricing derives CLV, churn risk, ROI and discount/overage suggestions
// from account counters. Deterministic; the explain map lists churn-risk terms.
func EvaluatePricing(in PricingInput) (*PricingResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	activityTerm := -activityChurnRelief * in.ActivityScore / 100
	tenureTerm := -tenureChurnRelief * math.Min(float64(in.TenureMonths), tenureSaturationMonths) / tenureSaturationMonths
	engagementTerm := 0.0
	if ratio, ok := usageRatio(in.Usage); ok && ratio < lowEngagementRatio {
		engagementTerm = lowEngagementPenalty
	}

	churn := Round(Clamp(baseChurnRisk+activityTerm+tenureTerm+engagementTerm, 0, 1), 2)

	roi := float64(zeroCostROI)
	if in.CostEUR > 0 {
		roi = Round(in.RevenueEUR/in.CostEUR, 2)
	}

	discount := 0
	if roi < discountROIThreshold && churn > discountChurnThreshold {
		discount = retentionDiscount
	}

	return &PricingResult{
		CLV:               Round(in.RevenueEUR*12*(1-churn), 2),
		ChurnRisk:         churn,
		ROI:               roi,
		SuggestedDiscount: discount,
		Overages:          overages(in.Usage),
		Explain: map[string]float64{
			"base":       baseChurnRisk,
			"activity":   Round(activityTerm, 4),
			"tenure":     Round(tenureTerm, 4),
			"engagement": engagementTerm,
		},
	}, nil
}

// usageRatio is total used over total included across metrics with an allowance.
func usageRatio(usage map[string]UsageCounter) (float64, bool) {
	var used, included int
	for _, u := range usage {
		if u.Included == 0 {
			continue
		}
		used += u.Used
		included += u.Included
	}
	if included == 0 {
		return 0, false
	}
	return float64(used) / float64(included), true
}

func overages(usage map[string]UsageCounter) []OverageSuggestion {
	metrics := make([]string, 0, len(usage))
	for m := range usage {
		metrics = append(metrics, m)
	}
	sort.Strings(metrics)

	out := []OverageSuggestion{}
	for _, m := range metrics {
		u := usage[m]
		if u.Used <= u.Included {
			continue
		}
		rec := "bill_overage"
		if float64(u.Used) > upgradeOverageFactor*float64(u.Included) {
			rec = "upgrade"
		}
		out = append(out, OverageSuggestion{
			Metric:         m,
			OverageUnits:   u.Used - u.Included,
			Recommendation: rec,
		})
	}
	return out
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
