// internal/workers/matching/evaluate-pricing-heuristic/models.go
package evaluatepricingheuristic

import "mandate-matching/internal/matching"

type Input struct {
	RevenueEUR    float64                          `json:"revenueEUR"`
	CostEUR       float64                          `json:"costEUR"`
	TenureMonths  int                              `json:"tenureMonths"`
	ActivityScore float64                          `json:"activityScore"`
	Usage         map[string]matching.UsageCounter `json:"usage,omitempty"`
}

type Output struct {
	CLV               float64                      `json:"clv"`
	ChurnRisk         float64                      `json:"churnRisk"`
	ROI               float64                      `json:"roi"`
	SuggestedDiscount int                          `json:"suggestedDiscount"`
	Overages          []matching.OverageSuggestion `json:"overages"`
	Explain           map[string]float64           `json:"pricingExplain"`
}
