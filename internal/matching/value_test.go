package matching

import (
	"testing"

	apperrors "mandate-matching/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalValueIndex(t *testing.T) {
	tests := []struct {
		name     string
		input    SVIInput
		expected float64
	}{
		{"press and rfp", SVIInput{PressCount60d: 10, RFPCount60d: 5}, 7.00},
		{"nothing recent", SVIInput{}, 0},
		{"rounding", SVIInput{PressCount60d: 1, RFPCount60d: 1}, 1.00},
		{"rfp only", SVIInput{RFPCount60d: 3}, 1.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := SignalValueIndex(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result.SVI)
		})
	}
}

func TestSignalValueIndex_Explain(t *testing.T) {
	result, err := SignalValueIndex(SVIInput{PressCount60d: 10, RFPCount60d: 5})
	require.NoError(t, err)
	assert.Equal(t, 4.0, result.Explain["press"])
	assert.Equal(t, 3.0, result.Explain["rfp"])
}

func TestSignalValueIndex_RejectsNegativeCounts(t *testing.T) {
	_, err := SignalValueIndex(SVIInput{PressCount60d: -1})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
}

func TestEvaluatePricing_ZeroCost(t *testing.T) {
	result, err := EvaluatePricing(PricingInput{CostEUR: 0, RevenueEUR: 500})
	require.NoError(t, err)

	assert.Equal(t, 10.0, result.ROI)
	assert.Equal(t, 0.5, result.ChurnRisk)
	assert.Equal(t, 3000.0, result.CLV)
	assert.Zero(t, result.SuggestedDiscount)
	assert.Empty(t, result.Overages)
}

func TestEvaluatePricing_RetentionDiscount(t *testing.T) {
	result, err := EvaluatePricing(PricingInput{RevenueEUR: 50, CostEUR: 100})
	require.NoError(t, err)

	assert.Equal(t, 0.5, result.ROI)
	assert.Equal(t, 0.5, result.ChurnRisk)
	assert.Equal(t, -15, result.SuggestedDiscount)
}

func TestEvaluatePricing_NoDiscountForLoyalActiveAccount(t *testing.T) {
	result, err := EvaluatePricing(PricingInput{RevenueEUR: 50, CostEUR: 100, ActivityScore: 100, TenureMonths: 36})
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.ChurnRisk)
	assert.Zero(t, result.SuggestedDiscount)
	assert.Equal(t, 600.0, result.CLV)
}

func TestEvaluatePricing_LowEngagement(t *testing.T) {
	result, err := EvaluatePricing(PricingInput{
		RevenueEUR:    200,
		CostEUR:       100,
		ActivityScore: 50,
		TenureMonths:  12,
		Usage: map[string]UsageCounter{
			"searches": {Used: 10, Included: 100},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 0.45, result.ChurnRisk)
	assert.Equal(t, 0.2, result.Explain["engagement"])
	assert.Equal(t, -0.15, result.Explain["activity"])
	assert.Equal(t, -0.1, result.Explain["tenure"])
	assert.Equal(t, 2.0, result.ROI)
}

func TestEvaluatePricing_Overages(t *testing.T) {
	result, err := EvaluatePricing(PricingInput{
		RevenueEUR: 100,
		CostEUR:    10,
		Usage: map[string]UsageCounter{
			"searches": {Used: 110, Included: 100},
			"exports":  {Used: 160, Included: 100},
			"seats":    {Used: 2, Included: 5},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Overages, 2)
	assert.Equal(t, OverageSuggestion{Metric: "exports", OverageUnits: 60, Recommendation: "upgrade"}, result.Overages[0])
	assert.Equal(t, OverageSuggestion{Metric: "searches", OverageUnits: 10, Recommendation: "bill_overage"}, result.Overages[1])
}

func TestEvaluatePricing_InvalidInput(t *testing.T) {
	inputs := []PricingInput{
		{RevenueEUR: -1},
		{CostEUR: -5},
		{TenureMonths: -1},
		{ActivityScore: 101},
		{Usage: map[string]UsageCounter{"searches": {Used: -1}}},
	}

	for _, in := range inputs {
		_, err := EvaluatePricing(in)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
	}
}
