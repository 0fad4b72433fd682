package matching

import (
	"fmt"

	apperrors "mandate-matching/internal/common/errors"
)

const (
	sviPressWeight = 0.4
	sviRFPWeight   = 0.6
)

type SVIInput struct {
	PressCount60d int `json:"press60d"`
	RFPCount60d   int `json:"rfp60d"`
}

type SVIResult struct {
	SVI     float64            `json:"svi"`
	Explain map[string]float64 `json:"explain"`
}

// SignalValueIndex weighs recent press mentions and RFPs into one number
// rounded to 2 decimals.
func SignalValueIndex(in SVIInput) (*SVIResult, error) {
	if in.PressCount60d < 0 || in.RFPCount60d < 0 {
		return nil, apperrors.NewInvalidInputError(
			fmt.Sprintf("counts must be non-negative, got press60d=%d rfp60d=%d", in.PressCount60d, in.RFPCount60d))
	}

	press := float64(in.PressCount60d) * sviPressWeight
	rfp := float64(in.RFPCount60d) * sviRFPWeight

	return &SVIResult{
		SVI: Round(press+rfp, 2),
		Explain: map[string]float64{
			"press": Round(press, 2),
			"rfp":   Round(rfp, 2),
		},
	}, nil
}
