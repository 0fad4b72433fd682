// internal/workers/matching/calculate-signal-value/models.go
package calculatesignalvalue

type Input struct {
	Press60d int `json:"press60d"`
	RFP60d   int `json:"rfp60d"`
}

type Output struct {
	SVI     float64            `json:"svi"`
	Explain map[string]float64 `json:"sviExplain"`
}
