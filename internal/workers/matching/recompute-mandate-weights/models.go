// internal/workers/matching/recompute-mandate-weights/models.go
package recomputemandateweights

import "mandate-matching/internal/feedback"

// Input names one mandate; an empty MandateID recomputes every active
// mandate.
type Input struct {
	MandateID string `json:"mandateId,omitempty"`
}

type Output struct {
	Updated   int                      `json:"updated"`
	Unchanged int                      `json:"unchanged"`
	Skipped   []string                 `json:"skipped"`
	Failed    []feedback.FailedMandate `json:"failed"`
}
