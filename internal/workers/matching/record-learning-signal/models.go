// internal/workers/matching/record-learning-signal/models.go
package recordlearningsignal

import "time"

type Input struct {
	MandateID string `json:"mandateId"`
	CompanyID string `json:"companyId"`
	Signal    string `json:"signal"`
	Weight    *int   `json:"weight,omitempty"`
}

type Output struct {
	SignalID  string    `json:"signalId"`
	Weight    int       `json:"weight"`
	CreatedAt time.Time `json:"createdAt"`
}
