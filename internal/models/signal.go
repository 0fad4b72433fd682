// internal/models/signal.go
package models

import (
	"fmt"
	"math"
	"time"

	apperrors "mandate-matching/internal/common/errors"
)

type SignalType string

const (
	SignalFavorite     SignalType = "favorite"
	SignalReject       SignalType = "reject"
	SignalRequestMatch SignalType = "request_match"
	SignalReply        SignalType = "reply"
	SignalMeeting      SignalType = "meeting"
	SignalBounce       SignalType = "bounce"
)

var SignalTypes = []SignalType{
	SignalFavorite, SignalReject, SignalRequestMatch, SignalReply, SignalMeeting, SignalBounce,
}

func (t SignalType) Valid() bool {
	_, ok := defaultSignalWeights[t]
	return ok
}

var defaultSignalWeights = map[SignalType]int{
	SignalFavorite:     1,
	SignalRequestMatch: 2,
	SignalReply:        3,
	SignalMeeting:      4,
	SignalReject:       -1,
	SignalBounce:       -2,
}

// DefaultWeight is the weight recorded when the caller does not supply one.
func (t SignalType) DefaultWeight() int {
	return defaultSignalWeights[t]
}

// Signal is an append-only learning event. Weight is a signed integer; it is
// carried as float64 so rows with legacy or corrupt values can be detected.
type Signal struct {
	ID        string     `json:"id"`
	MandateID string     `json:"mandateId"`
	CompanyID string     `json:"companyId"`
	Type      SignalType `json:"signal"`
	Weight    float64    `json:"weight"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (s Signal) Validate() error {
	switch {
	case s.MandateID == "":
		return apperrors.NewMalformedSignalError("mandateId is required")
	case s.CompanyID == "":
		return apperrors.NewMalformedSignalError("companyId is required")
	case !s.Type.Valid():
		return apperrors.NewMalformedSignalError(fmt.Sprintf("unrecognized signal type %q", s.Type))
	case math.IsNaN(s.Weight) || math.IsInf(s.Weight, 0):
		return apperrors.NewMalformedSignalError("weight is not numeric")
	case s.Weight != math.Trunc(s.Weight):
		return apperrors.NewMalformedSignalError(fmt.Sprintf("weight %v is not an integer", s.Weight))
	case s.Weight == 0:
		return apperrors.NewMalformedSignalError("weight must be non-zero")
	}
	return nil
}
