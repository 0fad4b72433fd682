// internal/workers/matching/search-mandate-matches/models.go
package searchmandatematches

import "mandate-matching/internal/models"

type Input struct {
	MandateID       string           `json:"mandateId"`
	Query           string           `json:"query,omitempty"`
	PageSize        int              `json:"pageSize,omitempty"`
	IncludeContacts bool             `json:"includeContacts,omitempty"`
	Criteria        *models.Criteria `json:"criteria,omitempty"`
}

type Output struct {
	Matches        []MatchItem `json:"matches"`
	MatchCount     int         `json:"matchCount"`
	HasMore        bool        `json:"hasMore"`
	WeightsVersion int64       `json:"weightsVersion"`
}

type MatchItem struct {
	CompanyID   string                    `json:"companyId"`
	LegalName   string                    `json:"legalName"`
	DisplayName string                    `json:"displayName,omitempty"`
	Country     string                    `json:"country,omitempty"`
	MatchScore  float64                   `json:"matchScore"`
	Explain     map[models.Factor]float64 `json:"explain"`
	Contacts    []models.Contact          `json:"contacts,omitempty"`
}
