// internal/models/company.go
package models

// Company is the read-only projection of a candidate entity used for scoring.
type Company struct {
	ID               string    `json:"id"`
	LegalName        string    `json:"legalName"`
	DisplayName      string    `json:"displayName"`
	Website          string    `json:"website,omitempty"`
	Country          string    `json:"country"`
	Industry         string    `json:"industry"`
	OwnershipType    string    `json:"ownershipType"`
	LatestRevenueEUR *float64  `json:"latestRevenueEUR,omitempty"`
	Employees        *int      `json:"employees,omitempty"`
	Contacts         []Contact `json:"contacts,omitempty"`
}

type Contact struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
}

// MatchResult is derived per search and never persisted as authoritative state.
type MatchResult struct {
	CompanyID  string             `json:"companyId"`
	MatchScore float64            `json:"matchScore"`
	Explain    map[Factor]float64 `json:"explain"`
}
