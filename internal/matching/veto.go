package matching

import (
	"fmt"

	"mandate-matching/internal/models"
)

type VetoReason string

const (
	VetoNone             VetoReason = ""
	VetoGeographyBlocked VetoReason = "geography_blocked"
	VetoExcludedKeyword  VetoReason = "excluded_keyword"
)

// Veto reports whether company must be dropped from results regardless of score.
func Veto(criteria models.Criteria, company models.Company) (bool, VetoReason) {
	if containsFold(criteria.GeographyBlock, company.Country) {
		return true, VetoGeographyBlocked
	}
	if kw := anySubstringFold(criteria.ExcludedKeywords, company.DisplayName, company.LegalName); kw != "" {
		return true, VetoExcludedKeyword
	}
	return false, VetoNone
}

func (r VetoReason) String() string {
	if r == VetoNone {
		return "none"
	}
	return string(r)
}

// Describe is a short human-readable veto explanation for logs.
func Describe(criteria models.Criteria, company models.Company) string {
	vetoed, reason := Veto(criteria, company)
	if !vetoed {
		return ""
	}
	switch reason {
	case VetoGeographyBlocked:
		return fmt.Sprintf("country %s is blocked", company.Country)
	case VetoExcludedKeyword:
		kw := anySubstringFold(criteria.ExcludedKeywords, company.DisplayName, company.LegalName)
		return fmt.Sprintf("name matches excluded keyword %q", kw)
	}
	return reason.String()
}

// FilterContacts keeps contacts whose role title contains one of the
// criteria's contact roles. No roles configured keeps every contact.
func FilterContacts(criteria models.Criteria, contacts []models.Contact) []models.Contact {
	if len(contacts) == 0 {
		return nil
	}
	if len(criteria.ContactRoles) == 0 {
		return contacts
	}

	out := make([]models.Contact, 0, len(contacts))
	for _, c := range contacts {
		if anySubstringFold(criteria.ContactRoles, c.Role) != "" {
			out = append(out, c)
		}
	}
	return out
}
