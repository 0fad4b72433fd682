// Package matching holds the pure scoring rules. Nothing here performs I/O.
package matching

import (
	"math"
	"strings"

	"mandate-matching/internal/models"
)

// Indicators returns the 0/1 indicator of every factor for company under criteria.
// Missing company attributes never match.
func Indicators(criteria models.Criteria, company models.Company) map[models.Factor]float64 {
	return map[models.Factor]float64{
		models.FactorSector:   boolToFloat(sectorMatches(criteria, company)),
		models.FactorGeo:      boolToFloat(geoMatches(criteria, company)),
		models.FactorSize:     boolToFloat(sizeMatches(criteria, company)),
		models.FactorOwner:    boolToFloat(ownerMatches(criteria, company)),
		models.FactorKeywords: boolToFloat(keywordsMatch(criteria, company)),
	}
}

// Score combines indicators and weights. Explain always carries all five
// factors and MatchScore is their sum rounded to 4 decimals.
func Score(criteria models.Criteria, company models.Company, weights models.Weights) models.MatchResult {
	indicators := Indicators(criteria, company)

	explain := make(map[models.Factor]float64, len(models.Factors))
	var total float64
	for _, f := range models.Factors {
		contribution := indicators[f] * weights.Get(f)
		explain[f] = contribution
		total += contribution
	}

	return models.MatchResult{
		CompanyID:  company.ID,
		MatchScore: Round(total, 4),
		Explain:    explain,
	}
}

// empty allow-set matches everything
func sectorMatches(c models.Criteria, company models.Company) bool {
	if len(c.IndustryAllow) == 0 {
		return true
	}
	return containsFold(c.IndustryAllow, company.Industry)
}

// empty allow-set matches everything; block-list is a veto, not a factor
func geoMatches(c models.Criteria, company models.Company) bool {
	if len(c.GeographyAllow) == 0 {
		return true
	}
	return containsFold(c.GeographyAllow, company.Country)
}

func sizeMatches(c models.Criteria, company models.Company) bool {
	if company.LatestRevenueEUR == nil || c.RevenueMin == nil || c.RevenueMax == nil {
		return false
	}
	revenue := *company.LatestRevenueEUR
	return revenue >= *c.RevenueMin && revenue <= *c.RevenueMax
}

func ownerMatches(c models.Criteria, company models.Company) bool {
	return containsFold(c.OwnershipAllow, company.OwnershipType)
}

func keywordsMatch(c models.Criteria, company models.Company) bool {
	return anySubstringFold(c.IncludeKeywords, company.DisplayName, company.LegalName) != ""
}

func containsFold(set []string, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	for _, s := range set {
		if strings.EqualFold(strings.TrimSpace(s), value) {
			return true
		}
	}
	return false
}

// anySubstringFold returns the first keyword found in any of the fields.
func anySubstringFold(keywords []string, fields ...string) string {
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field), needle) {
				return kw
			}
		}
	}
	return ""
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
