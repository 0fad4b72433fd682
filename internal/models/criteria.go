// internal/models/criteria.go
package models

import (
	"fmt"
	"strings"

	apperrors "mandate-matching/internal/common/errors"
)

// Criteria is a mandate's targeting rules. An empty allow-set matches anything.
// IncludeKeywords add score, ExcludedKeywords remove the candidate entirely.
type Criteria struct {
	GeographyAllow   []string `json:"geographyAllow,omitempty"`
	GeographyBlock   []string `json:"geographyBlock,omitempty"`
	IndustryAllow    []string `json:"industryAllow,omitempty"`
	OwnershipAllow   []string `json:"ownershipAllow,omitempty"`
	IncludeKeywords  []string `json:"includeKeywords,omitempty"`
	ExcludedKeywords []string `json:"excludedKeywords,omitempty"`
	ContactRoles     []string `json:"contactRoles,omitempty"`

	SizeEmployeesMin *int     `json:"sizeEmployeesMin,omitempty"`
	SizeEmployeesMax *int     `json:"sizeEmployeesMax,omitempty"`
	RevenueMin       *float64 `json:"revenueMin,omitempty"`
	RevenueMax       *float64 `json:"revenueMax,omitempty"`
}

// Normalize returns a copy with trimmed, deduplicated sets. Country codes are
// upper-cased; keywords, ownership types and roles are lower-cased.
func (c Criteria) Normalize() Criteria {
	c.GeographyAllow = dedupe(c.GeographyAllow, strings.ToUpper)
	c.GeographyBlock = dedupe(c.GeographyBlock, strings.ToUpper)
	c.IndustryAllow = dedupe(c.IndustryAllow, nil)
	c.OwnershipAllow = dedupe(c.OwnershipAllow, strings.ToLower)
	c.IncludeKeywords = dedupe(c.IncludeKeywords, strings.ToLower)
	c.ExcludedKeywords = dedupe(c.ExcludedKeywords, strings.ToLower)
	c.ContactRoles = dedupe(c.ContactRoles, strings.ToLower)
	return c
}

// Validate rejects self-contradictory criteria. It never corrects them.
func (c Criteria) Validate() error {
	var problems []string

	if c.RevenueMin != nil && *c.RevenueMin < 0 {
		problems = append(problems, "revenueMin must not be negative")
	}
	if c.RevenueMax != nil && *c.RevenueMax < 0 {
		problems = append(problems, "revenueMax must not be negative")
	}
	if c.RevenueMin != nil && c.RevenueMax != nil && *c.RevenueMin > *c.RevenueMax {
		problems = append(problems, fmt.Sprintf("revenueMin (%v) exceeds revenueMax (%v)", *c.RevenueMin, *c.RevenueMax))
	}
	if c.SizeEmployeesMin != nil && *c.SizeEmployeesMin < 0 {
		problems = append(problems, "sizeEmployeesMin must not be negative")
	}
	if c.SizeEmployeesMax != nil && *c.SizeEmployeesMax < 0 {
		problems = append(problems, "sizeEmployeesMax must not be negative")
	}
	if c.SizeEmployeesMin != nil && c.SizeEmployeesMax != nil && *c.SizeEmployeesMin > *c.SizeEmployeesMax {
		problems = append(problems, fmt.Sprintf("sizeEmployeesMin (%d) exceeds sizeEmployeesMax (%d)", *c.SizeEmployeesMin, *c.SizeEmployeesMax))
	}

	if len(problems) > 0 {
		return apperrors.NewInvalidCriteriaError(strings.Join(problems, "; "))
	}
	return nil
}

// Merge folds a DNA segment into c. Sets are unioned; bounds already set on c win.
func (c Criteria) Merge(segment Criteria) Criteria {
	c.GeographyAllow = append(append([]string{}, c.GeographyAllow...), segment.GeographyAllow...)
	c.GeographyBlock = append(append([]string{}, c.GeographyBlock...), segment.GeographyBlock...)
	c.IndustryAllow = append(append([]string{}, c.IndustryAllow...), segment.IndustryAllow...)
	c.OwnershipAllow = append(append([]string{}, c.OwnershipAllow...), segment.OwnershipAllow...)
	c.IncludeKeywords = append(append([]string{}, c.IncludeKeywords...), segment.IncludeKeywords...)
	c.ExcludedKeywords = append(append([]string{}, c.ExcludedKeywords...), segment.ExcludedKeywords...)
	c.ContactRoles = append(append([]string{}, c.ContactRoles...), segment.ContactRoles...)

	if c.SizeEmployeesMin == nil {
		c.SizeEmployeesMin = segment.SizeEmployeesMin
	}
	if c.SizeEmployeesMax == nil {
		c.SizeEmployeesMax = segment.SizeEmployeesMax
	}
	if c.RevenueMin == nil {
		c.RevenueMin = segment.RevenueMin
	}
	if c.RevenueMax == nil {
		c.RevenueMax = segment.RevenueMax
	}

	return c.Normalize()
}

func dedupe(values []string, fold func(string) string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if fold != nil {
			v = fold(v)
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
