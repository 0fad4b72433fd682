// Package store holds the storage-facing collaborators of the matching core:
// candidate sources, the weight store, the signal log, mandate criteria and
// the per-mandate aggregation lock.
package store

import (
	"context"
	"time"

	"mandate-matching/internal/models"
)

// CandidateQuery carries coarse filters pushed down to the candidate source.
// Equality filters match case-insensitively; empty means unrestricted.
type CandidateQuery struct {
	Text             string
	Countries        []string
	ExcludeCountries []string
	Industries       []string
	Ownership        []string
	RevenueMin       *float64
	RevenueMax       *float64
	EmployeesMin     *int
	EmployeesMax     *int
	PageSize         int
	IncludeContacts  bool
}

// CandidateBatch is one finite page of companies. HasMore reports that the
// source held more matches than PageSize.
type CandidateBatch struct {
	Companies []models.Company
	HasMore   bool
}

type CandidateSource interface {
	FetchCandidates(ctx context.Context, q CandidateQuery) (*CandidateBatch, error)
}

// CompanyLookup resolves current company records by id. Unknown ids are
// absent from the returned map.
type CompanyLookup interface {
	GetCompanies(ctx context.Context, ids []string) (map[string]models.Company, error)
}

// Companies is implemented by both the Postgres and Elasticsearch adapters.
type Companies interface {
	CandidateSource
	CompanyLookup
}

type WeightStore interface {
	// GetWeights returns found=false when the mandate has no stored vector.
	GetWeights(ctx context.Context, mandateID string) (*models.WeightsRecord, bool, error)
	// SetWeights persists rec if the stored version still equals
	// expectedVersion (0 for a first write) and returns the new record.
	SetWeights(ctx context.Context, rec models.WeightsRecord, expectedVersion int64) (*models.WeightsRecord, error)
}

type SignalFilter struct {
	MandateID string
	Types     []models.SignalType
	Since     time.Time // exclusive
	Until     time.Time // inclusive
	Limit     int
}

type SignalLog interface {
	AppendSignal(ctx context.Context, s models.Signal) (*models.Signal, error)
	ListSignals(ctx context.Context, f SignalFilter) ([]models.Signal, error)
}

type MandateRepository interface {
	GetCriteria(ctx context.Context, mandateID string) (models.Criteria, error)
	ListMandateIDs(ctx context.Context) ([]string, error)
}

type Locker interface {
	// Acquire returns a release func, or ok=false when another holder has the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

const (
	DefaultPageSize = 100
	MaxPageSize     = 100
)

// EffectivePageSize applies the default and cap to a requested page size.
func EffectivePageSize(requested int) int {
	switch {
	case requested <= 0:
		return DefaultPageSize
	case requested > MaxPageSize:
		return MaxPageSize
	}
	return requested
}
