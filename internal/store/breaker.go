package store

import (
	"context"

	"mandate-matching/internal/common/resilience"
	"mandate-matching/internal/models"
)

// Resilient decorates the read paths of the stores with retries and a
// circuit breaker per operation. Writes are not retried here: weight writes
// are guarded by version checks and signal appends are not idempotent.
type Resilient struct {
	exec *resilience.Executor
}

func NewResilient(exec *resilience.Executor) *Resilient {
	return &Resilient{exec: exec}
}

type resilientCandidates struct {
	r      *Resilient
	source CandidateSource
	lookup CompanyLookup
}

func (r *Resilient) Candidates(src Companies) Companies {
	return &resilientCandidates{r: r, source: src, lookup: src}
}

func (c *resilientCandidates) FetchCandidates(ctx context.Context, q CandidateQuery) (*CandidateBatch, error) {
	var batch *CandidateBatch
	err := c.r.exec.Execute(ctx, "candidates.fetch", func(ctx context.Context) error {
		var err error
		batch, err = c.source.FetchCandidates(ctx, q)
		return err
	}, nil)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

func (c *resilientCandidates) GetCompanies(ctx context.Context, ids []string) (map[string]models.Company, error) {
	var out map[string]models.Company
	err := c.r.exec.Execute(ctx, "candidates.lookup", func(ctx context.Context) error {
		var err error
		out, err = c.lookup.GetCompanies(ctx, ids)
		return err
	}, nil)
	if err != nil {
		return nil, err
	}
	return out, nil
}

type resilientWeights struct {
	r    *Resilient
	next WeightStore
}

func (r *Resilient) Weights(next WeightStore) WeightStore {
	return &resilientWeights{r: r, next: next}
}

func (w *resilientWeights) GetWeights(ctx context.Context, mandateID string) (*models.WeightsRecord, bool, error) {
	var rec *models.WeightsRecord
	var found bool
	err := w.r.exec.Execute(ctx, "weights.get", func(ctx context.Context) error {
		var err error
		rec, found, err = w.next.GetWeights(ctx, mandateID)
		return err
	}, nil)
	if err != nil {
		return nil, false, err
	}
	return rec, found, nil
}

func (w *resilientWeights) SetWeights(ctx context.Context, rec models.WeightsRecord, expectedVersion int64) (*models.WeightsRecord, error) {
	return w.next.SetWeights(ctx, rec, expectedVersion)
}

type resilientMandates struct {
	r    *Resilient
	next MandateRepository
}

func (r *Resilient) Mandates(next MandateRepository) MandateRepository {
	return &resilientMandates{r: r, next: next}
}

func (m *resilientMandates) GetCriteria(ctx context.Context, mandateID string) (models.Criteria, error) {
	var c models.Criteria
	err := m.r.exec.Execute(ctx, "mandates.criteria", func(ctx context.Context) error {
		var err error
		c, err = m.next.GetCriteria(ctx, mandateID)
		return err
	}, nil)
	return c, err
}

func (m *resilientMandates) ListMandateIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := m.r.exec.Execute(ctx, "mandates.list", func(ctx context.Context) error {
		var err error
		ids, err = m.next.ListMandateIDs(ctx)
		return err
	}, nil)
	return ids, err
}
