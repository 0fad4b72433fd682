// Package search ranks candidate companies against a mandate.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/common/metrics"
	"mandate-matching/internal/common/observability"
	"mandate-matching/internal/matching"
	"mandate-matching/internal/models"
	"mandate-matching/internal/store"

	"golang.org/x/sync/errgroup"
)

type Config struct {
	// DefaultWeights apply to mandates without a stored vector.
	DefaultWeights models.Weights
	// PageSize bounds the candidate set; capped at store.MaxPageSize.
	PageSize int
	// CoarsePrefilter pushes country and industry allow-lists down to the
	// candidate source.
	CoarsePrefilter bool
}

type Request struct {
	MandateID string
	// Criteria overrides the mandate's stored criteria when set.
	Criteria        *models.Criteria
	Query           string
	PageSize        int
	IncludeContacts bool
}

type Match struct {
	Company models.Company
	models.MatchResult
}

type Result struct {
	MandateID      string
	Matches        []Match
	Weights        models.Weights
	WeightsVersion int64
	HasMore        bool
	Scored         int
	Vetoed         int
}

type Orchestrator struct {
	cfg        Config
	candidates store.CandidateSource
	weights    store.WeightStore
	mandates   store.MandateRepository
	obs        *observability.Observability
	logger     logger.Logger
}

func NewOrchestrator(
	cfg Config,
	candidates store.CandidateSource,
	weights store.WeightStore,
	mandates store.MandateRepository,
	obs *observability.Observability,
	log logger.Logger,
) *Orchestrator {
	if cfg.DefaultWeights.Sum() == 0 {
		cfg.DefaultWeights = models.DefaultWeights()
	}
	return &Orchestrator{
		cfg:        cfg,
		candidates: candidates,
		weights:    weights,
		mandates:   mandates,
		obs:        obs,
		logger:     log.WithFields(map[string]interface{}{"component": "search_orchestrator"}),
	}
}

// Search returns every non-vetoed candidate ranked by descending match score.
// Equal scores keep the candidate source's order. A failed fetch is an
// error, never an empty result.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result, err := o.search(ctx, req)

	status := "success"
	if err != nil {
		status = "error"
		if stdErr, ok := apperrors.AsStandardError(err); ok {
			status = string(stdErr.Code)
		}
	}
	metrics.SearchRequests.WithLabelValues(status).Inc()
	returned := 0
	if result != nil {
		returned = len(result.Matches)
	}
	o.obs.RecordSearch(ctx, time.Since(start), status, returned)

	return result, err
}

func (o *Orchestrator) search(ctx context.Context, req Request) (*Result, error) {
	if req.MandateID == "" {
		return nil, apperrors.NewInvalidInputError("mandateId is required")
	}

	criteria, err := o.resolveCriteria(ctx, req)
	if err != nil {
		return nil, err
	}

	query := store.CandidateQuery{
		Text:            req.Query,
		PageSize:        o.pageSize(req.PageSize),
		IncludeContacts: req.IncludeContacts,
	}
	if o.cfg.CoarsePrefilter {
		query.Countries = criteria.GeographyAllow
		query.Industries = criteria.IndustryAllow
		// blocked countries are vetoed anyway
		query.ExcludeCountries = criteria.GeographyBlock
	}

	var (
		weights models.Weights
		version int64
		batch   *store.CandidateBatch
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rec, found, err := o.weights.GetWeights(gctx, req.MandateID)
		if err != nil {
			return unavailable("weights", err)
		}
		weights = o.cfg.DefaultWeights
		if found {
			weights = rec.Weights
			version = rec.Version
		}
		return nil
	})
	g.Go(func() error {
		b, err := o.candidates.FetchCandidates(gctx, query)
		if err != nil {
			return unavailable("candidates", err)
		}
		batch = b
		return nil
	})
	if err := g.Wait(); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		o.logger.Error("search inputs unavailable", map[string]interface{}{
			"mandateId": req.MandateID,
			"error":     err.Error(),
		})
		return nil, err
	}

	result := &Result{
		MandateID:      req.MandateID,
		Weights:        weights,
		WeightsVersion: version,
		HasMore:        batch.HasMore,
		Matches:        make([]Match, 0, len(batch.Companies)),
	}

	for _, company := range batch.Companies {
		if vetoed, reason := matching.Veto(criteria, company); vetoed {
			result.Vetoed++
			metrics.CandidatesVetoed.WithLabelValues(reason.String()).Inc()
			continue
		}
		if req.IncludeContacts {
			company.Contacts = matching.FilterContacts(criteria, company.Contacts)
		} else {
			company.Contacts = nil
		}
		result.Matches = append(result.Matches, Match{
			Company:     company,
			MatchResult: matching.Score(criteria, company, weights),
		})
	}
	result.Scored = len(result.Matches)
	metrics.CandidatesScored.Add(float64(result.Scored))

	sort.SliceStable(result.Matches, func(i, j int) bool {
		return result.Matches[i].MatchScore > result.Matches[j].MatchScore
	})

	o.logger.Info("search completed", map[string]interface{}{
		"mandateId":      req.MandateID,
		"scored":         result.Scored,
		"vetoed":         result.Vetoed,
		"hasMore":        result.HasMore,
		"weightsVersion": version,
	})
	return result, nil
}

func (o *Orchestrator) resolveCriteria(ctx context.Context, req Request) (models.Criteria, error) {
	var criteria models.Criteria
	switch {
	case req.Criteria != nil:
		criteria = *req.Criteria
	case o.mandates != nil:
		c, err := o.mandates.GetCriteria(ctx, req.MandateID)
		if err != nil {
			if apperrors.IsCode(err, apperrors.ErrCodeMandateNotFound) ||
				apperrors.IsCode(err, apperrors.ErrCodeInvalidCriteria) {
				return models.Criteria{}, err
			}
			return models.Criteria{}, unavailable("mandates", err)
		}
		criteria = c
	default:
		return models.Criteria{}, apperrors.NewInvalidInputError("criteria are required")
	}

	criteria = criteria.Normalize()
	if err := criteria.Validate(); err != nil {
		return models.Criteria{}, err
	}
	return criteria, nil
}

func (o *Orchestrator) pageSize(requested int) int {
	if requested <= 0 {
		requested = o.cfg.PageSize
	}
	return store.EffectivePageSize(requested)
}

func unavailable(source string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewDataUnavailableError(source, fmt.Errorf("timed out: %w", err))
	}
	return apperrors.NewDataUnavailableError(source, err)
}
