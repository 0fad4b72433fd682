// Package feedback turns learning signals into per-mandate weight updates.
package feedback

import (
	"context"
	"fmt"
	"sort"
	"sync"
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

const DefaultLearningRate = 0.05

type Config struct {
	DefaultWeights models.Weights
	LearningRate   float64
	LockTTL        time.Duration
	Concurrency    int
}

type Status string

const (
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome describes one mandate's recompute.
type Outcome struct {
	MandateID   string         `json:"mandateId"`
	Status      Status         `json:"status"`
	Weights     models.Weights `json:"weights"`
	Version     int64          `json:"version"`
	SignalsUsed int            `json:"signalsUsed"`
	Malformed   int            `json:"malformed"`
	Unresolved  int            `json:"unresolved"`
}

type FailedMandate struct {
	MandateID string `json:"mandateId"`
	Error     string `json:"error"`
}

type Summary struct {
	Updated   int             `json:"updated"`
	Unchanged int             `json:"unchanged"`
	Skipped   []string        `json:"skipped"`
	Failed    []FailedMandate `json:"failed"`
}

type Aggregator struct {
	cfg       Config
	signals   store.SignalLog
	weights   store.WeightStore
	mandates  store.MandateRepository
	companies store.CompanyLookup
	locker    store.Locker
	publisher Publisher
	obs       *observability.Observability
	logger    logger.Logger
}

type Deps struct {
	Signals   store.SignalLog
	Weights   store.WeightStore
	Mandates  store.MandateRepository
	Companies store.CompanyLookup
	// Locker is optional; without it concurrent recomputes rely on the
	// weight store's version check alone.
	Locker    store.Locker
	Publisher Publisher
	Obs       *observability.Observability
}

func NewAggregator(cfg Config, deps Deps, log logger.Logger) *Aggregator {
	if cfg.DefaultWeights.Sum() == 0 {
		cfg.DefaultWeights = models.DefaultWeights()
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultLearningRate
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if deps.Publisher == nil {
		deps.Publisher = NoopPublisher{}
	}
	return &Aggregator{
		cfg:       cfg,
		signals:   deps.Signals,
		weights:   deps.Weights,
		mandates:  deps.Mandates,
		companies: deps.Companies,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		obs:       deps.Obs,
		logger:    log.WithFields(map[string]interface{}{"component": "feedback_aggregator"}),
	}
}

// RecomputeWeights folds the mandate's signals recorded since the last
// recompute into its weight vector. With nothing new to learn from it is a
// no-op. A cancelled context never persists anything.
func (a *Aggregator) RecomputeWeights(ctx context.Context, mandateID string) (*Outcome, error) {
	outcome, err := a.recompute(ctx, mandateID)

	label := string(StatusFailed)
	switch {
	case err == nil:
		label = string(outcome.Status)
	case apperrors.IsCode(err, apperrors.ErrCodeAggregationInProgress):
		label = string(StatusSkipped)
	}
	metrics.WeightRecomputes.WithLabelValues(label).Inc()
	a.obs.RecordRecompute(ctx, label)

	return outcome, err
}

func (a *Aggregator) recompute(ctx context.Context, mandateID string) (*Outcome, error) {
	if mandateID == "" {
		return nil, apperrors.NewInvalidInputError("mandateId is required")
	}
	log := a.logger.WithFields(map[string]interface{}{"mandateId": mandateID})

	if a.locker != nil {
		release, ok, err := a.locker.Acquire(ctx, mandateID, a.cfg.LockTTL)
		if err != nil {
			return nil, apperrors.NewExternalServiceError("redis", err)
		}
		if !ok {
			return nil, apperrors.NewAggregationInProgressError(mandateID)
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := release(releaseCtx); err != nil {
				log.Warn("failed to release aggregation lock", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	criteria, err := a.mandates.GetCriteria(ctx, mandateID)
	if err != nil {
		return nil, err
	}

	current, found, err := a.weights.GetWeights(ctx, mandateID)
	if err != nil {
		return nil, err
	}
	if !found {
		current = &models.WeightsRecord{MandateID: mandateID, Weights: a.cfg.DefaultWeights}
	}

	signals, err := a.signals.ListSignals(ctx, store.SignalFilter{
		MandateID: mandateID,
		Since:     current.SignalsThrough,
	})
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		MandateID: mandateID,
		Status:    StatusUnchanged,
		Weights:   current.Weights,
		Version:   current.Version,
	}

	through := current.SignalsThrough
	valid := make([]models.Signal, 0, len(signals))
	ids := make([]string, 0, len(signals))
	seen := make(map[string]struct{}, len(signals))
	for _, s := range signals {
		if s.CreatedAt.After(through) {
			through = s.CreatedAt
		}
		if err := s.Validate(); err != nil {
			outcome.Malformed++
			metrics.MalformedSignals.Inc()
			log.Warn("skipping malformed signal", map[string]interface{}{
				"signalId": s.ID,
				"error":    err.Error(),
			})
			continue
		}
		valid = append(valid, s)
		if _, ok := seen[s.CompanyID]; !ok {
			seen[s.CompanyID] = struct{}{}
			ids = append(ids, s.CompanyID)
		}
	}

	if len(valid) == 0 {
		log.Debug("no usable signals", map[string]interface{}{"malformed": outcome.Malformed})
		return a.advanceWatermark(ctx, current, through, outcome)
	}

	companies, err := a.companies.GetCompanies(ctx, ids)
	if err != nil {
		return nil, err
	}

	observations := make([]signalObservation, 0, len(valid))
	for _, s := range valid {
		company, ok := companies[s.CompanyID]
		if !ok {
			outcome.Unresolved++
			continue
		}
		observations = append(observations, signalObservation{
			weight:     s.Weight,
			indicators: matching.Indicators(criteria, company),
		})
	}
	if len(observations) == 0 {
		log.Debug("no signals resolved to a company", map[string]interface{}{"unresolved": outcome.Unresolved})
		return a.advanceWatermark(ctx, current, through, outcome)
	}

	next := Adjust(current.Weights, collectEvidence(observations), a.cfg.LearningRate, a.cfg.DefaultWeights)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	saved, err := a.weights.SetWeights(ctx, models.WeightsRecord{
		MandateID:      mandateID,
		Weights:        next,
		SignalsThrough: through,
	}, current.Version)
	if err != nil {
		return nil, err
	}

	outcome.Status = StatusUpdated
	outcome.Weights = saved.Weights
	outcome.Version = saved.Version
	outcome.SignalsUsed = len(observations)

	event := WeightsUpdated{
		MandateID:   mandateID,
		Weights:     saved.Weights.ToMap(),
		Version:     saved.Version,
		SignalsUsed: outcome.SignalsUsed,
		UpdatedAt:   saved.UpdatedAt,
	}
	if err := a.publisher.PublishWeightsUpdated(ctx, event); err != nil {
		// weights are already persisted; the event is best effort
		log.Warn("failed to publish weights update", map[string]interface{}{"error": err.Error()})
	}

	log.Info("weights recomputed", map[string]interface{}{
		"version":     saved.Version,
		"signalsUsed": outcome.SignalsUsed,
		"malformed":   outcome.Malformed,
		"unresolved":  outcome.Unresolved,
	})
	return outcome, nil
}

// advanceWatermark stores through with the current weights so signals that
// could not be used are not read and counted again. The outcome stays
// unchanged and no event is published.
func (a *Aggregator) advanceWatermark(ctx context.Context, current *models.WeightsRecord, through time.Time, outcome *Outcome) (*Outcome, error) {
	if !through.After(current.SignalsThrough) {
		return outcome, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	saved, err := a.weights.SetWeights(ctx, models.WeightsRecord{
		MandateID:      current.MandateID,
		Weights:        current.Weights,
		SignalsThrough: through,
	}, current.Version)
	if err != nil {
		return nil, err
	}
	outcome.Version = saved.Version
	return outcome, nil
}

// RecomputeAll recomputes every active mandate.
func (a *Aggregator) RecomputeAll(ctx context.Context) (*Summary, error) {
	ids, err := a.mandates.ListMandateIDs(ctx)
	if err != nil {
		return nil, err
	}
	return a.RecomputeMandates(ctx, ids)
}

// RecomputeMandates runs recomputes with bounded concurrency. A failing
// mandate keeps its previous weights and is reported, never aborting others.
func (a *Aggregator) RecomputeMandates(ctx context.Context, ids []string) (*Summary, error) {
	summary := &Summary{Skipped: []string{}, Failed: []FailedMandate{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			outcome, err := a.RecomputeWeights(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case apperrors.IsCode(err, apperrors.ErrCodeAggregationInProgress):
				summary.Skipped = append(summary.Skipped, id)
			case err != nil:
				summary.Failed = append(summary.Failed, FailedMandate{MandateID: id, Error: err.Error()})
			case outcome.Status == StatusUpdated:
				summary.Updated++
			default:
				summary.Unchanged++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(summary.Skipped)
	sort.Slice(summary.Failed, func(i, j int) bool {
		return summary.Failed[i].MandateID < summary.Failed[j].MandateID
	})

	a.logger.Info("recompute finished", map[string]interface{}{
		"mandates":  len(ids),
		"updated":   summary.Updated,
		"unchanged": summary.Unchanged,
		"skipped":   len(summary.Skipped),
		"failed":    len(summary.Failed),
	})

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("recompute interrupted: %w", err)
	}
	return summary, nil
}
