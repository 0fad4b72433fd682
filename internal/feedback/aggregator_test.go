package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	apperrors "mandate-matching/internal/common/errors"
	"mandate-matching/internal/common/logger"
	"mandate-matching/internal/models"
	"mandate-matching/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// In-memory collaborators
// ==========================

type memSignals struct {
	signals []models.Signal
}

func (m *memSignals) AppendSignal(_ context.Context, s models.Signal) (*models.Signal, error) {
	m.signals = append(m.signals, s)
	return &s, nil
}

func (m *memSignals) ListSignals(_ context.Context, f store.SignalFilter) ([]models.Signal, error) {
	var out []models.Signal
	for _, s := range m.signals {
		if s.MandateID != f.MandateID {
			continue
		}
		if !f.Since.IsZero() && !s.CreatedAt.After(f.Since) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

type memWeights struct {
	mu      sync.Mutex
	records map[string]models.WeightsRecord
	setErr  error
	sets    int
}

func newMemWeights() *memWeights {
	return &memWeights{records: map[string]models.WeightsRecord{}}
}

func (m *memWeights) GetWeights(_ context.Context, id string) (*models.WeightsRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, false, nil
	}
	return &rec, true, nil
}

func (m *memWeights) SetWeights(_ context.Context, rec models.WeightsRecord, expected int64) (*models.WeightsRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return nil, m.setErr
	}
	if m.records[rec.MandateID].Version != expected {
		return nil, apperrors.NewWeightVersionConflictError(rec.MandateID, expected)
	}
	m.sets++
	rec.Version = expected + 1
	rec.UpdatedAt = time.Now()
	m.records[rec.MandateID] = rec
	return &rec, nil
}

type memMandates struct {
	criteria map[string]models.Criteria
	failing  map[string]error
}

func (m *memMandates) GetCriteria(_ context.Context, id string) (models.Criteria, error) {
	if err, ok := m.failing[id]; ok {
		return models.Criteria{}, err
	}
	c, ok := m.criteria[id]
	if !ok {
		return models.Criteria{}, apperrors.NewMandateNotFoundError(id)
	}
	return c, nil
}

func (m *memMandates) ListMandateIDs(context.Context) ([]string, error) {
	var ids []string
	for id := range m.criteria {
		ids = append(ids, id)
	}
	for id := range m.failing {
		ids = append(ids, id)
	}
	return ids, nil
}

type memCompanies map[string]models.Company

func (m memCompanies) GetCompanies(_ context.Context, ids []string) (map[string]models.Company, error) {
	out := map[string]models.Company{}
	for _, id := range ids {
		if c, ok := m[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

type busyLocker struct {
	busy map[string]bool
}

func (l *busyLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	if l.busy[key] {
		return nil, false, nil
	}
	return func(context.Context) error { return nil }, true, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []WeightsUpdated
	err    error
}

func (p *recordingPublisher) PublishWeightsUpdated(_ context.Context, e WeightsUpdated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

// ==========================
// Fixtures
// ==========================

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	signals   *memSignals
	weights   *memWeights
	mandates  *memMandates
	locker    *busyLocker
	publisher *recordingPublisher
	agg       *Aggregator
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		signals: &memSignals{},
		weights: newMemWeights(),
		mandates: &memMandates{
			criteria: map[string]models.Criteria{
				"m-1": {
					GeographyAllow: []string{"NL"},
					IndustryAllow:  []string{"SaaS"},
					OwnershipAllow: []string{"founder-led"},
				},
			},
			failing: map[string]error{},
		},
		locker:    &busyLocker{busy: map[string]bool{}},
		publisher: &recordingPublisher{},
	}
	companies := memCompanies{
		"c-fit":   {ID: "c-fit", LegalName: "Fit BV", Country: "NL", Industry: "SaaS", OwnershipType: "PE-backed"},
		"c-owner": {ID: "c-owner", LegalName: "Owner Ltd", Country: "GB", Industry: "Retail", OwnershipType: "founder-led"},
	}
	f.agg = NewAggregator(Config{LearningRate: 0.05, Concurrency: 2}, Deps{
		Signals:   f.signals,
		Weights:   f.weights,
		Mandates:  f.mandates,
		Companies: companies,
		Locker:    f.locker,
		Publisher: f.publisher,
	}, logger.NewTestLogger(t))
	return f
}

func signal(id, mandate, company string, typ models.SignalType, weight float64, at time.Time) models.Signal {
	return models.Signal{ID: id, MandateID: mandate, CompanyID: company, Type: typ, Weight: weight, CreatedAt: at}
}

// ==========================
// Tests
// ==========================

func TestRecomputeWeights_NoSignalsIsNoop(t *testing.T) {
	f := newFixture(t)

	outcome, err := f.agg.RecomputeWeights(context.Background(), "m-1")
	require.NoError(t, err)

	assert.Equal(t, StatusUnchanged, outcome.Status)
	assert.Equal(t, models.DefaultWeights(), outcome.Weights)
	assert.Zero(t, f.weights.sets)
	assert.Empty(t, f.publisher.events)
}

func TestRecomputeWeights_PositiveSignalsRaiseMatchingFactors(t *testing.T) {
	f := newFixture(t)
	f.signals.signals = []models.Signal{
		signal("s-1", "m-1", "c-fit", models.SignalFavorite, 1, t0),
		signal("s-2", "m-1", "c-fit", models.SignalMeeting, 4, t0.Add(time.Minute)),
	}

	outcome, err := f.agg.RecomputeWeights(context.Background(), "m-1")
	require.NoError(t, err)

	defaults := models.DefaultWeights()
	assert.Equal(t, StatusUpdated, outcome.Status)
	assert.Equal(t, int64(1), outcome.Version)
	assert.Equal(t, 2, outcome.SignalsUsed)
	assert.Greater(t, outcome.Weights.Sector, defaults.Sector)
	assert.Greater(t, outcome.Weights.Geo, defaults.Geo)
	assert.Less(t, outcome.Weights.Owner, defaults.Owner)
	assert.InDelta(t, defaults.Sum(), outcome.Weights.Sum(), 1e-5)

	stored := f.weights.records["m-1"]
	assert.Equal(t, t0.Add(time.Minute), stored.SignalsThrough)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, "m-1", f.publisher.events[0].MandateID)
	assert.Equal(t, int64(1), f.publisher.events[0].Version)
}

func TestRecomputeWeights_IdempotentWithoutNewSignals(t *testing.T) {
	f := newFixture(t)
	f.signals.signals = []models.Signal{signal("s-1", "m-1", "c-fit", models.SignalFavorite, 1, t0)}
	ctx := context.Background()

	first, err := f.agg.RecomputeWeights(ctx, "m-1")
	require.NoError(t, err)
	second, err := f.agg.RecomputeWeights(ctx, "m-1")
	require.NoError(t, err)

	assert.Equal(t, StatusUpdated, first.Status)
	assert.Equal(t, StatusUnchanged, second.Status)
	assert.Equal(t, first.Weights, second.Weights)
	assert.Equal(t, 1, f.weights.sets)
}

func TestRecomputeWeights_NegativeSignalsLowerMatchingFactors(t *testing.T) {
	f := newFixture(t)
	f.signals.signals = []models.Signal{signal("s-1", "m-1", "c-owner", models.SignalBounce, -2, t0)}

	outcome, err := f.agg.RecomputeWeights(context.Background(), "m-1")
	require.NoError(t, err)

	assert.Less(t, outcome.Weights.Owner, models.DefaultWeights().Owner)
}

func TestRecomputeWeights_SkipsMalformedSignals(t *testing.T) {
	f := newFixture(t)
	f.signals.signals = []models.Signal{
		signal("s-bad-type", "m-1", "c-fit", "like", 1, t0),
		signal("s-bad-weight", "m-1", "c-fit", models.SignalReply, math.NaN(), t0),
		signal("s-fraction", "m-1", "c-fit", models.SignalReply, 1.5, t0),
		signal("s-ok", "m-1", "c-fit", models.SignalReply, 3, t0.Add(time.Second)),
	}

	outcome, err := f.agg.RecomputeWeights(context.Background(), "m-1")
	require.NoError(t, err)

	assert.Equal(t, StatusUpdated, outcome.Status)
	assert.Equal(t, 3, outcome.Malformed)
	assert.Equal(t, 1, outcome.SignalsUsed)
}

func TestRecomputeWeights_OnlyMalformedSignalsKeepWeights(t *testing.T) {
	f := newFixture(t)
	f.signals.signals = []models.Signal{signal("s-1", "m-1", "c-fit", models.SignalFavorite, 0, t0)}

	outcome, err := f.agg.RecomputeWeights(context.Background(), "m-1")
	require.NoError(t, err)

	assert.Equal(t, StatusUnchanged, outcome.Status)
	assert.Equal(t, 1, outcome.Malformed)
	assert.Equal(t, models.DefaultWeights(), outcome.Weights)
	assert.Empty(t, f.publisher.events)

	stored := f.weights.records["m-1"]
	assert.Equal(t, models.DefaultWeights(), stored.Weights)
	assert.Equal(t, t0, stored.SignalsThrough)
}

func TestRecomputeWeights_MalformedSignalsCountedOnce(t *testing.T) {
	f := newFixture(t)
	f.signals.signals = []models.Signal{signal("s-1", "m-1", "c-fit", "like", 1, t0)}
	ctx := context.Background()

	first, err := f.agg.RecomputeWeights(ctx, "m-1")
	require.NoError(t, err)
	second, err := f.agg.RecomputeWeights(ctx, "m-1")
	require.NoError(t, err)
	third, err := f.agg.RecomputeWeights(ctx, "m-1")
	require.NoError(t, err)

	assert.Equal(t, 1, first.Malformed)
	assert.Zero(t, second.Malformed)
	assert.Zero(t, third.Malformed)
	assert.Equal(t, 1, f.weights.sets)
	assert.Equal(t, StatusUnchanged, third.Status)
}

func TestRecomputeWeights_UnresolvedCompaniesSkipped(t *testing.T) {
	f := newFixture(t)
	f.signals.signals = []models.Signal{signal("s-1", "m-1", "c-gone", models.SignalFavorite, 1, t0)}
	ctx := context.Background()

	outcome, err := f.agg.RecomputeWeights(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, outcome.Status)
	assert.Equal(t, 1, outcome.Unresolved)

	again, err := f.agg.RecomputeWeights(ctx, "m-1")
	require.NoError(t, err)
	assert.Zero(t, again.Unresolved)
	assert.Equal(t, t0, f.weights.records["m-1"].SignalsThrough)
}

func TestRecomputeWeights_StaleCacheEntryDoesNotBlockRecompute(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f.weights.records["m-1"] = models.WeightsRecord{MandateID: "m-1", Weights: models.DefaultWeights(), Version: 2}
	stale, err := json.Marshal(models.WeightsRecord{MandateID: "m-1", Weights: models.DefaultWeights(), Version: 1})
	require.NoError(t, err)
	require.NoError(t, mr.Set(store.WeightsCacheKey("m-1"), string(stale)))

	cached := store.NewCachedWeights(f.weights, rdb, time.Minute, logger.NewTestLogger(t))
	agg := NewAggregator(Config{LearningRate: 0.05}, Deps{
		Signals:   f.signals,
		Weights:   cached.Direct(),
		Mandates:  f.mandates,
		Companies: memCompanies{"c-fit": {ID: "c-fit", Country: "NL", Industry: "SaaS"}},
	}, logger.NewTestLogger(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.signals.signals = append(f.signals.signals,
			signal(fmt.Sprintf("s-%d", i), "m-1", "c-fit", models.SignalFavorite, 1, t0.Add(time.Duration(i)*time.Minute)))
		// a concurrent reader refills the cache with the old record
		require.NoError(t, mr.Set(store.WeightsCacheKey("m-1"), string(stale)))

		outcome, err := agg.RecomputeWeights(ctx, "m-1")
		require.NoError(t, err)
		assert.Equal(t, StatusUpdated, outcome.Status)
		assert.Equal(t, int64(3+i), outcome.Version)
	}
	assert.False(t, mr.Exists(store.WeightsCacheKey("m-1")))
}

func TestRecomputeWeights_ScopedPerMandate(t *testing.T) {
	f := newFixture(t)
	f.mandates.criteria["m-2"] = models.Criteria{}
	f.signals.signals = []models.Signal{signal("s-1", "m-2", "c-fit", models.SignalMeeting, 4, t0)}

	outcome, err := f.agg.RecomputeWeights(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, outcome.Status)
}

func TestRecomputeWeights_LockBusy(t *testing.T) {
	f := newFixture(t)
	f.locker.busy["m-1"] = true

	_, err := f.agg.RecomputeWeights(context.Background(), "m-1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAggregationInProgress))
}

func TestRecomputeWeights_CancelledContextPersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.signals.signals = []models.Signal{signal("s-1", "m-1", "c-fit", models.SignalFavorite, 1, t0)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.agg.RecomputeWeights(ctx, "m-1")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.weights.sets)
	assert.Empty(t, f.publisher.events)
}

func TestRecomputeWeights_VersionConflictKeepsPriorWeights(t *testing.T) {
	f := newFixture(t)
	prior := models.WeightsRecord{MandateID: "m-1", Weights: models.DefaultWeights(), Version: 3}
	f.weights.records["m-1"] = prior
	f.weights.setErr = apperrors.NewWeightVersionConflictError("m-1", 3)
	f.signals.signals = []models.Signal{signal("s-1", "m-1", "c-fit", models.SignalFavorite, 1, t0)}

	_, err := f.agg.RecomputeWeights(context.Background(), "m-1")

	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeWeightVersionConflict))
	assert.Equal(t, prior, f.weights.records["m-1"])
}

func TestRecomputeWeights_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("sns down")
	f.signals.signals = []models.Signal{signal("s-1", "m-1", "c-fit", models.SignalFavorite, 1, t0)}

	outcome, err := f.agg.RecomputeWeights(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, StatusUpdated, outcome.Status)
}

func TestRecomputeAll_ReportsEveryMandate(t *testing.T) {
	f := newFixture(t)
	f.mandates.criteria["m-2"] = models.Criteria{}
	f.mandates.criteria["m-4"] = models.Criteria{}
	f.mandates.failing["m-3"] = apperrors.NewDataUnavailableError("mandates", errors.New("timeout"))
	f.locker.busy["m-4"] = true
	f.signals.signals = []models.Signal{signal("s-1", "m-1", "c-fit", models.SignalFavorite, 1, t0)}

	summary, err := f.agg.RecomputeAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Unchanged)
	assert.Equal(t, []string{"m-4"}, summary.Skipped)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "m-3", summary.Failed[0].MandateID)
}

func TestRecomputeMandates_EmptyList(t *testing.T) {
	f := newFixture(t)

	summary, err := f.agg.RecomputeMandates(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, summary.Updated)
	assert.NotNil(t, summary.Failed)
	assert.NotNil(t, summary.Skipped)
}
