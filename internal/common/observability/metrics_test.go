package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectNames(t *testing.T, reader *metric.ManualReader) []string {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var names []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names = append(names, m.Name)
		}
	}
	return names
}

func TestObservability_RecordsMatchingInstruments(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	obs := newWithMeter(provider, provider.Meter("test"))
	ctx := context.Background()

	obs.RecordSearch(ctx, 25*time.Millisecond, "success", 10)
	obs.RecordRecompute(ctx, "updated")
	obs.RecordJobProcessed(ctx, "search-mandate-matches", "completed")
	obs.RecordJobDuration(ctx, "search-mandate-matches", time.Second)

	names := collectNames(t, reader)
	assert.Contains(t, names, "matching.search.duration")
	assert.Contains(t, names, "matching.weights.recomputed")
	assert.Contains(t, names, "jobs.processed")
	assert.Contains(t, names, "jobs.duration")

	require.NoError(t, obs.Shutdown(ctx))
}

func TestObservability_NilSafe(t *testing.T) {
	var obs *Observability
	ctx := context.Background()

	assert.NotPanics(t, func() {
		obs.RecordSearch(ctx, time.Millisecond, "error", 0)
		obs.RecordRecompute(ctx, "failed")
		assert.NoError(t, obs.Shutdown(ctx))
	})
}
