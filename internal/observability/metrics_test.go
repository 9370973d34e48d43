package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordContainer(ctx, "ats", "ok", time.Second)
		m.RecordBusinessMetric(ctx, "analysis", true)
		m.RecordSessionDeleted(ctx, "expired")
		m.RecordRateLimitHit(ctx, "analysis")
	})

	err := m.TrackAIOperationWithTokens(ctx, "cv", func(ctx context.Context) *AIOperationResult {
		return &AIOperationResult{Error: fmt.Errorf("boom")}
	})
	assert.EqualError(t, err, "boom")
}

func TestTrackAIOperationWithTokens(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	err := m.TrackAIOperationWithTokens(ctx, "cv", func(ctx context.Context) *AIOperationResult {
		return &AIOperationResult{TokenUsage: &TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15}}
	})
	require.NoError(t, err)

	err = m.TrackAIOperationWithTokens(ctx, "cv", func(ctx context.Context) *AIOperationResult {
		return &AIOperationResult{Error: fmt.Errorf("quota")}
	})
	require.Error(t, err)

	assert.Equal(t, int64(2), counterTotal(t, reader, "applysharp_ai_requests_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "applysharp_ai_errors_total"))
}

func TestBusinessAndInfrastructureCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordBusinessMetric(ctx, "analysis", true)
	m.RecordBusinessMetric(ctx, "generation", false)
	m.RecordBusinessMetric(ctx, "unknown", true)
	m.RecordSessionDeleted(ctx, "finished")
	m.RecordSessionDeleted(ctx, "expired")
	m.RecordRateLimitHit(ctx, "analysis")
	m.RecordContainer(ctx, "role", "degraded", 20*time.Second)

	assert.Equal(t, int64(1), counterTotal(t, reader, "applysharp_analyses_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "applysharp_generations_total"))
	assert.Equal(t, int64(2), counterTotal(t, reader, "applysharp_sessions_deleted_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "applysharp_rate_limit_hits_total"))
	assert.Equal(t, int64(1), counterTotal(t, reader, "applysharp_intel_container_results_total"))
}

func TestDisabledManager(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{Enabled: false})
	require.NoError(t, err)

	assert.Nil(t, om.GetMetrics())
	assert.NotNil(t, om.Tracer("test"))
	assert.NoError(t, om.Shutdown(context.Background()))
}
