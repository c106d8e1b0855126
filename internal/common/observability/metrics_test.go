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

func TestRecordOperation_ExportsCounter(t *testing.T) {
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	obs := newWithProvider(provider, "test")

	ctx := context.Background()
	obs.RecordOperation(ctx, "change_status", "ok", 2*time.Millisecond)
	obs.RecordOperation(ctx, "change_status", "INVALID_TRANSITION", time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "lifecycle.operations" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), total)
	assert.NoError(t, obs.Shutdown(ctx))
}

func TestNoop_DoesNotPanic(t *testing.T) {
	var nilObs *Observability
	assert.NotPanics(t, func() {
		NewNoop().RecordOperation(context.Background(), "assign", "ok", time.Millisecond)
		nilObs.RecordJobProcessed(context.Background(), "service-request-assign", "completed", time.Millisecond)
	})
}
