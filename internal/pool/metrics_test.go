package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func gaugeValue(t *testing.T, data metricdata.Aggregation, pool string) int64 {
	t.Helper()
	gauge, ok := data.(metricdata.Gauge[int64])
	require.True(t, ok, "unexpected aggregation %T", data)
	for _, dp := range gauge.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key("pool")); ok && v.AsString() == pool {
			return dp.Value
		}
	}
	t.Fatalf("no data point for pool %s", pool)
	return 0
}

func hasGaugePoint(data metricdata.Aggregation, pool string) bool {
	gauge, ok := data.(metricdata.Gauge[int64])
	if !ok {
		return false
	}
	for _, dp := range gauge.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key("pool")); ok && v.AsString() == pool {
			return true
		}
	}
	return false
}

func sumValue(t *testing.T, data metricdata.Aggregation, pool string) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "unexpected aggregation %T", data)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key("pool")); ok && v.AsString() == pool {
			return dp.Value
		}
	}
	return 0
}

func TestMetricsReportGaugesAndCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewMetrics(provider.Meter("test"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = metrics.Close() })

	p, _ := newTestPool(t, 3, WithMetrics(metrics))
	w, err := p.Pop()
	require.NoError(t, err)
	_, _ = p.Pop()
	_, _ = p.Pop()
	_, err = p.Pop()
	require.ErrorIs(t, err, ErrPoolExhausted)
	require.NoError(t, p.Release(w))
	require.ErrorIs(t, p.Release(w), ErrDoubleRelease)
	require.NoError(t, p.Resize(0))

	data := collect(t, reader)
	require.Equal(t, int64(0), gaugeValue(t, data["poolkit.pool.capacity"], "widgets"))
	require.Equal(t, int64(0), gaugeValue(t, data["poolkit.pool.free"], "widgets"))
	require.Equal(t, int64(2), gaugeValue(t, data["poolkit.pool.live"], "widgets"))
	require.Equal(t, int64(3), sumValue(t, data["poolkit.pool.created"], "widgets"))
	require.Equal(t, int64(1), sumValue(t, data["poolkit.pool.destroyed"], "widgets"))
	require.Equal(t, int64(1), sumValue(t, data["poolkit.pool.exhausted"], "widgets"))
	require.Equal(t, int64(1), sumValue(t, data["poolkit.pool.double_release"], "widgets"))
}

func TestMetricsStopReportingDestroyedPools(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewMetrics(provider.Meter("test"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = metrics.Close() })

	first, err := New[*widget]("widgets", &recorder{}, 2, WithMetrics(metrics))
	require.NoError(t, err)
	second, err := New[*widget]("gadgets", &recorder{}, 5, WithMetrics(metrics))
	require.NoError(t, err)

	data := collect(t, reader)
	require.Equal(t, int64(2), gaugeValue(t, data["poolkit.pool.capacity"], "widgets"))
	require.Equal(t, int64(5), gaugeValue(t, data["poolkit.pool.capacity"], "gadgets"))

	first.DestroyAll()
	data = collect(t, reader)
	require.False(t, hasGaugePoint(data["poolkit.pool.capacity"], "widgets"))
	require.Equal(t, int64(5), gaugeValue(t, data["poolkit.pool.capacity"], "gadgets"))

	// A replacement registered under a torn-down pool's name reports its own values.
	replacement, err := New[*widget]("widgets", &recorder{}, 7, WithMetrics(metrics))
	require.NoError(t, err)
	data = collect(t, reader)
	require.Equal(t, int64(7), gaugeValue(t, data["poolkit.pool.capacity"], "widgets"))

	replacement.DestroyAll()
	second.DestroyAll()
	data = collect(t, reader)
	require.False(t, hasGaugePoint(data["poolkit.pool.capacity"], "gadgets"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.track(newMirror("x", PolicyStrict))
	m.untrack(newMirror("x", PolicyStrict))
	m.addCreated("x")
	m.addDestroyed("x")
	m.addExhausted("x")
	m.addDoubleRelease("x")
	require.NoError(t, m.Close())
}
