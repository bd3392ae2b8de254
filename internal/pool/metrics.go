package pool

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/coachpo/poolkit/internal/pool"

// Metrics exports pool gauges and lifecycle counters through OpenTelemetry.
// One Metrics value can serve any number of pools; each pool is labelled by
// name. A nil *Metrics disables reporting.
type Metrics struct {
	environment string

	created       metric.Int64Counter
	destroyed     metric.Int64Counter
	exhausted     metric.Int64Counter
	doubleRelease metric.Int64Counter

	registration metric.Registration

	mu      sync.RWMutex
	mirrors map[*mirror]struct{}
}

// NewMetrics registers pool instruments on meter. A nil meter uses the
// global meter provider.
func NewMetrics(meter metric.Meter, environment string) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	env := strings.TrimSpace(environment)
	if env == "" {
		env = "dev"
	}
	m := &Metrics{
		environment: env,
		mirrors:     make(map[*mirror]struct{}),
	}

	var err error
	if m.created, err = meter.Int64Counter("poolkit.pool.created",
		metric.WithDescription("Instances constructed by the pool"),
		metric.WithUnit("{instance}")); err != nil {
		return nil, fmt.Errorf("pool metrics: created counter: %w", err)
	}
	if m.destroyed, err = meter.Int64Counter("poolkit.pool.destroyed",
		metric.WithDescription("Instances destroyed by the pool"),
		metric.WithUnit("{instance}")); err != nil {
		return nil, fmt.Errorf("pool metrics: destroyed counter: %w", err)
	}
	if m.exhausted, err = meter.Int64Counter("poolkit.pool.exhausted",
		metric.WithDescription("Strict acquires rejected on an empty pool"),
		metric.WithUnit("{call}")); err != nil {
		return nil, fmt.Errorf("pool metrics: exhausted counter: %w", err)
	}
	if m.doubleRelease, err = meter.Int64Counter("poolkit.pool.double_release",
		metric.WithDescription("Releases of instances that were not acquired"),
		metric.WithUnit("{call}")); err != nil {
		return nil, fmt.Errorf("pool metrics: double release counter: %w", err)
	}

	capacity, err := meter.Int64ObservableGauge("poolkit.pool.capacity",
		metric.WithDescription("Target pool size"),
		metric.WithUnit("{instance}"))
	if err != nil {
		return nil, fmt.Errorf("pool metrics: capacity gauge: %w", err)
	}
	free, err := meter.Int64ObservableGauge("poolkit.pool.free",
		metric.WithDescription("Deactivated instances ready for reuse"),
		metric.WithUnit("{instance}"))
	if err != nil {
		return nil, fmt.Errorf("pool metrics: free gauge: %w", err)
	}
	live, err := meter.Int64ObservableGauge("poolkit.pool.live",
		metric.WithDescription("Instances currently acquired by callers"),
		metric.WithUnit("{instance}"))
	if err != nil {
		return nil, fmt.Errorf("pool metrics: live gauge: %w", err)
	}

	m.registration, err = meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		m.mu.RLock()
		defer m.mu.RUnlock()
		for mr := range m.mirrors {
			stats := mr.stats()
			attrs := metric.WithAttributes(m.attrs(mr.name)...)
			observer.ObserveInt64(capacity, int64(stats.Capacity), attrs)
			observer.ObserveInt64(free, int64(stats.Free), attrs)
			observer.ObserveInt64(live, int64(stats.Live), attrs)
		}
		return nil
	}, capacity, free, live)
	if err != nil {
		return nil, fmt.Errorf("pool metrics: register callback: %w", err)
	}
	return m, nil
}

// Close unregisters the gauge callback.
func (m *Metrics) Close() error {
	if m == nil || m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}

func (m *Metrics) track(mr *mirror) {
	if m == nil || mr == nil {
		return
	}
	m.mu.Lock()
	m.mirrors[mr] = struct{}{}
	m.mu.Unlock()
}

// untrack stops gauge reporting for a torn-down pool.
func (m *Metrics) untrack(mr *mirror) {
	if m == nil || mr == nil {
		return
	}
	m.mu.Lock()
	delete(m.mirrors, mr)
	m.mu.Unlock()
}

func (m *Metrics) attrs(pool string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("environment", m.environment),
		attribute.String("pool", pool),
	}
}

func (m *Metrics) add(counter metric.Int64Counter, pool string) {
	counter.Add(context.Background(), 1, metric.WithAttributes(m.attrs(pool)...))
}

func (m *Metrics) addCreated(pool string) {
	if m != nil {
		m.add(m.created, pool)
	}
}

func (m *Metrics) addDestroyed(pool string) {
	if m != nil {
		m.add(m.destroyed, pool)
	}
}

func (m *Metrics) addExhausted(pool string) {
	if m != nil {
		m.add(m.exhausted, pool)
	}
}

func (m *Metrics) addDoubleRelease(pool string) {
	if m != nil {
		m.add(m.doubleRelease, pool)
	}
}
