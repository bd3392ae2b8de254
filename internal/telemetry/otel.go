// Package telemetry configures the OpenTelemetry meter provider for poolkit.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	apimetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/coachpo/poolkit/internal/config"
)

const exportInterval = 15 * time.Second

// Provider holds the meter provider and its shutdown hook.
type Provider struct {
	MeterProvider apimetric.MeterProvider
	Enabled       bool

	shutdown func(context.Context) error
}

// Shutdown flushes and stops the exporter. It is a no-op for disabled telemetry.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Meter returns a named meter from the configured provider.
func (p *Provider) Meter(name string) apimetric.Meter {
	return p.MeterProvider.Meter(name)
}

// Init installs a global meter provider. Without an endpoint, or with metrics
// disabled, a noop provider is installed.
func Init(ctx context.Context, cfg config.TelemetryConfig, env config.Environment) (*Provider, error) {
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "poolkit"
	}

	if endpoint == "" || !cfg.EnableMetrics {
		mp := noop.NewMeterProvider()
		otel.SetMeterProvider(mp)
		return &Provider{MeterProvider: mp}, nil
	}

	host, insecure, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(host)}
	if insecure || cfg.OTLPInsecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", service),
		attribute.String("deployment.environment", string(env)),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	return &Provider{
		MeterProvider: mp,
		Enabled:       true,
		shutdown:      mp.Shutdown,
	}, nil
}

func parseEndpoint(raw string) (string, bool, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse otlp endpoint: %w", err)
	}
	host := parsed.Host
	if host == "" {
		host = raw
	}
	insecure := parsed.Scheme != "https"
	return host, insecure, nil
}
