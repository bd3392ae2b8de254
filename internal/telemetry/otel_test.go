package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/poolkit/internal/config"
)

func TestParseEndpoint(t *testing.T) {
	host, insecure, err := parseEndpoint("https://example.com:4318")
	require.NoError(t, err)
	require.Equal(t, "example.com:4318", host)
	require.False(t, insecure)

	host, insecure, err = parseEndpoint("http://localhost:4318")
	require.NoError(t, err)
	require.Equal(t, "localhost:4318", host)
	require.True(t, insecure)
}

func TestInitNoEndpointUsesNoop(t *testing.T) {
	provider, err := Init(context.Background(), config.TelemetryConfig{EnableMetrics: true}, config.EnvDev)
	require.NoError(t, err)
	require.False(t, provider.Enabled)
	require.NotNil(t, provider.Meter("test"))
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestInitDisabledMetricsUsesNoop(t *testing.T) {
	provider, err := Init(context.Background(), config.TelemetryConfig{OTLPEndpoint: "http://localhost:4318"}, config.EnvDev)
	require.NoError(t, err)
	require.False(t, provider.Enabled)
}

func TestInitInvalidEndpoint(t *testing.T) {
	_, err := Init(context.Background(), config.TelemetryConfig{OTLPEndpoint: "://bad", EnableMetrics: true}, config.EnvDev)
	require.Error(t, err)
}

func TestInitWithEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	provider, err := Init(context.Background(), config.TelemetryConfig{
		OTLPEndpoint:  srv.URL,
		ServiceName:   "poolkit-test",
		EnableMetrics: true,
	}, config.EnvStaging)
	require.NoError(t, err)
	require.True(t, provider.Enabled)
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNilProviderShutdown(t *testing.T) {
	var provider *Provider
	require.NoError(t, provider.Shutdown(context.Background()))
}
