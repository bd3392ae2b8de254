package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/poolkit/internal/pool"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: " STAGING "
pools:
  " bullets ":
    capacity: 32
  sparks:
    capacity: 4
    policy: Elastic
    resizeTo: 2
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, EnvStaging, cfg.Environment)
	require.Equal(t, "poolkit", cfg.Telemetry.ServiceName)
	require.Equal(t, float64(200), cfg.Workload.OpsPerSecond)
	require.Equal(t, 20, cfg.Workload.Burst)
	require.Equal(t, 0.5, cfg.Workload.ReleaseProbability())
	require.Equal(t, 5*time.Second, cfg.Workload.Duration)
	require.Equal(t, []string{"bullets", "sparks"}, cfg.PoolNames())

	bullets := cfg.Pools["bullets"]
	require.Equal(t, 32, bullets.Capacity)
	require.Equal(t, "strict", bullets.Policy)
	_, ok := bullets.ResizeTarget()
	require.False(t, ok)

	sparks := cfg.Pools["sparks"]
	policy, err := sparks.ParsedPolicy()
	require.NoError(t, err)
	require.Equal(t, pool.PolicyElastic, policy)
	target, ok := sparks.ResizeTarget()
	require.True(t, ok)
	require.Equal(t, 2, target)
}

func TestLoadWorkloadAndTelemetry(t *testing.T) {
	path := writeConfig(t, `
metricsAddr: " :9464 "
telemetry:
  otlpEndpoint: http://collector:4318
  otlpInsecure: true
workload:
  opsPerSecond: 50
  burst: 5
  releaseRatio: 0.25
  seed: 9
  duration: 1500ms
pools:
  a:
    capacity: 1
    resizeTo: -1
`)

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, ":9464", cfg.MetricsAddr)
	require.Equal(t, "http://collector:4318", cfg.Telemetry.OTLPEndpoint)
	require.True(t, cfg.Telemetry.OTLPInsecure)
	require.Equal(t, WorkloadConfig{OpsPerSecond: 50, Burst: 5, ReleaseRatio: ptr(0.25), Seed: 9, Duration: 1500 * time.Millisecond}, cfg.Workload)
	_, ok := cfg.Pools["a"].ResizeTarget()
	require.False(t, ok)
}

func TestLoadKeepsExplicitZeroReleaseRatio(t *testing.T) {
	path := writeConfig(t, "workload:\n  releaseRatio: 0\npools:\n  a:\n    capacity: 1\n")

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Workload.ReleaseRatio)
	require.Zero(t, *cfg.Workload.ReleaseRatio)
	require.Zero(t, cfg.Workload.ReleaseProbability())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"environment": "environment: qa\npools:\n  a:\n    capacity: 1\n",
		"no pools":    "environment: dev\n",
		"capacity":    "pools:\n  a:\n    capacity: -2\n",
		"policy":      "pools:\n  a:\n    capacity: 1\n    policy: tiered\n",
		"ratio":       "workload:\n  releaseRatio: 1.5\npools:\n  a:\n    capacity: 1\n",
		"negative":    "workload:\n  releaseRatio: -0.1\npools:\n  a:\n    capacity: 1\n",
		"yaml":        "pools: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(context.Background(), writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadOrDefaultFallsBackWhenMissing(t *testing.T) {
	cfg, loaded, err := LoadOrDefault(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.False(t, loaded)
	require.NoError(t, cfg.Validate())
	require.Equal(t, []string{"bullets", "sparks"}, cfg.PoolNames())
	target, ok := cfg.Pools["bullets"].ResizeTarget()
	require.True(t, ok)
	require.Equal(t, 8, target)
}

func TestLoadOrDefaultPropagatesParseErrors(t *testing.T) {
	_, loaded, err := LoadOrDefault(context.Background(), writeConfig(t, "pools: ["))
	require.Error(t, err)
	require.False(t, loaded)
	require.True(t, strings.Contains(err.Error(), "unmarshal config"))
}

func ptr[T any](v T) *T {
	return &v
}
