// Package config loads and validates poolkit configuration from YAML.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coachpo/poolkit/internal/pool"
)

// Environment identifies the deployment environment reported in telemetry.
type Environment string

const (
	// EnvDev is the local development environment.
	EnvDev Environment = "dev"
	// EnvStaging is the pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProd is the production environment.
	EnvProd Environment = "prod"
)

const (
	defaultServiceName  = "poolkit"
	defaultOpsPerSecond = 200
	defaultBurst        = 20
	defaultReleaseRatio = 0.5
	defaultDuration     = 5 * time.Second
)

// PoolConfig sizes a single named pool.
type PoolConfig struct {
	Capacity int    `yaml:"capacity"`
	Policy   string `yaml:"policy"`
	// ResizeTo, when set and not negative, is applied halfway through a workload run.
	ResizeTo *int `yaml:"resizeTo"`
}

// ParsedPolicy returns the acquire policy named by Policy.
func (c PoolConfig) ParsedPolicy() (pool.Policy, error) {
	return pool.ParsePolicy(c.Policy)
}

// ResizeTarget returns the mid-run resize target and whether one is configured.
func (c PoolConfig) ResizeTarget() (int, bool) {
	if c.ResizeTo == nil || *c.ResizeTo < 0 {
		return 0, false
	}
	return *c.ResizeTo, true
}

// TelemetryConfig configures the OTLP metric exporter.
type TelemetryConfig struct {
	OTLPEndpoint  string `yaml:"otlpEndpoint"`
	ServiceName   string `yaml:"serviceName"`
	OTLPInsecure  bool   `yaml:"otlpInsecure"`
	EnableMetrics bool   `yaml:"enableMetrics"`
}

// WorkloadConfig drives the reference acquire/release workload.
type WorkloadConfig struct {
	OpsPerSecond float64       `yaml:"opsPerSecond"`
	Burst        int           `yaml:"burst"`
	// ReleaseRatio is the chance a step releases rather than acquires. Zero
	// is valid and means acquire-only; absent means the default.
	ReleaseRatio *float64      `yaml:"releaseRatio"`
	Seed         int64         `yaml:"seed"`
	Duration     time.Duration `yaml:"duration"`
}

// ReleaseProbability returns ReleaseRatio, or the default when it is unset.
func (w WorkloadConfig) ReleaseProbability() float64 {
	if w.ReleaseRatio == nil {
		return defaultReleaseRatio
	}
	return *w.ReleaseRatio
}

// AppConfig is the root configuration document.
type AppConfig struct {
	Environment Environment           `yaml:"environment"`
	MetricsAddr string                `yaml:"metricsAddr"`
	Telemetry   TelemetryConfig       `yaml:"telemetry"`
	Workload    WorkloadConfig        `yaml:"workload"`
	Pools       map[string]PoolConfig `yaml:"pools"`
}

// Default returns a configuration with one strict and one elastic pool.
func Default() AppConfig {
	shrink := 8
	cfg := AppConfig{
		Environment: EnvDev,
		Telemetry: TelemetryConfig{
			ServiceName:   defaultServiceName,
			EnableMetrics: true,
		},
		Pools: map[string]PoolConfig{
			"bullets": {Capacity: 16, Policy: "strict", ResizeTo: &shrink},
			"sparks":  {Capacity: 4, Policy: "elastic"},
		},
	}
	cfg.normalise()
	return cfg
}

// Load reads, normalises and validates an AppConfig from a YAML file.
func Load(ctx context.Context, configPath string) (AppConfig, error) {
	_ = ctx

	reader, closer, err := openConfigFile(configPath)
	if err != nil {
		return AppConfig{}, err
	}
	defer closer()
	return decode(reader)
}

// LoadOrDefault behaves like Load but falls back to Default when the file
// does not exist. The boolean reports whether the file was read.
func LoadOrDefault(ctx context.Context, configPath string) (AppConfig, bool, error) {
	cfg, err := Load(ctx, configPath)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return Default(), false, nil
	}
	return AppConfig{}, false, err
}

func decode(reader io.Reader) (AppConfig, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) normalise() {
	c.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	if c.Environment == "" {
		c.Environment = EnvDev
	}
	c.MetricsAddr = strings.TrimSpace(c.MetricsAddr)
	c.Telemetry.OTLPEndpoint = strings.TrimSpace(c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = defaultServiceName
	}

	if c.Workload.OpsPerSecond <= 0 {
		c.Workload.OpsPerSecond = defaultOpsPerSecond
	}
	if c.Workload.Burst <= 0 {
		c.Workload.Burst = defaultBurst
	}
	if c.Workload.ReleaseRatio == nil {
		ratio := float64(defaultReleaseRatio)
		c.Workload.ReleaseRatio = &ratio
	}
	if c.Workload.Duration <= 0 {
		c.Workload.Duration = defaultDuration
	}

	normalised := make(map[string]PoolConfig, len(c.Pools))
	for name, pc := range c.Pools {
		pc.Policy = strings.ToLower(strings.TrimSpace(pc.Policy))
		if pc.Policy == "" {
			pc.Policy = pool.PolicyStrict.String()
		}
		normalised[strings.TrimSpace(name)] = pc
	}
	c.Pools = normalised
}

// Validate performs semantic validation on the configuration.
func (c AppConfig) Validate() error {
	switch c.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("environment must be one of dev, staging, prod")
	}
	if ratio := c.Workload.ReleaseProbability(); ratio < 0 || ratio > 1 {
		return fmt.Errorf("workload releaseRatio must be within [0,1]")
	}
	if len(c.Pools) == 0 {
		return fmt.Errorf("at least one pool required")
	}
	for _, name := range c.PoolNames() {
		pc := c.Pools[name]
		if name == "" {
			return fmt.Errorf("pool names must be non-empty")
		}
		if pc.Capacity < 0 {
			return fmt.Errorf("pool %s: capacity must be >= 0", name)
		}
		if _, err := pc.ParsedPolicy(); err != nil {
			return fmt.Errorf("pool %s: %w", name, err)
		}
	}
	return nil
}

// PoolNames lists configured pools in lexical order.
func (c AppConfig) PoolNames() []string {
	names := make([]string, 0, len(c.Pools))
	for name := range c.Pools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func openConfigFile(path string) (io.Reader, func(), error) {
	candidate := filepath.Clean(strings.TrimSpace(path))

	file, err := os.Open(candidate) // #nosec G304 -- path is operator controlled.
	if err != nil {
		return nil, nil, fmt.Errorf("open config: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
