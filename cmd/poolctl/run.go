package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/conc"

	"github.com/coachpo/poolkit/internal/config"
	"github.com/coachpo/poolkit/internal/observability"
	"github.com/coachpo/poolkit/internal/pool"
	"github.com/coachpo/poolkit/internal/telemetry"
	"github.com/coachpo/poolkit/internal/workload"
)

const (
	meterName                = "github.com/coachpo/poolkit"
	createRetries            = 3
	metricsReadHeaderTimeout = 5 * time.Second
)

type runOptions struct {
	configPath  string
	duration    time.Duration
	steps       int
	metricsAddr string
}

type runReport struct {
	Results []workload.Result `json:"results"`
}

func runWorkload(ctx context.Context, opts runOptions, out io.Writer) error {
	cfg, loadedFromFile, err := config.LoadOrDefault(ctx, opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	zl, err := observability.NewProductionLogger(cfg.Environment == config.EnvDev)
	if err != nil {
		return fmt.Errorf("initialise logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()
	previous := observability.Log()
	observability.SetLogger(zl)
	defer observability.SetLogger(previous)
	logger := observability.Log()

	if !loadedFromFile {
		logger.Info("configuration file not found, using defaults", observability.F("path", opts.configPath))
	}
	logger.Info("configuration initialised",
		observability.F("env", string(cfg.Environment)),
		observability.F("pools", len(cfg.Pools)))

	provider, err := telemetry.Init(ctx, cfg.Telemetry, cfg.Environment)
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	metrics, err := pool.NewMetrics(provider.Meter(meterName), string(cfg.Environment))
	if err != nil {
		_ = provider.Shutdown(ctx)
		return fmt.Errorf("initialise pool metrics: %w", err)
	}
	defer func() { _ = metrics.Close() }()

	manager := pool.NewManager()
	plans, err := buildPools(ctx, cfg, manager, metrics, logger)
	if err != nil {
		_ = manager.Shutdown(ctx)
		_ = provider.Shutdown(ctx)
		return err
	}

	var lifecycle conc.WaitGroup
	addr := cfg.MetricsAddr
	if opts.metricsAddr != "" {
		addr = opts.metricsAddr
	}
	var server *http.Server
	if addr != "" {
		server = newMetricsServer(addr, manager)
		startMetricsServer(&lifecycle, logger, server)
		logger.Info("metrics listening", observability.F("addr", addr))
	}

	workloadOpts := workload.Options{
		OpsPerSecond: cfg.Workload.OpsPerSecond,
		Burst:        cfg.Workload.Burst,
		ReleaseRatio: cfg.Workload.ReleaseProbability(),
		Seed:         cfg.Workload.Seed,
		Duration:     cfg.Workload.Duration,
		Steps:        opts.steps,
	}
	if opts.duration > 0 {
		workloadOpts.Duration = opts.duration
	}
	results, runErr := workload.Run(ctx, plans, workloadOpts)
	if runErr != nil {
		logger.Error("workload failed", observability.F("error", runErr.Error()))
	}

	var outErr error
	if err := writeReport(out, results, manager); err != nil {
		outErr = fmt.Errorf("write report: %w", err)
	}

	shutdownErr := performShutdown(logger, shutdownConfig{
		server:    server,
		lifecycle: &lifecycle,
		manager:   manager,
		telemetry: provider,
	})
	return errors.Join(runErr, outErr, shutdownErr)
}

// buildPools creates one entity pool per configured name, registers it with
// manager and returns the matching workload plans in name order.
func buildPools(ctx context.Context, cfg config.AppConfig, manager *pool.Manager, metrics *pool.Metrics, logger observability.Logger) ([]workload.Plan, error) {
	plans := make([]workload.Plan, 0, len(cfg.Pools))
	for _, name := range cfg.PoolNames() {
		pc := cfg.Pools[name]
		policy, err := pc.ParsedPolicy()
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", name, err)
		}
		spawner := workload.NewSpawner(name)
		lifecycle := pool.LifecycleFuncs[*workload.Entity]{
			CreateFunc:    pool.RetryCreate(ctx, spawner.Create, backoff.WithMaxTries(createRetries)),
			SetActiveFunc: spawner.SetActive,
			DestroyFunc:   spawner.Destroy,
		}
		p, err := pool.New[*workload.Entity](name, lifecycle, pc.Capacity,
			pool.WithPolicy(policy),
			pool.WithLogger(logger),
			pool.WithMetrics(metrics))
		if err != nil {
			return nil, fmt.Errorf("create pool %s: %w", name, err)
		}
		if err := manager.Register(p); err != nil {
			p.DestroyAll()
			return nil, fmt.Errorf("register pool %s: %w", name, err)
		}
		target, resize := pc.ResizeTarget()
		plans = append(plans, workload.Plan{Pool: p, ResizeTo: target, Resize: resize})
	}
	return plans, nil
}

func newMetricsServer(addr string, manager *pool.Manager) *http.Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(pool.NewCollector(manager))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}
}

func startMetricsServer(lifecycle *conc.WaitGroup, logger observability.Logger, server *http.Server) {
	lifecycle.Go(func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", observability.F("error", err.Error()))
		}
	})
}

func writeReport(out io.Writer, results []workload.Result, manager *pool.Manager) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runReport{Results: results}); err != nil {
		return err
	}
	return manager.WriteSnapshot(out)
}

type shutdownConfig struct {
	server    *http.Server
	lifecycle *conc.WaitGroup
	manager   *pool.Manager
	telemetry *telemetry.Provider
}

func performShutdown(logger observability.Logger, cfg shutdownConfig) error {
	var failures []error
	step := func(name string, timeout time.Duration, fn func(context.Context) error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Error("shutdown step failed", observability.F("step", name), observability.F("error", err.Error()))
			failures = append(failures, fmt.Errorf("%s: %w", name, err))
			return
		}
		logger.Debug("shutdown step completed", observability.F("step", name))
	}

	if cfg.server != nil {
		step("stopping metrics server", shutdownTimeouts.metricsServer, cfg.server.Shutdown)
	}
	if cfg.lifecycle != nil {
		step("waiting for lifecycle goroutines", shutdownTimeouts.lifecycle, func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				cfg.lifecycle.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return fmt.Errorf("timeout waiting for goroutines: %w", ctx.Err())
			}
		})
	}
	if cfg.manager != nil {
		step("shutting down pool manager", shutdownTimeouts.poolManager, cfg.manager.Shutdown)
	}
	if cfg.telemetry != nil {
		step("shutting down telemetry", shutdownTimeouts.telemetry, cfg.telemetry.Shutdown)
	}
	return errors.Join(failures...)
}
