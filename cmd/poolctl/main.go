// Command poolctl validates pool configuration and drives a reference
// workload against the configured pools.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coachpo/poolkit/internal/config"
)

const defaultConfigPath = "config/app.yaml"

var version = "0.1.0"

func main() {
	ctx, cancel := newSignalContext()
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "poolctl",
		Short:         "Inspect and exercise object pools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", fmt.Sprintf("Path to configuration file (default: %s)", defaultConfigPath))

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "poolctl v%s\n", version)
		},
	})
	root.AddCommand(newValidateCommand())
	root.AddCommand(newRunCommand())
	return root
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a configuration file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := resolveConfigPath(cmd)
			cfg, err := config.Load(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("validate %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: env=%s pools=%d\n", cfg.Environment, len(cfg.Pools))
			for _, name := range cfg.PoolNames() {
				pc := cfg.Pools[name]
				policy, _ := pc.ParsedPolicy()
				line := fmt.Sprintf("  %s capacity=%d policy=%s", name, pc.Capacity, policy)
				if target, ok := pc.ResizeTarget(); ok {
					line += fmt.Sprintf(" resizeTo=%d", target)
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reference workload against every configured pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.configPath = resolveConfigPath(cmd)
			return runWorkload(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Override the configured workload duration")
	cmd.Flags().IntVar(&opts.steps, "steps", 0, "Run a fixed number of operations per pool instead of a timed run")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides metricsAddr)")
	return cmd
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func resolveConfigPath(cmd *cobra.Command) string {
	if value, err := cmd.Flags().GetString("config"); err == nil && value != "" {
		return value
	}
	return filepath.Clean(defaultConfigPath)
}

// shutdownTimeouts bound each graceful shutdown step.
var shutdownTimeouts = struct {
	metricsServer time.Duration
	lifecycle     time.Duration
	poolManager   time.Duration
	telemetry     time.Duration
}{
	metricsServer: 5 * time.Second,
	lifecycle:     5 * time.Second,
	poolManager:   5 * time.Second,
	telemetry:     5 * time.Second,
}
