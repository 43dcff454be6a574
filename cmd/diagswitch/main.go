// Package main implements the CLI driver for diagswitch.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/715d/diagswitch/internal/config"
)

// Config holds all command-line configuration options.
type Config struct {
	ConfigFiles []string // configuration files applied over the built-in table
	Sets        []string // key=bool overrides
	EnvPrefix   string   // prefix of environment overrides; empty disables them
	Verbose     bool     // enables logging and detailed output
	JSON        bool     // enables JSON output format
	Profile     bool     // enables CPU and memory profiling
	BuildTags   []string // build tags to use during package loading (check)
	Dynamic     bool     // report non-constant keys (check)
}

const (
	exitFindings = 1
	exitError    = 2
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	var cfg Config
	rootCmd := newRootCmd(&cfg)
	if err := rootCmd.Execute(); err != nil {
		_ = teardown(&cfg)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		var cErr *codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

func newRootCmd(cfg *Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "diagswitch",
		Short: "Inspect and validate diagnostic switches",
		Long: `diagswitch inspects the diagnostic switch registry of the physics engine.

Switch values start from the built-in default table and may be overridden,
in order, by configuration files (YAML, TOML or HCL), environment variables
and --set flags. Every override must name a known switch.`,
		Example: `  diagswitch list                          # Show effective switch values
  diagswitch list -c debug.yaml --json     # Apply a config file, JSON output
  DIAG_GJK=1 diagswitch get gjk            # Environment override
  diagswitch check ./...                   # Find reads of unregistered keys`,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setup(cfg)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return teardown(cfg)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("diagswitch version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	rootCmd.PersistentFlags().StringArrayVarP(&cfg.ConfigFiles, "config", "c", nil, "Configuration file (.yaml, .yml, .toml, .hcl); repeatable, later files win")
	rootCmd.PersistentFlags().StringArrayVar(&cfg.Sets, "set", nil, "Override a switch as key=bool; repeatable, applied last")
	rootCmd.PersistentFlags().StringVar(&cfg.EnvPrefix, "env-prefix", config.DefaultEnvPrefix, "Prefix of environment overrides (empty disables)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&cfg.JSON, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&cfg.Profile, "profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")

	rootCmd.AddCommand(newListCmd(cfg), newGetCmd(cfg), newCheckCmd(cfg))
	return rootCmd
}

var cpuProfile *os.File

func setup(cfg *Config) error {
	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if cfg.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.JSON {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	}

	if !cfg.Profile {
		return nil
	}

	var err error
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		cpuProfile = nil
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(cfg *Config) error {
	if !cfg.Profile || cpuProfile == nil {
		return nil
	}

	pprof.StopCPUProfile()
	defer func() {
		_ = cpuProfile.Close()
		cpuProfile = nil
	}()
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *codedError) Unwrap() error { return e.err }
