package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/715d/diagswitch/internal/config"
	"github.com/715d/diagswitch/pkg/diag"
	"github.com/715d/diagswitch/pkg/keycheck"
)

func loadRegistry(ctx context.Context, cfg *Config) (*diag.Registry, error) {
	r, err := config.Load(ctx, config.Options{
		Files:     cfg.ConfigFiles,
		EnvPrefix: cfg.EnvPrefix,
		Environ:   os.Environ(),
		Sets:      cfg.Sets,
	})
	if err != nil {
		return nil, errWithCode(fmt.Errorf("load configuration: %w", err), exitError)
	}
	slog.Debug("registry loaded", "switches", r.Len(), "enabled", r.Enabled())
	return r, nil
}

func newListCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every switch and its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := loadRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if cfg.JSON {
				return writeJSON(cmd.OutOrStdout(), jSwitches{
					Switches:  r.Table(),
					Version:   version,
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				})
			}
			return formatTable(cmd.OutOrStdout(), r)
		},
	}
}

func newGetCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print the effective value of one switch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := loadRegistry(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			v, err := r.Get(diag.Key(args[0]))
			if err != nil {
				return errWithCode(err, exitError)
			}
			if cfg.JSON {
				return writeJSON(cmd.OutOrStdout(), diag.Switch{Key: diag.Key(args[0]), Value: v})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), v)
			return err
		},
	}
}

func newCheckCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [packages...]",
		Short: "Report switch reads of unregistered keys",
		Long: `check loads Go packages and reports every registry read whose constant key
is not in the effective switch table. Calls through a local variable bound
once to an accessor (get := r.MustGet) are checked too.

Findings can be silenced with //nolint:diagswitch or
//lint:ignore diagswitch <reason> at the end of the line, or alone on the
line above.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns := args
			if len(patterns) == 0 {
				patterns = []string{"./..."}
			}
			return runCheck(cmd.Context(), cmd.OutOrStdout(), cfg, patterns)
		},
	}
	cmd.Flags().StringSliceVar(&cfg.BuildTags, "build-tags", []string{}, "Build tags to use during package loading")
	cmd.Flags().BoolVar(&cfg.Dynamic, "dynamic", false, "Also report reads with a non-constant key")
	return cmd
}

func runCheck(ctx context.Context, w io.Writer, cfg *Config, patterns []string) error {
	start := time.Now()
	r, err := loadRegistry(ctx, cfg)
	if err != nil {
		return err
	}

	slog.Info("loading packages", "packages", patterns)
	if len(cfg.BuildTags) > 0 {
		slog.Info("using build tags", "tags", cfg.BuildTags)
	}
	pkgs, err := keycheck.LoadPackages(ctx, keycheck.LoaderOptions{
		Packages:  patterns,
		BuildTags: cfg.BuildTags,
	})
	if err != nil {
		return errWithCode(fmt.Errorf("loading packages: %w", err), exitError)
	}
	slog.Info("loaded packages", "num", len(pkgs))

	var keys []diag.Key
	for k := range r.Keys() {
		keys = append(keys, k)
	}
	findings, err := keycheck.NewChecker(keycheck.Options{
		Keys:          keys,
		ReportDynamic: cfg.Dynamic,
	}).Check(pkgs)
	if err != nil {
		return errWithCode(fmt.Errorf("check packages: %w", err), exitError)
	}
	slog.Info("check completed", "dur", time.Since(start), "findings", len(findings))

	if cfg.JSON {
		err = writeJSON(w, jCheck{
			Findings:  nonNil(findings),
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	} else {
		_, err = io.WriteString(w, formatFindings(findings, cfg.Verbose))
	}
	if err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitError)
	}

	if len(keycheck.Unsuppressed(findings)) > 0 {
		return errWithCode(nil, exitFindings)
	}
	return nil
}

func formatTable(w io.Writer, r *diag.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for k, v := range r.All() {
		fmt.Fprintf(tw, "%s\t%t\n", k, v)
	}
	return tw.Flush()
}

func formatFindings(findings []keycheck.Finding, verbose bool) string {
	var output strings.Builder
	for _, f := range findings {
		if f.Suppressed && !verbose {
			continue
		}
		// Format: filename:line:column accessor("key")
		output.WriteString(fmt.Sprintf("%s:%d:%d %s(%q)",
			f.Position.Filename, f.Position.Line, f.Position.Column, f.Accessor, f.Key))
		if verbose {
			output.WriteString(" (" + f.Reason)
			if f.Suppressed {
				output.WriteString("; suppressed: " + f.SuppressReason)
			}
			output.WriteString(")")
		}
		output.WriteByte('\n')
	}
	return output.String()
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling json output: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func nonNil(findings []keycheck.Finding) []keycheck.Finding {
	if findings == nil {
		return []keycheck.Finding{}
	}
	return findings
}

type jSwitches struct {
	Switches  []diag.Switch `json:"switches"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
}

type jCheck struct {
	Findings  []keycheck.Finding `json:"findings"`
	Version   string             `json:"version"`
	Timestamp string             `json:"timestamp"`
}
