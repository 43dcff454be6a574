// Package config sources diagnostic switch overrides at startup and builds
// the frozen registry from them.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/715d/diagswitch/pkg/diag"
)

// DefaultEnvPrefix is the environment prefix used by the CLI.
const DefaultEnvPrefix = "DIAG_"

// Options configures where overrides come from. Sources are applied in
// field order, so later sources win: Files, then Environ, then Sets.
type Options struct {
	// Files are configuration files; the format is chosen by extension.
	Files []string

	// EnvPrefix selects environment variables. Empty disables the
	// environment source.
	EnvPrefix string

	// Environ holds "NAME=value" pairs, typically os.Environ().
	Environ []string

	// Sets are "key=bool" assignments, typically from the command line.
	// A bare "key" means key=true.
	Sets []string

	// Defaults replaces the built-in default table when non-nil.
	Defaults []diag.Switch

	// AllowEmpty permits an empty default table.
	AllowEmpty bool
}

// Load applies every configured source to the default table and returns
// the frozen registry. Any override naming an unknown key fails the load.
func Load(ctx context.Context, opts Options) (*diag.Registry, error) {
	defaults := opts.Defaults
	if defaults == nil {
		defaults = diag.Defaults()
	}
	t, err := newTable(defaults)
	if err != nil {
		return nil, err
	}

	files, err := readFiles(ctx, opts.Files)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := t.applyFile(f); err != nil {
			return nil, err
		}
		slog.Debug("applied config file", "path", f.path, "switches", len(f.Switches))
	}

	if opts.EnvPrefix != "" {
		if err := t.applyEnv(opts.EnvPrefix, opts.Environ); err != nil {
			return nil, err
		}
	}

	for _, s := range opts.Sets {
		if err := t.applySet(s); err != nil {
			return nil, err
		}
	}

	var dopts []diag.Option
	if opts.AllowEmpty {
		dopts = append(dopts, diag.AllowEmpty())
	}
	return diag.New(t.switches, dopts...)
}

// readFiles parses all files concurrently and returns them in input order.
func readFiles(ctx context.Context, paths []string) ([]*File, error) {
	results := make([]*File, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for idx, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := ReadFile(path)
			if err != nil {
				return err
			}
			results[idx] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// table is a mutable working copy of the default table used while
// overrides are applied. Only its final state reaches diag.New.
type table struct {
	switches []diag.Switch
	index    map[diag.Key]int
	folded   map[string][]diag.Key
}

func newTable(defaults []diag.Switch) (*table, error) {
	t := &table{
		switches: append([]diag.Switch(nil), defaults...),
		index:    make(map[diag.Key]int, len(defaults)),
		folded:   make(map[string][]diag.Key, len(defaults)),
	}
	for i, sw := range t.switches {
		if _, exists := t.index[sw.Key]; exists {
			return nil, &diag.ConfigError{Key: sw.Key, Reason: "duplicate key"}
		}
		t.index[sw.Key] = i
		fold := strings.ToLower(string(sw.Key))
		t.folded[fold] = append(t.folded[fold], sw.Key)
	}
	return t, nil
}

func (t *table) set(key diag.Key, value bool, source string) error {
	i, ok := t.index[key]
	if !ok {
		return &diag.ConfigError{Key: key, Reason: "unknown key in " + source}
	}
	t.switches[i].Value = value
	return nil
}

func (t *table) applyFile(f *File) error {
	if f.All != nil {
		for i := range t.switches {
			t.switches[i].Value = *f.All
		}
	}
	for _, sw := range f.sorted() {
		if err := t.set(sw.Key, sw.Value, f.path); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) applyEnv(prefix string, environ []string) error {
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" {
			continue
		}
		keys := t.folded[strings.ToLower(rest)]
		switch len(keys) {
		case 0:
			return &diag.ConfigError{Key: diag.Key(rest), Reason: "unknown key in environment variable " + name}
		case 1:
		default:
			return &diag.ConfigError{
				Key:    diag.Key(rest),
				Reason: fmt.Sprintf("environment variable %s matches keys %v; ambiguous key", name, keys),
			}
		}
		key := keys[0]
		on, err := parseBool(value)
		if err != nil {
			return &diag.ConfigError{Key: key, Reason: "invalid value in environment variable " + name, Err: err}
		}
		if err := t.set(key, on, "environment"); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) applySet(s string) error {
	name, value, hasValue := strings.Cut(s, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return &diag.ConfigError{Reason: fmt.Sprintf("malformed assignment %q", s)}
	}
	on := true
	if hasValue {
		var err error
		if on, err = parseBool(value); err != nil {
			return &diag.ConfigError{Key: diag.Key(name), Reason: "invalid value", Err: err}
		}
	}
	return t.set(diag.Key(name), on, "assignment")
}

// parseBool accepts the strconv forms plus on/off and yes/no.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}
