// Package keycheck reports diagnostic switch reads whose key is not registered.
//
// The registry treats an unknown key as a programming error and panics at
// the first read. The checker finds those reads before the program runs by
// inspecting every call to a registry accessor with a constant key.
package keycheck

import (
	"cmp"
	"fmt"
	"log/slog"
	goruntime "runtime"
	"slices"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"

	"github.com/715d/diagswitch/internal/analysis"
	"github.com/715d/diagswitch/pkg/diag"
	"github.com/715d/diagswitch/pkg/suppress"
)

// Options configures a Checker.
type Options struct {
	// Keys are the registered keys. Defaults to the built-in table.
	Keys []diag.Key

	// Accessors are the key-reading functions to inspect. Defaults to
	// analysis.DefaultAccessors().
	Accessors []analysis.Accessor

	// ReportDynamic also reports accessor calls with a non-constant key.
	ReportDynamic bool
}

// Checker validates accessor call sites against a key set.
type Checker struct {
	opts    Options
	keys    map[string]struct{}
	matcher *analysis.Matcher
}

// NewChecker creates a checker.
func NewChecker(opts Options) *Checker {
	if opts.Keys == nil {
		for k := range diag.MustNew(diag.Defaults()).Keys() {
			opts.Keys = append(opts.Keys, k)
		}
	}
	if opts.Accessors == nil {
		opts.Accessors = analysis.DefaultAccessors()
	}
	keys := make(map[string]struct{}, len(opts.Keys))
	for _, k := range opts.Keys {
		keys[string(k)] = struct{}{}
	}
	return &Checker{
		opts:    opts,
		keys:    keys,
		matcher: analysis.NewMatcher(opts.Accessors, analysis.NewNameCache()),
	}
}

// Check inspects pkgs and returns findings ordered by position.
func (c *Checker) Check(pkgs []*packages.Package) ([]Finding, error) {
	// Each goroutine writes only its own index.
	results := make([][]Finding, len(pkgs))

	var wg errgroup.Group
	wg.SetLimit(goruntime.NumCPU())
	for idx, pkg := range pkgs {
		wg.Go(func() error {
			findings, err := c.checkPackage(pkg)
			if err != nil {
				return fmt.Errorf("package %s: %w", pkg.PkgPath, err)
			}
			results[idx] = findings
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	var all []Finding
	for _, r := range results {
		all = append(all, r...)
	}
	slices.SortFunc(all, func(a, b Finding) int {
		return cmp.Or(
			cmp.Compare(a.Position.Filename, b.Position.Filename),
			cmp.Compare(a.Position.Line, b.Position.Line),
			cmp.Compare(a.Position.Column, b.Position.Column),
		)
	})
	// Test variants share files with their regular package.
	all = slices.CompactFunc(all, func(a, b Finding) bool {
		return a.Position == b.Position && a.Key == b.Key
	})
	return all, nil
}

func (c *Checker) checkPackage(pkg *packages.Package) ([]Finding, error) {
	if pkg.TypesInfo == nil {
		return nil, fmt.Errorf("missing type information")
	}

	sc := suppress.NewChecker()
	if err := sc.Load(pkg.Fset, pkg.Syntax); err != nil {
		return nil, fmt.Errorf("loading suppressions: %w", err)
	}

	var findings []Finding
	var calls int
	for site := range c.matcher.Sites(pkg.TypesInfo, pkg.Syntax) {
		calls++
		f := Finding{
			Key:      site.Key,
			Accessor: site.Accessor.String(),
			Package:  pkg.PkgPath,
			Position: pkg.Fset.Position(site.Call.Pos()),
		}
		switch {
		case !site.Constant:
			if !c.opts.ReportDynamic {
				continue
			}
			f.Kind = KindDynamic
			f.Reason = "key is not a constant"
		case c.known(site.Key):
			continue
		default:
			f.Kind = KindUnknown
			f.Reason = "key is not registered"
		}
		f.Suppressed, f.SuppressReason = sc.IsSuppressed(f.Position)
		findings = append(findings, f)
	}

	slog.Debug("checked package", "pkg", pkg.PkgPath, "accessor_calls", calls,
		"suppressed_lines", sc.Len(), "findings", len(findings))
	return findings, nil
}

func (c *Checker) known(key string) bool {
	_, ok := c.keys[key]
	return ok
}
