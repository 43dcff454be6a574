package keycheck

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/tools/go/packages"
)

// loadMode asks for syntax and type information of the matched packages
// only. Key arguments are read as constants from TypesInfo, so dependency
// syntax is never needed.
const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo

// LoaderOptions selects the packages to check.
type LoaderOptions struct {
	Packages  []string // patterns, "./..." when empty
	BuildTags []string // passed as -tags
	Dir       string   // working directory of the go command
	Env       []string // go command environment; nil inherits the process
}

func (o LoaderOptions) config(ctx context.Context) *packages.Config {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     o.Dir,
		Env:     o.Env,
		// Test helpers read switches too.
		Tests: true,
	}
	if len(o.BuildTags) > 0 {
		cfg.BuildFlags = []string{"-tags", strings.Join(o.BuildTags, ",")}
	}
	return cfg
}

// LoadPackages loads the packages matched by opts together with their test
// variants. Each import path is returned once, in ID order. Any load or
// type-check error fails the whole load.
func LoadPackages(ctx context.Context, opts LoaderOptions) ([]*packages.Package, error) {
	patterns := opts.Packages
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	pkgs, err := packages.Load(opts.config(ctx), patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages match %v", patterns)
	}
	if err := packageErrors(pkgs); err != nil {
		return nil, err
	}
	return deduplicatePackages(pkgs), nil
}

func packageErrors(pkgs []*packages.Package) error {
	var errs []error
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			errs = append(errs, fmt.Errorf("package %s: %w", pkg.PkgPath, e))
		}
	}
	return errors.Join(errs...)
}

// deduplicatePackages keeps one package per import path. A test variant
// such as "p [p.test]" holds every file of p, so it replaces p. Generated
// test mains ("p.test") are dropped.
func deduplicatePackages(pkgs []*packages.Package) []*packages.Package {
	byPath := make(map[string]*packages.Package)
	for _, pkg := range pkgs {
		if isTestMain(pkg) {
			continue
		}
		if cur, ok := byPath[pkg.PkgPath]; !ok || isTestVariant(pkg) && !isTestVariant(cur) {
			byPath[pkg.PkgPath] = pkg
		}
	}
	return slices.SortedFunc(maps.Values(byPath), func(a, b *packages.Package) int {
		return strings.Compare(a.ID, b.ID)
	})
}

func isTestVariant(pkg *packages.Package) bool { return strings.Contains(pkg.ID, "[") }

func isTestMain(pkg *packages.Package) bool {
	return strings.HasSuffix(pkg.ID, ".test") && !isTestVariant(pkg)
}
