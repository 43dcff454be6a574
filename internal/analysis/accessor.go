// Package analysis resolves registry accessor call sites in type-checked Go code.
package analysis

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"iter"
	"strings"
)

// diagPackage is the import path of the registry package.
const diagPackage = "github.com/715d/diagswitch/pkg/diag"

// Accessor describes a function or method that reads a switch by key.
type Accessor struct {
	// Package is the import path declaring the accessor.
	Package string `yaml:"package"`

	// Type is the receiver type name. Empty for package-level functions.
	Type string `yaml:"type,omitempty"`

	// Method is the function or method name.
	Method string `yaml:"method"`

	// Arg is the index of the key argument.
	Arg int `yaml:"arg"`
}

// Name returns the canonical name, matching NameCache.ComputeFuncName.
func (a Accessor) Name() string {
	if a.Type == "" {
		return a.Package + "." + a.Method
	}
	return a.Package + "." + a.Type + "." + a.Method
}

func (a Accessor) String() string {
	short := a.Package[strings.LastIndexByte(a.Package, '/')+1:]
	if a.Type == "" {
		return short + "." + a.Method
	}
	return fmt.Sprintf("%s.%s.%s", short, a.Type, a.Method)
}

// DefaultAccessors returns the key-reading methods of the registry package.
func DefaultAccessors() []Accessor {
	return []Accessor{
		{Package: diagPackage, Type: "Registry", Method: "Get", Arg: 0},
		{Package: diagPackage, Type: "Registry", Method: "MustGet", Arg: 0},
		{Package: diagPackage, Type: "Registry", Method: "Has", Arg: 0},
		{Package: diagPackage, Type: "Tracer", Method: "Enabled", Arg: 0},
		{Package: diagPackage, Type: "Tracer", Method: "Log", Arg: 1},
		{Package: diagPackage, Type: "Tracer", Method: "Count", Arg: 0},
	}
}

// CallSite is a resolved accessor call.
type CallSite struct {
	Call     *ast.CallExpr
	Accessor Accessor

	// Key is the constant key argument. Valid only when Constant is true.
	Key      string
	Constant bool
}

// Matcher resolves calls against a fixed accessor set.
type Matcher struct {
	byName    map[string]Accessor
	nameCache *NameCache
}

// NewMatcher returns a matcher for accessors. A nil cache gets a private one.
func NewMatcher(accessors []Accessor, cache *NameCache) *Matcher {
	if cache == nil {
		cache = NewNameCache()
	}
	m := &Matcher{
		byName:    make(map[string]Accessor, len(accessors)),
		nameCache: cache,
	}
	for _, a := range accessors {
		m.byName[a.Name()] = a
	}
	return m
}

// Match reports whether call invokes an accessor and extracts its key argument.
func (m *Matcher) Match(info *types.Info, call *ast.CallExpr) (CallSite, bool) {
	return m.match(info, nil, call)
}

// Sites yields every accessor call in files, including calls through local
// variables bound to an accessor, as in get := r.MustGet; get("key").
func (m *Matcher) Sites(info *types.Info, files []*ast.File) iter.Seq[CallSite] {
	return func(yield func(CallSite) bool) {
		bound := boundFuncs(info, files)
		for _, file := range files {
			stop := false
			ast.Inspect(file, func(n ast.Node) bool {
				if stop {
					return false
				}
				call, ok := n.(*ast.CallExpr)
				if !ok {
					return true
				}
				if site, ok := m.match(info, bound, call); ok && !yield(site) {
					stop = true
					return false
				}
				return true
			})
			if stop {
				return
			}
		}
	}
}

func (m *Matcher) match(info *types.Info, bound map[*types.Var]callee, call *ast.CallExpr) (CallSite, bool) {
	c := calledFunc(info, bound, call)
	if c.fn == nil {
		return CallSite{}, false
	}
	acc, ok := m.byName[m.nameCache.ComputeFuncName(c.fn)]
	arg := acc.Arg + c.shift
	if !ok || arg >= len(call.Args) {
		return CallSite{}, false
	}

	site := CallSite{Call: call, Accessor: acc}
	if tv, ok := info.Types[call.Args[arg]]; ok && tv.Value != nil && tv.Value.Kind() == constant.String {
		site.Key = constant.StringVal(tv.Value)
		site.Constant = true
	}
	return site, true
}

// callee is a statically known function. shift is 1 for method
// expressions, whose receiver is passed as the first argument.
type callee struct {
	fn    *types.Func
	shift int
}

// calledFunc returns the static callee of call. fn is nil for dynamic
// calls, conversions and builtins.
func calledFunc(info *types.Info, bound map[*types.Var]callee, call *ast.CallExpr) callee {
	fun := ast.Unparen(call.Fun)
	if id, ok := fun.(*ast.Ident); ok {
		if v, ok := info.Uses[id].(*types.Var); ok {
			return bound[v]
		}
	}
	return funcValue(info, fun)
}

// funcValue resolves an expression denoting a function or method value.
func funcValue(info *types.Info, expr ast.Expr) callee {
	var ident *ast.Ident
	switch e := ast.Unparen(expr).(type) {
	case *ast.Ident:
		ident = e
	case *ast.SelectorExpr:
		if sel, ok := info.Selections[e]; ok {
			fn, _ := sel.Obj().(*types.Func)
			switch sel.Kind() {
			case types.MethodExpr:
				return callee{fn: fn, shift: 1}
			case types.MethodVal:
				return callee{fn: fn}
			}
			return callee{}
		}
		// Qualified identifier: pkg.Func
		ident = e.Sel
	case *ast.IndexExpr:
		// Explicit instantiation: f[T]
		if id, ok := ast.Unparen(e.X).(*ast.Ident); ok {
			ident = id
		}
	}
	if ident == nil {
		return callee{}
	}
	fn, _ := info.Uses[ident].(*types.Func)
	return callee{fn: fn}
}

// boundFuncs maps variables assigned exactly once from a function or
// method value to that function. Variables assigned more than once are
// left out since their callee is not static.
func boundFuncs(info *types.Info, files []*ast.File) map[*types.Var]callee {
	bound := make(map[*types.Var]callee)
	assigned := make(map[*types.Var]int)
	bind := func(lhs []*ast.Ident, rhs []ast.Expr) {
		for i, id := range lhs {
			v, ok := info.ObjectOf(id).(*types.Var)
			if !ok {
				continue
			}
			assigned[v]++
			if len(lhs) != len(rhs) {
				continue
			}
			if c := funcValue(info, rhs[i]); c.fn != nil {
				bound[v] = c
			}
		}
	}
	for _, file := range files {
		ast.Inspect(file, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.AssignStmt:
				lhs := make([]*ast.Ident, 0, len(n.Lhs))
				for _, e := range n.Lhs {
					if id, ok := ast.Unparen(e).(*ast.Ident); ok {
						lhs = append(lhs, id)
					}
				}
				if len(lhs) == len(n.Lhs) {
					bind(lhs, n.Rhs)
				} else {
					bind(lhs, nil)
				}
			case *ast.ValueSpec:
				bind(n.Names, n.Values)
			case *ast.UnaryExpr:
				// &get may be written through.
				if id, ok := ast.Unparen(n.X).(*ast.Ident); ok && n.Op == token.AND {
					if v, ok := info.Uses[id].(*types.Var); ok {
						assigned[v] += 2
					}
				}
			}
			return true
		})
	}
	for v, n := range assigned {
		if n > 1 {
			delete(bound, v)
		}
	}
	return bound
}
