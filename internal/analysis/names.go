package analysis

import (
	"go/types"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// NameCache provides concurrent caching of canonical function names.
// It is shared by every goroutine of a check run.
type NameCache struct {
	funcCache *xsync.Map[*types.Func, string]
}

func NewNameCache() *NameCache {
	return &NameCache{
		funcCache: xsync.NewMap[*types.Func, string](),
	}
}

// ComputeFuncName returns the canonical name of fn.
// For functions: "packagePath.Name".
// For methods: "packagePath.Recv.Name", with pointers and type arguments
// removed from the receiver (e.g. "example.com/diag.Registry.Get").
func (c *NameCache) ComputeFuncName(fn *types.Func) string {
	if fn == nil {
		return ""
	}
	fn = fn.Origin()
	name, ok := c.funcCache.Load(fn)
	if ok {
		return name
	}
	name = computeFuncName(fn)
	c.funcCache.Store(fn, name)
	return name
}

func computeFuncName(fn *types.Func) string {
	var builder strings.Builder
	builder.Grow(96)

	if pkg := fn.Pkg(); pkg != nil {
		builder.WriteString(pkg.Path())
		builder.WriteByte('.')
	}

	if sig, ok := fn.Type().(*types.Signature); ok {
		if recv := sig.Recv(); recv != nil {
			if name := receiverTypeName(recv.Type()); name != "" {
				builder.WriteString(name)
				builder.WriteByte('.')
			}
		}
	}

	builder.WriteString(fn.Name())
	return builder.String()
}

// receiverTypeName returns the bare name of a receiver type.
// Interface method receivers have no name and yield "".
func receiverTypeName(typ types.Type) string {
	if ptr, ok := typ.(*types.Pointer); ok {
		typ = ptr.Elem()
	}
	switch t := types.Unalias(typ).(type) {
	case *types.Named:
		return t.Obj().Name()
	default:
		return ""
	}
}
