package diag

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// Tracer writes diagnostic records for subsystems whose switch is on.
// Output requires both a sink and an enabled switch; a Tracer without a
// logger never emits anything.
//
// A Tracer is safe for concurrent use.
type Tracer struct {
	reg    *Registry
	logger *slog.Logger
	counts *xsync.Map[Key, *atomic.Int64]
}

// NewTracer returns a tracer gated by r. A nil logger disables output.
func NewTracer(r *Registry, logger *slog.Logger) *Tracer {
	return &Tracer{
		reg:    r,
		logger: logger,
		counts: xsync.NewMap[Key, *atomic.Int64](),
	}
}

// Enabled reports whether records for key would be written. It panics
// with *UnknownKeyError for unregistered keys, even without a logger.
func (t *Tracer) Enabled(key Key) bool {
	on := t.reg.MustGet(key)
	return on && t.logger != nil
}

// Log writes one debug record tagged with the switch key when key is
// enabled and the logger accepts debug records.
func (t *Tracer) Log(ctx context.Context, key Key, msg string, args ...any) {
	if !t.Enabled(key) || !t.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	t.logger.With(slog.String("switch", string(key))).DebugContext(ctx, msg, args...)
	t.counter(key).Add(1)
}

// Count returns how many records were written for key. It panics with
// *UnknownKeyError for unregistered keys.
func (t *Tracer) Count(key Key) int64 {
	t.reg.MustGet(key)
	c, ok := t.counts.Load(key)
	if !ok {
		return 0
	}
	return c.Load()
}

func (t *Tracer) counter(key Key) *atomic.Int64 {
	if c, ok := t.counts.Load(key); ok {
		return c
	}
	c, _ := t.counts.LoadOrStore(key, new(atomic.Int64))
	return c
}
