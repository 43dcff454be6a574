// Package diag provides a frozen, process-wide registry of named diagnostic switches.
//
// A registry is built once from a complete table of keys and default values
// and never changes afterwards, so any number of goroutines may read it
// without synchronization.
package diag

import (
	"fmt"
	"iter"
	"slices"
)

// Key identifies a diagnostic switch.
type Key string

// Switch is a single entry of a default table.
type Switch struct {
	Key   Key  `json:"key" yaml:"key"`
	Value bool `json:"value" yaml:"value"`
}

// Registry is an immutable mapping from keys to boolean values.
// The zero value is an empty registry; use New to build one.
type Registry struct {
	order  []Key
	values map[Key]bool
}

// Options control registry construction.
type Options struct {
	// AllowEmpty permits a table with no switches. A deployment that wants
	// zero diagnostics has to say so explicitly.
	AllowEmpty bool
}

// Option modifies Options.
type Option func(*Options)

// AllowEmpty permits building a registry from an empty table.
func AllowEmpty() Option { return func(o *Options) { o.AllowEmpty = true } }

// New builds a frozen registry from table. The order of table is kept for
// enumeration. The table is copied.
func New(table []Switch, opts ...Option) (*Registry, error) {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}

	if len(table) == 0 && !o.AllowEmpty {
		return nil, &ConfigError{Reason: "default table is empty"}
	}

	r := &Registry{
		order:  make([]Key, 0, len(table)),
		values: make(map[Key]bool, len(table)),
	}
	for i, sw := range table {
		if sw.Key == "" {
			return nil, &ConfigError{Reason: fmt.Sprintf("empty key at index %d", i)}
		}
		if _, exists := r.values[sw.Key]; exists {
			return nil, &ConfigError{Key: sw.Key, Reason: "duplicate key"}
		}
		r.order = append(r.order, sw.Key)
		r.values[sw.Key] = sw.Value
	}
	return r, nil
}

// MustNew is like New but panics on error. Useful for package-level tables.
func MustNew(table []Switch, opts ...Option) *Registry {
	r, err := New(table, opts...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the value of key. An unknown key yields *UnknownKeyError;
// it never defaults to false.
func (r *Registry) Get(key Key) (bool, error) {
	v, ok := r.values[key]
	if !ok {
		return false, &UnknownKeyError{Key: key}
	}
	return v, nil
}

// MustGet returns the value of key and panics with *UnknownKeyError if the
// key is not registered. An unknown key is a typo or a stale reference in
// the caller.
func (r *Registry) MustGet(key Key) bool {
	v, err := r.Get(key)
	if err != nil {
		panic(err)
	}
	return v
}

// Has reports whether key is registered.
func (r *Registry) Has(key Key) bool {
	_, ok := r.values[key]
	return ok
}

// Len returns the number of switches.
func (r *Registry) Len() int { return len(r.order) }

// Keys returns the registered keys in table order. The sequence can be
// iterated any number of times.
func (r *Registry) Keys() iter.Seq[Key] {
	return func(yield func(Key) bool) {
		for _, k := range r.order {
			if !yield(k) {
				return
			}
		}
	}
}

// All returns keys and their values in table order.
func (r *Registry) All() iter.Seq2[Key, bool] {
	return func(yield func(Key, bool) bool) {
		for _, k := range r.order {
			if !yield(k, r.values[k]) {
				return
			}
		}
	}
}

// Table returns a copy of the table the registry was built from.
func (r *Registry) Table() []Switch {
	table := make([]Switch, 0, len(r.order))
	for k, v := range r.All() {
		table = append(table, Switch{Key: k, Value: v})
	}
	return table
}

// Enabled returns the keys whose value is true, in table order.
func (r *Registry) Enabled() []Key {
	var keys []Key
	for k, v := range r.All() {
		if v {
			keys = append(keys, k)
		}
	}
	return slices.Clip(keys)
}
