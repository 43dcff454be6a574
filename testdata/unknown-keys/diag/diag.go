// Package diag is a minimal stand-in for a diagnostic switch registry.
package diag

type Key string

const (
	RigidBody  Key = "rigidBody"
	Broadphase Key = "broadphase"
)

type Registry struct {
	values map[Key]bool
}

func (r *Registry) Get(k Key) (bool, error) { return r.values[k], nil }

func (r *Registry) MustGet(k Key) bool { return r.values[k] }
