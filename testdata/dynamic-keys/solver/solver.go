package solver

import "example.com/dynamickeys/diag"

// Solve runs the constraint solver, tracing the named subsystem.
func Solve(r *diag.Registry, subsystem string) {
	if r.MustGet(diag.Key(subsystem)) {
		println("iterate")
	}
	if r.MustGet(diag.RigidBody) {
		println("bodies")
	}
}
