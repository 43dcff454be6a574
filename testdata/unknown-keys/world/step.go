package world

import "example.com/unknownkeys/diag"

// Step advances the simulation by one tick.
func Step(r *diag.Registry) {
	if r.MustGet(diag.RigidBody) {
		println("integrate")
	}
	if r.MustGet("broadPhase") {
		println("pairs")
	}
	if on, _ := r.Get("discreteDynamicsWorld"); on {
		println("step")
	}
}
