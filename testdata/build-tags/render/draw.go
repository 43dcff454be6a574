package render

import "example.com/buildtags/diag"

// Frame draws one frame.
func Frame(r *diag.Registry) {
	if r.MustGet(diag.Broadphase) {
		println("aabb")
	}
}
