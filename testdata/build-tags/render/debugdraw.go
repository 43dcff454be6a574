//go:build debugdraw

package render

import "example.com/buildtags/diag"

// Contacts draws contact points.
func Contacts(r *diag.Registry) {
	if r.MustGet("contactPoints") {
		println("contacts")
	}
}
