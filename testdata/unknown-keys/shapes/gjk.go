package shapes

import "example.com/unknownkeys/diag"

// Distance runs a GJK distance query.
func Distance(r *diag.Registry) float64 {
	//lint:ignore diagswitch renamed to gjkDetector in the default table
	if r.MustGet("gjkDetecter") {
		println("simplex")
	}
	return 0
}
