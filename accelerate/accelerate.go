// Package accelerate implements SquareAccelerator (C8): a SQUAREM
// steepest-descent extrapolation step over a flattened parameter
// vector. It has no dependency on hmmcore — callers supply the
// flatten/unflatten and feasibility check, keeping this package pure
// numeric code operating on []float64.
package accelerate

import "gonum.org/v1/gonum/floats"

// Step computes one SQUAREM extrapolation from three consecutive EM
// iterates theta0, theta1, theta2 (§4.8):
//
//	r = theta1 - theta0
//	v = (theta2 - theta1) - r
//	step = -||r|| / ||v||
//	theta' = theta0 - 2*step*r + step^2*v
//
// If theta' is infeasible, step is moved halfway toward -1 and the
// candidate recomputed; this repeats until step reaches -1 (at which
// point theta' == theta2, always feasible since it was produced by a
// plain EM iteration) or feasible is satisfied. feasible receives the
// full candidate vector and must not retain it.
func Step(theta0, theta1, theta2 []float64, feasible func([]float64) bool) []float64 {
	n := len(theta0)
	r := make([]float64, n)
	v := make([]float64, n)
	for i := 0; i < n; i++ {
		r[i] = theta1[i] - theta0[i]
		v[i] = (theta2[i] - theta1[i]) - r[i]
	}

	rNorm := floats.Norm(r, 2)
	vNorm := floats.Norm(v, 2)
	if vNorm == 0 {
		return append([]float64(nil), theta2...)
	}

	step := -rNorm / vNorm
	candidate := make([]float64, n)

	for {
		for i := 0; i < n; i++ {
			candidate[i] = theta0[i] - 2*step*r[i] + step*step*v[i]
		}
		if feasible(candidate) {
			return candidate
		}
		if step == -1 {
			return append([]float64(nil), theta2...)
		}
		step = (step - 1) / 2
		if d := step + 1; d > -1e-12 && d < 1e-12 {
			step = -1
		}
	}
}
