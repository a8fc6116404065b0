package core

import "fmt"

// residualTolerance is the allowed numerical noise below zero for a
// compartment residual, per §3's invariant ("non-negative up to numerical
// noise (< 1e-12 allowed)").
const residualTolerance = 1e-12

// Residuals carries each compartment's state at a cycle boundary forward
// into the next cycle, per §3.
type Residuals []float64

// Validate checks the §3 invariant: the residual count equals the
// structural model's compartment count, and every value is non-negative up
// to numerical noise.
func (r Residuals) Validate(compartmentCount int) error {
	if len(r) != compartmentCount {
		return fmt.Errorf("residual count %d does not match compartment count %d", len(r), compartmentCount)
	}
	for i, v := range r {
		if v < -residualTolerance {
			return fmt.Errorf("residual[%d] = %v is negative beyond tolerance %v", i, v, residualTolerance)
		}
	}
	return nil
}

// Clamp zeroes out every negative residual, whatever its magnitude,
// keeping numerical noise from propagating as a negative state.
func (r Residuals) Clamp() {
	for i, v := range r {
		if v < 0 {
			r[i] = 0
		}
	}
}

// ZeroResiduals returns a fresh all-zero Residuals vector for n compartments.
func ZeroResiduals(n int) Residuals {
	return make(Residuals, n)
}
