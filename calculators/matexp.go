package calculators

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// matrixExp returns expm(A*t) via eigendecomposition, per §4.4's
// closed-form requirement: compartmental disposition matrices are
// diagonalizable with real eigenvalues, so the reconstruction from
// gonum/mat's Eigen keeps only the real parts.
func matrixExp(a *mat.Dense, t float64) (*mat.Dense, error) {
	n, _ := a.Dims()
	if n == 1 {
		lambda := a.At(0, 0)
		return mat.NewDense(1, 1, []float64{math.Exp(lambda * t)}), nil
	}

	var eig mat.Eigen
	if ok := eig.Factorize(a, mat.EigenRight); !ok {
		return nil, fmt.Errorf("eigendecomposition of disposition matrix failed")
	}
	values := eig.Values(nil)
	var vectors mat.CDense
	eig.VectorsTo(&vectors)

	v := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v.Set(i, j, real(vectors.At(i, j)))
		}
	}
	var vInv mat.Dense
	if err := vInv.Inverse(v); err != nil {
		return nil, fmt.Errorf("inverting eigenvector matrix: %w", err)
	}
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, math.Exp(real(values[i])*t))
	}
	var tmp, result mat.Dense
	tmp.Mul(v, d)
	result.Mul(&tmp, &vInv)
	return &result, nil
}

// dominantDecayRate returns the smallest-magnitude-real-part eigenvalue of
// a (the slowest-decaying mode), used to derive the terminal elimination
// half-life for the steady-state prelude cycle count, per §4.1.
func dominantDecayRate(a *mat.Dense) (float64, error) {
	n, _ := a.Dims()
	if n == 1 {
		return a.At(0, 0), nil
	}
	var eig mat.Eigen
	if ok := eig.Factorize(a, mat.EigenRight); !ok {
		return 0, fmt.Errorf("eigendecomposition of disposition matrix failed")
	}
	values := eig.Values(nil)
	slowest := real(values[0])
	for _, lambda := range values[1:] {
		if re := real(lambda); re > slowest {
			slowest = re
		}
	}
	return slowest, nil
}
