package calculators

import (
	"fmt"

	"github.com/tucuxi-go/pkengine/core"
	"gonum.org/v1/gonum/mat"
)

// dispositionSpec is the structural model's disposition-only linear
// system: state vector length nDisp (central compartment at index 0,
// peripherals after), matrix A such that dx/dt = Ax, and the volume
// converting each compartment's amount into a concentration.
type dispositionSpec struct {
	n       int
	a       *mat.Dense
	volumes []float64
}

// buildDispositionMatrix assembles the disposition system for a linear
// structural model from its resolved parameters, per §4.4's closed-form
// requirement for one- and two-compartment (and, by the same
// construction, three-compartment) linear models.
func buildDispositionMatrix(structural core.StructuralModel, values map[string]float64) (dispositionSpec, error) {
	switch structural {
	case core.ModelLinear1CompMacro:
		cl, v, err := need2(values, ParamCL, ParamV)
		if err != nil {
			return dispositionSpec{}, err
		}
		k10 := cl / v
		a := mat.NewDense(1, 1, []float64{-k10})
		return dispositionSpec{n: 1, a: a, volumes: []float64{v}}, nil

	case core.ModelLinear2CompMacro:
		cl, v1, err := need2(values, ParamCL, ParamV1)
		if err != nil {
			return dispositionSpec{}, err
		}
		q, v2, err := need2(values, ParamQ, ParamV2)
		if err != nil {
			return dispositionSpec{}, err
		}
		k10, k12, k21 := cl/v1, q/v1, q/v2
		a := mat.NewDense(2, 2, []float64{
			-(k10 + k12), k21,
			k12, -k21,
		})
		return dispositionSpec{n: 2, a: a, volumes: []float64{v1, v2}}, nil

	case core.ModelLinear2CompMicro:
		k10, k12, err := need2(values, ParamK10, ParamK12)
		if err != nil {
			return dispositionSpec{}, err
		}
		k21, v1, err := need2(values, ParamK21, ParamV1)
		if err != nil {
			return dispositionSpec{}, err
		}
		v2 := v1
		if v, ok := values[ParamV2]; ok {
			v2 = v
		}
		a := mat.NewDense(2, 2, []float64{
			-(k10 + k12), k21,
			k12, -k21,
		})
		return dispositionSpec{n: 2, a: a, volumes: []float64{v1, v2}}, nil

	case core.ModelLinear3CompMacro:
		cl, v1, err := need2(values, ParamCL, ParamV1)
		if err != nil {
			return dispositionSpec{}, err
		}
		q2, v2, err := need2(values, ParamQ2, ParamV2)
		if err != nil {
			return dispositionSpec{}, err
		}
		q3, v3, err := need2(values, ParamQ3, ParamV3)
		if err != nil {
			return dispositionSpec{}, err
		}
		k10, k12, k21 := cl/v1, q2/v1, q2/v2
		k13, k31 := q3/v1, q3/v3
		a := mat.NewDense(3, 3, []float64{
			-(k10 + k12 + k13), k21, k31,
			k12, -k21, 0,
			k13, 0, -k31,
		})
		return dispositionSpec{n: 3, a: a, volumes: []float64{v1, v2, v3}}, nil
	}
	return dispositionSpec{}, fmt.Errorf("no linear disposition matrix for structural model %q", structural)
}

func need2(values map[string]float64, a, b string) (float64, float64, error) {
	av, ok := values[a]
	if !ok {
		return 0, 0, fmt.Errorf("missing required parameter %q", a)
	}
	bv, ok := values[b]
	if !ok {
		return 0, 0, fmt.Errorf("missing required parameter %q", b)
	}
	return av, bv, nil
}

// withAbsorption extends a disposition spec with an absorption
// compartment at the last index, coupled to the central compartment
// (index 0) via Ka, per §4.4's extravascular absorption models.
func withAbsorption(spec dispositionSpec, ka float64) dispositionSpec {
	n := spec.n + 1
	ext := mat.NewDense(n, n, nil)
	for i := 0; i < spec.n; i++ {
		for j := 0; j < spec.n; j++ {
			ext.Set(i, j, spec.a.At(i, j))
		}
	}
	ext.Set(0, spec.n, ka)
	ext.Set(spec.n, spec.n, -ka)
	return dispositionSpec{n: n, a: ext, volumes: append(append([]float64{}, spec.volumes...), 1)}
}
