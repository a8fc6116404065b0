package calculators

import (
	"math"

	"github.com/tucuxi-go/pkengine/core"
	"gonum.org/v1/gonum/mat"
)

// linearCalculator solves one cycle of a linear compartmental model under
// one absorption model, by closed-form matrix exponential, per §4.4. The
// disposition compartments occupy indices [0, nDisp); an absorption
// compartment, when the absorption model has one, occupies the last
// index.
type linearCalculator struct {
	structural core.StructuralModel
	absorption core.AbsorptionModel
}

func (c linearCalculator) disposition(values map[string]float64) (dispositionSpec, error) {
	return buildDispositionMatrix(c.structural, values)
}

func (c linearCalculator) hasAbsorptionCompartment() bool {
	return c.absorption == core.AbsorptionExtravascular || c.absorption == core.AbsorptionExtravascularLag
}

func (c linearCalculator) CompartmentCount() int {
	spec, err := c.disposition(zeroValuesFor(c.structural))
	if err != nil {
		return 0
	}
	if c.hasAbsorptionCompartment() {
		return spec.n + 1
	}
	return spec.n
}

// zeroValuesFor supplies a throwaway parameter set wide enough to size a
// structural model's disposition matrix without real values, used only by
// CompartmentCount's best-effort initial sizing.
func zeroValuesFor(structural core.StructuralModel) map[string]float64 {
	one := 1.0
	switch structural {
	case core.ModelLinear1CompMacro:
		return map[string]float64{ParamCL: one, ParamV: one}
	case core.ModelLinear2CompMacro:
		return map[string]float64{ParamCL: one, ParamV1: one, ParamQ: one, ParamV2: one}
	case core.ModelLinear2CompMicro:
		return map[string]float64{ParamK10: one, ParamK12: one, ParamK21: one, ParamV1: one}
	case core.ModelLinear3CompMacro:
		return map[string]float64{ParamCL: one, ParamV1: one, ParamQ2: one, ParamV2: one, ParamQ3: one, ParamV3: one}
	}
	return nil
}

func (c linearCalculator) Check(intake core.IntakeEvent, parameters core.PKParameters) error {
	if _, err := c.disposition(parameters.Values); err != nil {
		return err
	}
	switch c.absorption {
	case core.AbsorptionExtravascular, core.AbsorptionExtravascularLag:
		if _, ok := parameters.Values[ParamKa]; !ok {
			return &core.ErrInvalidParameters{Parameter: ParamKa, Value: 0}
		}
		if c.absorption == core.AbsorptionExtravascularLag {
			tlag, ok := parameters.Values[ParamTlag]
			if !ok {
				return &core.ErrInvalidParameters{Parameter: ParamTlag, Value: 0}
			}
			if core.DurationFromHours(tlag).Hours() > intake.Interval.Hours() {
				return &core.ErrLagTooLong{Lag: core.DurationFromHours(tlag), Interval: intake.Interval}
			}
		}
	case core.AbsorptionInfusion:
		// zero-duration infusions fall back to an instantaneous bolus; see Compute.
	}
	return nil
}

func (c linearCalculator) Compute(intake core.IntakeEvent, parameters core.PKParameters, previousResiduals core.Residuals, sampleTimesHours []float64) ([]core.CompartmentConcentrations, core.Residuals, error) {
	spec, err := c.disposition(parameters.Values)
	if err != nil {
		return nil, nil, err
	}
	hasAbsorption := c.hasAbsorptionCompartment()
	if hasAbsorption {
		ka := parameters.MustGet(ParamKa)
		spec = withAbsorption(spec, ka)
	}
	n := spec.n

	x0 := make([]float64, n)
	copy(x0, previousResiduals)

	doseMass := intake.Dose * bioavailability(parameters.Values)
	bolusMass := doseMass
	var injectAt float64
	var injectIdx int
	b := make([]float64, n)

	switch c.absorption {
	case core.AbsorptionBolus:
		injectIdx, injectAt = 0, 0
	case core.AbsorptionInfusion:
		tinf := intake.InfusionDuration.Hours()
		if tinf <= 0 {
			injectIdx, injectAt = 0, 0
		} else {
			b[0] = doseMass / tinf
			bolusMass = 0
		}
	case core.AbsorptionExtravascular:
		injectIdx, injectAt = n-1, 0
	case core.AbsorptionExtravascularLag:
		injectIdx, injectAt = n-1, parameters.MustGet(ParamTlag)
	}

	infusionRate := b
	infusionDuration := intake.InfusionDuration.Hours()
	if c.absorption != core.AbsorptionInfusion {
		infusionDuration = 0
	}

	concPerCompartment := make([]core.CompartmentConcentrations, n)
	for i := range concPerCompartment {
		concPerCompartment[i] = make(core.CompartmentConcentrations, len(sampleTimesHours))
	}

	for ti, t := range sampleTimesHours {
		x, err := evolveLinearState(spec.a, x0, infusionRate, infusionDuration, injectIdx, injectAt, bolusMass, t)
		if err != nil {
			return nil, nil, err
		}
		for i := 0; i < n; i++ {
			volume := 1.0
			if i < len(spec.volumes) {
				volume = spec.volumes[i]
			}
			if volume == 0 {
				volume = 1
			}
			concPerCompartment[i][ti] = x[i] / volume
		}
	}

	intervalHours := intake.Interval.Hours()
	finalState, err := evolveLinearState(spec.a, x0, infusionRate, infusionDuration, injectIdx, injectAt, bolusMass, intervalHours)
	if err != nil {
		return nil, nil, err
	}
	newResiduals := core.Residuals(finalState)
	// for extravascular forms the last entry is the absorption
	// compartment's own amount, reported unitless (volume 1) alongside the
	// disposition compartments.
	return concPerCompartment, newResiduals, nil
}

// evolveLinearState evaluates x(t) for dx/dt = Ax (+b during [0,
// infusionDuration]) starting from x0, with an instantaneous dose
// injected into compartment injectIdx at time injectAt (injectAt=0 and
// doseMass=0 for infusion/pure-decay cases), per §4.4's closed-form
// variation-of-parameters solution.
func evolveLinearState(a *mat.Dense, x0 []float64, b []float64, infusionDuration float64, injectIdx int, injectAt, doseMass, t float64) ([]float64, error) {
	hasBolus := doseMass != 0 || injectAt > 0

	if hasBolus && t < injectAt {
		expAt, err := matrixExp(a, t)
		if err != nil {
			return nil, err
		}
		return matVec(expAt, x0), nil
	}

	state := append([]float64(nil), x0...)
	elapsed := t
	if hasBolus {
		preExp, err := matrixExp(a, injectAt)
		if err != nil {
			return nil, err
		}
		state = matVec(preExp, state)
		state[injectIdx] += doseMass
		elapsed = t - injectAt
	}

	zeroB := true
	for _, v := range b {
		if v != 0 {
			zeroB = false
			break
		}
	}
	if zeroB || infusionDuration <= 0 {
		expA, err := matrixExp(a, elapsed)
		if err != nil {
			return nil, err
		}
		return matVec(expA, state), nil
	}

	onDuration := math.Min(elapsed, infusionDuration)
	stateAtOn, err := evolveWithConstantInput(a, state, b, onDuration)
	if err != nil {
		return nil, err
	}
	if elapsed <= infusionDuration {
		return stateAtOn, nil
	}
	offDuration := elapsed - infusionDuration
	expOff, err := matrixExp(a, offDuration)
	if err != nil {
		return nil, err
	}
	return matVec(expOff, stateAtOn), nil
}

// evolveWithConstantInput solves dx/dt = Ax+b over [0,duration] from x0,
// via x(duration) = expm(A*duration) x0 + A^{-1}(expm(A*duration)-I) b.
func evolveWithConstantInput(a *mat.Dense, x0 []float64, b []float64, duration float64) ([]float64, error) {
	n := len(x0)
	expA, err := matrixExp(a, duration)
	if err != nil {
		return nil, err
	}
	homog := matVec(expA, x0)

	var aInv mat.Dense
	if err := aInv.Inverse(a); err != nil {
		// a singular (e.g. a pure absorption row with Ka=0): fall back to
		// direct numerical quadrature of the convolution integral.
		return evolveWithConstantInputNumeric(a, x0, b, duration)
	}
	diff := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := expA.At(i, j)
			if i == j {
				v -= 1
			}
			diff.Set(i, j, v)
		}
	}
	var particularMat mat.Dense
	particularMat.Mul(&aInv, diff)
	particular := matVec(&particularMat, b)

	out := make([]float64, n)
	for i := range out {
		out[i] = homog[i] + particular[i]
	}
	return out, nil
}

// evolveWithConstantInputNumeric falls back to fixed-step trapezoidal
// quadrature of the convolution integral when A is singular.
func evolveWithConstantInputNumeric(a *mat.Dense, x0 []float64, b []float64, duration float64) ([]float64, error) {
	const steps = 64
	n := len(x0)
	h := duration / steps
	acc := make([]float64, n)
	for s := 0; s <= steps; s++ {
		u := float64(s) * h
		expAu, err := matrixExp(a, duration-u)
		if err != nil {
			return nil, err
		}
		contribution := matVec(expAu, b)
		weight := h
		if s == 0 || s == steps {
			weight = h / 2
		}
		for i := range acc {
			acc[i] += weight * contribution[i]
		}
	}
	expA, err := matrixExp(a, duration)
	if err != nil {
		return nil, err
	}
	homog := matVec(expA, x0)
	out := make([]float64, n)
	for i := range out {
		out[i] = homog[i] + acc[i]
	}
	return out, nil
}

func matVec(m *mat.Dense, v []float64) []float64 {
	n, _ := m.Dims()
	out := make([]float64, n)
	vec := mat.NewVecDense(len(v), v)
	res := mat.NewVecDense(n, nil)
	res.MulVec(m, vec)
	for i := 0; i < n; i++ {
		out[i] = res.AtVec(i)
	}
	return out
}
