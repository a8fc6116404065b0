package calculators

import (
	"fmt"
	"math"
	"sort"

	"github.com/tucuxi-go/pkengine/core"
)

// michaelisMentenCalculator solves one cycle of a nonlinear-elimination
// model by adaptive-step Runge-Kutta-Fehlberg 4(5), per §4.4's accuracy
// requirement (1e-8 relative, 1e-12 absolute), adapted from godesim's
// RKF45Solver (operating on plain []float64 state vectors and a
// per-component relative+absolute error test rather than godesim's
// state.State type and single global error threshold, since the
// disposition and absorption compartments here can differ by orders of
// magnitude in scale).
type michaelisMentenCalculator struct {
	structural core.StructuralModel
	absorption core.AbsorptionModel
}

// rkRelTol and rkAbsTol are the §4.4 accuracy targets the adaptive
// stepper enforces on every state component each step.
const (
	rkRelTol = 1e-8
	rkAbsTol = 1e-12

	rkStepSafety  = 0.9
	rkMinScale    = 0.2
	rkMaxScale    = 5.0
	rkMinStepHour = 1e-10
)

func (c michaelisMentenCalculator) compartments() int {
	n := mmDispositionSize(c.structural)
	if c.hasAbsorptionCompartment() {
		return n + 1
	}
	return n
}

func (c michaelisMentenCalculator) hasAbsorptionCompartment() bool {
	return c.absorption == core.AbsorptionExtravascular || c.absorption == core.AbsorptionExtravascularLag
}

func mmDispositionSize(structural core.StructuralModel) int {
	switch structural {
	case core.ModelMichaelisMenten1Comp:
		return 1
	case core.ModelMichaelisMenten2CompMicro, core.ModelMichaelisMenten2CompMacro, core.ModelMichaelisMenten2CompVmaxAmtMacro:
		return 2
	}
	return 0
}

func (c michaelisMentenCalculator) CompartmentCount() int { return c.compartments() }

func (c michaelisMentenCalculator) Check(intake core.IntakeEvent, parameters core.PKParameters) error {
	if _, ok := parameters.Values[ParamVmax]; !ok {
		return &core.ErrInvalidParameters{Parameter: ParamVmax, Value: 0}
	}
	if _, ok := parameters.Values[ParamKm]; !ok {
		return &core.ErrInvalidParameters{Parameter: ParamKm, Value: 0}
	}
	if mmDispositionSize(c.structural) == 0 {
		return fmt.Errorf("no Michaelis-Menten disposition for structural model %q", c.structural)
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
			if tlag > intake.Interval.Hours() {
				return &core.ErrLagTooLong{Lag: core.DurationFromHours(tlag), Interval: intake.Interval}
			}
		}
	}
	return nil
}

// derivative computes dx/dt for the Michaelis-Menten system at state x,
// given resolved parameters. Elimination from the central compartment
// follows Vmax*C/(Km+C) where the model is concentration-based, or
// Vmax*X/(Km+X) where it tracks amount directly (vmaxamount variant).
func (c michaelisMentenCalculator) derivative(x []float64, v map[string]float64, v1, inputRate float64) []float64 {
	vmax, km := v[ParamVmax], v[ParamKm]
	dxdt := make([]float64, len(x))

	nDisp := mmDispositionSize(c.structural)
	absorptionIdx := -1
	if c.hasAbsorptionCompartment() {
		absorptionIdx = nDisp
		ka := v[ParamKa]
		dxdt[absorptionIdx] = -ka * x[absorptionIdx]
	}

	var elimination float64
	switch c.structural {
	case core.ModelMichaelisMenten2CompVmaxAmtMacro:
		elimination = vmax * x[0] / (km + x[0])
	default:
		central := x[0] / v1
		elimination = vmax * central / (km + central)
	}
	dxdt[0] = -elimination + inputRate
	if absorptionIdx >= 0 {
		dxdt[0] += v[ParamKa] * x[absorptionIdx]
	}

	if nDisp == 2 {
		cl2, v2 := peripheralRates(c.structural, v)
		k12 := cl2 / v1
		k21 := cl2 / v2
		dxdt[0] += -k12*x[0] + k21*x[1]
		dxdt[1] = k12*x[0] - k21*x[1]
	}
	return dxdt
}

// peripheralRates returns the inter-compartmental clearance and
// peripheral volume for the two-compartment Michaelis-Menten variants.
func peripheralRates(structural core.StructuralModel, v map[string]float64) (cl2, v2 float64) {
	switch structural {
	case core.ModelMichaelisMenten2CompMicro:
		return v[ParamK12] * v[ParamV1], v[ParamK12] * v[ParamV1] / v[ParamK21]
	default:
		return v[ParamQ], v[ParamV2]
	}
}

func (c michaelisMentenCalculator) Compute(intake core.IntakeEvent, parameters core.PKParameters, previousResiduals core.Residuals, sampleTimesHours []float64) ([]core.CompartmentConcentrations, core.Residuals, error) {
	n := c.compartments()
	x0 := make([]float64, n)
	copy(x0, previousResiduals)

	v1 := 1.0
	if val, ok := parameters.Values[ParamV1]; ok {
		v1 = val
	} else if val, ok := parameters.Values[ParamV]; ok {
		v1 = val
	}

	doseMass := intake.Dose * bioavailability(parameters.Values)
	injectIdx := 0
	injectAt := 0.0
	if c.hasAbsorptionCompartment() {
		injectIdx = n - 1
		if c.absorption == core.AbsorptionExtravascularLag {
			injectAt = parameters.MustGet(ParamTlag)
		}
	}

	infusionRate := make([]float64, n)
	infusionDuration := 0.0
	if c.absorption == core.AbsorptionInfusion {
		if tinf := intake.InfusionDuration.Hours(); tinf > 0 {
			infusionRate[0] = doseMass / tinf
			infusionDuration = tinf
		} else {
			injectIdx, injectAt = 0, 0
		}
	}
	hasBolus := infusionDuration == 0

	concentrations := make([]core.CompartmentConcentrations, n)
	for i := range concentrations {
		concentrations[i] = make(core.CompartmentConcentrations, len(sampleTimesHours))
	}

	trajectory := func(tEnd float64) []float64 {
		state := append([]float64(nil), x0...)
		if hasBolus && injectAt == 0 {
			state[injectIdx] += doseMass
		}
		if tEnd <= 0 {
			return state
		}

		t := 0.0
		for _, tb := range segmentBoundaries(tEnd, injectAt, infusionDuration, hasBolus) {
			if tb <= t {
				continue
			}
			rate := inputRateAt(infusionRate, t, infusionDuration)
			deriv := func(x []float64) []float64 {
				return c.derivative(x, parameters.Values, v1, rate)
			}
			state = integrateAdaptive(state, tb-t, deriv)
			t = tb
			if hasBolus && injectAt > 0 && t == injectAt {
				state[injectIdx] += doseMass
			}
		}
		return state
	}

	for i, t := range sampleTimesHours {
		state := trajectory(t)
		for comp := 0; comp < n; comp++ {
			volume := compartmentVolume(comp, n, c.hasAbsorptionCompartment(), v1, parameters.Values)
			concentrations[comp][i] = state[comp] / volume
		}
	}

	finalState := trajectory(intake.Interval.Hours())
	return concentrations, core.Residuals(finalState), nil
}

func compartmentVolume(idx, n int, hasAbsorption bool, v1 float64, values map[string]float64) float64 {
	if hasAbsorption && idx == n-1 {
		return 1
	}
	if idx == 0 {
		return v1
	}
	if v2, ok := values[ParamV2]; ok {
		return v2
	}
	return 1
}

// inputRateAt returns the central compartment's infusion input rate at
// time t, zero once the infusion has finished.
func inputRateAt(infusionRate []float64, t, infusionDuration float64) float64 {
	if infusionDuration <= 0 || t >= infusionDuration {
		return 0
	}
	return infusionRate[0]
}

// segmentBoundaries splits [0, tEnd] at any instant where the system's
// derivative is discontinuous (a bolus injection or an infusion ending),
// so each call to integrateAdaptive sees a smooth right-hand side.
func segmentBoundaries(tEnd, injectAt, infusionDuration float64, hasBolus bool) []float64 {
	pts := []float64{}
	if hasBolus && injectAt > 0 && injectAt <= tEnd {
		pts = append(pts, injectAt)
	}
	if infusionDuration > 0 && infusionDuration < tEnd {
		pts = append(pts, infusionDuration)
	}
	pts = append(pts, tEnd)
	sort.Float64s(pts)
	return pts
}

// integrateAdaptive advances state by tSpan hours under derivative f
// using embedded Runge-Kutta-Fehlberg 4(5) steps, shrinking or growing
// the step so every component's local error stays within rkAbsTol +
// rkRelTol*|value|, per §4.4.
func integrateAdaptive(x0 []float64, tSpan float64, f func([]float64) []float64) []float64 {
	if tSpan <= 0 {
		return append([]float64(nil), x0...)
	}

	x := append([]float64(nil), x0...)
	t := 0.0
	h := tSpan
	for t < tSpan {
		if t+h > tSpan {
			h = tSpan - t
		}

		y5, errVec := rkf45Step(x, h, f)
		errRatio := worstErrorRatio(x, y5, errVec)

		accept := errRatio >= 1 || h <= rkMinStepHour
		scale := rkStepSafety
		if math.IsInf(errRatio, 1) {
			scale *= rkMaxScale
		} else {
			scale *= math.Pow(errRatio, 0.2)
		}
		scale = math.Min(rkMaxScale, math.Max(rkMinScale, scale))

		if accept {
			x = y5
			t += h
			h *= scale
			if remaining := tSpan - t; remaining > 0 && h > remaining {
				h = remaining
			}
		} else {
			h *= scale
			if h < rkMinStepHour {
				h = rkMinStepHour
			}
		}
	}
	return x
}

// worstErrorRatio returns the smallest, across every state component, of
// (per-component tolerance / estimated local error) — the binding
// constraint the step either satisfies (ratio >= 1) or violates.
func worstErrorRatio(before, after, errVec []float64) float64 {
	worst := math.Inf(1)
	for i, e := range errVec {
		tol := rkAbsTol + rkRelTol*math.Max(math.Abs(before[i]), math.Abs(after[i]))
		if e <= 0 {
			continue
		}
		if ratio := tol / e; ratio < worst {
			worst = ratio
		}
	}
	return worst
}

// rkf45Step advances state by one Fehlberg 4(5) step of size h under
// derivative f, returning the higher-order (5th) solution used to
// continue integration and the |4th-5th order| difference used as the
// local error estimate, per the Butcher tableau for Fehlberg's method
// (https://en.wikipedia.org/wiki/Runge%E2%80%93Kutta%E2%80%93Fehlberg_method).
func rkf45Step(x []float64, h float64, f func([]float64) []float64) (y5, errVec []float64) {
	const (
		c21                     = 1.0 / 4.0
		c31, c32                = 3.0 / 32.0, 9.0 / 32.0
		c41, c42, c43           = 1932.0 / 2197.0, -7200.0 / 2197.0, 7296.0 / 2197.0
		c51, c52, c53, c54      = 439.0 / 216.0, -8.0, 3680.0 / 513.0, -845.0 / 4104.0
		c61, c62, c63, c64, c65 = -8.0 / 27.0, 2.0, -3544.0 / 2565.0, 1859.0 / 4104.0, -11.0 / 40.0

		a1, a3, a4, a5     = 25.0 / 216.0, 1408.0 / 2565.0, 2197.0 / 4104.0, -1.0 / 5.0
		b1, b3, b4, b5, b6 = 16.0 / 135.0, 6656.0 / 12825.0, 28561.0 / 56430.0, -9.0 / 50.0, 2.0 / 55.0
	)

	n := len(x)
	k1 := scaleVec(f(x), h)
	k2 := scaleVec(f(offset(x, rkTerm{k1, c21})), h)
	k3 := scaleVec(f(offset(x, rkTerm{k1, c31}, rkTerm{k2, c32})), h)
	k4 := scaleVec(f(offset(x, rkTerm{k1, c41}, rkTerm{k2, c42}, rkTerm{k3, c43})), h)
	k5 := scaleVec(f(offset(x, rkTerm{k1, c51}, rkTerm{k2, c52}, rkTerm{k3, c53}, rkTerm{k4, c54})), h)
	k6 := scaleVec(f(offset(x, rkTerm{k1, c61}, rkTerm{k2, c62}, rkTerm{k3, c63}, rkTerm{k4, c64}, rkTerm{k5, c65})), h)

	y4 := make([]float64, n)
	y5 = make([]float64, n)
	for i := 0; i < n; i++ {
		y4[i] = x[i] + a1*k1[i] + a3*k3[i] + a4*k4[i] + a5*k5[i]
		y5[i] = x[i] + b1*k1[i] + b3*k3[i] + b4*k4[i] + b5*k5[i] + b6*k6[i]
	}
	errVec = make([]float64, n)
	for i := range errVec {
		errVec[i] = math.Abs(y5[i] - y4[i])
	}
	return y5, errVec
}

// rkTerm is one coef*vec contribution folded into a stage state by offset.
type rkTerm struct {
	vec  []float64
	coef float64
}

func offset(base []float64, terms ...rkTerm) []float64 {
	out := append([]float64(nil), base...)
	for _, term := range terms {
		for i := range out {
			out[i] += term.coef * term.vec[i]
		}
	}
	return out
}

func scaleVec(v []float64, h float64) []float64 {
	out := make([]float64, len(v))
	for i := range out {
		out[i] = h * v[i]
	}
	return out
}
