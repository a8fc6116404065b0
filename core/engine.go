package core

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// ConcentrationEngine drives cycle-by-cycle computation (C7), per §4.5's
// pseudocode: resolve parameters, look up a calculator, check feasibility,
// compute sampled concentrations and carried residuals, emit CycleData,
// then clip to the query window.
type ConcentrationEngine struct {
	Group       AnalyteGroup
	CovariateEngine CovariateEngine
	CovariateDefs []CovariateDefinition
}

// RunParams bundles ConcentrationEngine.Run's per-call inputs.
type RunParams struct {
	Treatment     DrugTreatment
	Window        Window
	PointsPerHour float64
	ParameterSet  ParameterSetKind
	Options       ComputingOptions
	HalfLifeHours float64
	WantStatistics bool
	Aborter       *Aborter
}

// Run evaluates compartment concentrations across every intake cycle
// overlapping params.Window, carrying residuals between cycles, per §4.5.
func (e *ConcentrationEngine) Run(params RunParams) ([]CycleData, error) {
	defaults := ExtractionDefaults{PointsPerHour: params.PointsPerHour, HalfLifeHours: params.HalfLifeHours}
	intakes, err := ExtractIntakes(params.Treatment.History, params.Window, defaults)
	if err != nil {
		return nil, fmt.Errorf("extracting intakes: %w", err)
	}

	covariateSeries, err := e.buildCovariates(params.Treatment, params.Window)
	if err != nil {
		return nil, err
	}

	residuals := ZeroResiduals(e.calculatorCompartmentCount())
	resolveConcentration := e.resolveConcentrationClosure(params, intakes)

	var cycles []CycleData
	for _, intake := range intakes {
		if params.Aborter != nil && params.Aborter.Triggered() {
			return nil, &ComputingError{Status: StatusAborted, Message: "concentration engine aborted between cycles"}
		}

		resolver := ParameterResolver{
			Group:         e.Group,
			Covariates:    covariateSeries,
			CovariateDefs: defsByID(e.CovariateDefs),
			Samples:       params.Treatment.Samples,
			Kind:          params.ParameterSet,
		}
		resolved, err := resolver.Resolve(intake.Start, resolveConcentration)
		if err != nil {
			return nil, err
		}
		if err := resolved.Validate(e.Group.Parameters); err != nil {
			return nil, &ComputingError{Status: StatusInvalidParameters, Message: err.Error()}
		}

		calc, err := LookupCalculator(e.Group.StructuralModel, intake.FormulationAndRoute.AbsorptionModel)
		if err != nil {
			return nil, &ComputingError{Status: StatusBadRequest, Message: err.Error()}
		}
		if err := calc.Check(intake, resolved); err != nil {
			return nil, &ComputingError{Status: StatusBadRequest, Message: err.Error()}
		}
		if calc.CompartmentCount() != len(residuals) && len(residuals) != 0 {
			// residuals were sized for a previous calculator with a
			// different compartment count: only valid at the very first
			// cycle, otherwise this is an internal invariant violation.
			if len(cycles) > 0 {
				panic(&InternalError{Diagnostic: fmt.Sprintf(
					"calculator compartment count changed from %d to %d mid-treatment",
					len(residuals), calc.CompartmentCount())})
			}
			residuals = ZeroResiduals(calc.CompartmentCount())
		}
		times := uniformSampleGrid(intake.Interval.Hours(), intake.NbPoints)
		conc, newResiduals, err := calc.Compute(intake, resolved, residuals, times)
		if err != nil {
			return nil, &ComputingError{Status: StatusNumericalError, Message: err.Error()}
		}
		if len(newResiduals) != calc.CompartmentCount() {
			key := CalculatorKey{Structural: e.Group.StructuralModel, Absorption: intake.FormulationAndRoute.AbsorptionModel}
			panic(&InternalError{Diagnostic: fmt.Sprintf(
				"calculator %s returned %d residuals, want %d", key,
				len(newResiduals), calc.CompartmentCount())})
		}
		newResiduals.Clamp()
		if err := newResiduals.Validate(calc.CompartmentCount()); err != nil {
			panic(&InternalError{Diagnostic: err.Error()})
		}

		cycle := CycleData{
			Start:            intake.Start,
			End:              intake.Start.Add(intake.Interval),
			Concentrations:   conc,
			SampleTimesHours: times,
			Parameters:       resolved,
			Covariates:       snapshotCovariates(covariateSeries, e.CovariateDefs, intake.Start),
			Residuals:        newResiduals,
		}
		if params.WantStatistics {
			cycle.Statistics = make([]CycleStatistics, len(conc))
			for i, cc := range conc {
				cycle.Statistics[i] = ComputeCycleStatistics(cc, times, intake.Interval.Hours())
			}
		}
		cycles = append(cycles, cycle)
		residuals = newResiduals

		logrus.WithFields(logrus.Fields{
			"cycle_start": intake.Start.String(),
			"interval":    intake.Interval.String(),
		}).Debug("concentration engine: cycle computed")
	}

	return clipCyclesToWindow(cycles, params.Window), nil
}

func (e *ConcentrationEngine) calculatorCompartmentCount() int {
	// Best-effort initial sizing from the first registered calculator for
	// this structural model's bolus form; the engine corrects itself on
	// the first real cycle if the guess was wrong (see Run above).
	if calc, err := LookupCalculator(e.Group.StructuralModel, AbsorptionBolus); err == nil {
		return calc.CompartmentCount()
	}
	return 0
}

func (e *ConcentrationEngine) buildCovariates(treatment DrugTreatment, window Window) (map[string]CovariateSeries, error) {
	if e.CovariateEngine == nil || len(e.CovariateDefs) == 0 {
		return map[string]CovariateSeries{}, nil
	}
	series, err := e.CovariateEngine.Build(e.CovariateDefs, treatment.Covariates, window)
	if err != nil {
		return nil, fmt.Errorf("building covariate series: %w", err)
	}
	return series, nil
}

func defsByID(defs []CovariateDefinition) map[string]CovariateDefinition {
	out := make(map[string]CovariateDefinition, len(defs))
	for _, d := range defs {
		out[d.ID] = d
	}
	return out
}

func snapshotCovariates(series map[string]CovariateSeries, defs []CovariateDefinition, at Instant) map[string]float64 {
	if len(series) == 0 {
		return nil
	}
	defsByName := defsByID(defs)
	out := make(map[string]float64, len(series))
	for id, s := range series {
		out[id] = s.ValueAt(at, defsByName[id])
	}
	return out
}

// uniformSampleGrid builds an even grid of n points over [0, intervalHours].
func uniformSampleGrid(intervalHours float64, n int) []float64 {
	if n <= 1 {
		return []float64{0}
	}
	out := make([]float64, n)
	step := intervalHours / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = step * float64(i)
	}
	return out
}

// RunFixed evaluates compartment concentrations across every intake cycle
// overlapping params.Window using a single externally-supplied parameter
// vector for every cycle, with no per-cycle resolution. Used by the
// percentile engine to replay one Monte-Carlo sample and by the
// adjustment search to evaluate one trial regimen, per §4.6/§4.8.
func (e *ConcentrationEngine) RunFixed(params RunParams, fixed PKParameters) ([]CycleData, error) {
	if err := fixed.Validate(e.Group.Parameters); err != nil {
		return nil, &ComputingError{Status: StatusInvalidParameters, Message: err.Error()}
	}
	defaults := ExtractionDefaults{PointsPerHour: params.PointsPerHour, HalfLifeHours: params.HalfLifeHours}
	intakes, err := ExtractIntakes(params.Treatment.History, params.Window, defaults)
	if err != nil {
		return nil, fmt.Errorf("extracting intakes: %w", err)
	}
	covariateSeries, err := e.buildCovariates(params.Treatment, params.Window)
	if err != nil {
		return nil, err
	}

	residuals := ZeroResiduals(e.calculatorCompartmentCount())
	var cycles []CycleData
	for _, intake := range intakes {
		if params.Aborter != nil && params.Aborter.Triggered() {
			return nil, &ComputingError{Status: StatusAborted, Message: "concentration engine aborted between cycles"}
		}
		calc, err := LookupCalculator(e.Group.StructuralModel, intake.FormulationAndRoute.AbsorptionModel)
		if err != nil {
			return nil, &ComputingError{Status: StatusBadRequest, Message: err.Error()}
		}
		if err := calc.Check(intake, fixed); err != nil {
			return nil, &ComputingError{Status: StatusBadRequest, Message: err.Error()}
		}
		if calc.CompartmentCount() != len(residuals) {
			residuals = ZeroResiduals(calc.CompartmentCount())
		}
		times := uniformSampleGrid(intake.Interval.Hours(), intake.NbPoints)
		conc, newResiduals, err := calc.Compute(intake, fixed, residuals, times)
		if err != nil {
			return nil, &ComputingError{Status: StatusNumericalError, Message: err.Error()}
		}
		newResiduals.Clamp()

		cycle := CycleData{
			Start:            intake.Start,
			End:              intake.Start.Add(intake.Interval),
			Concentrations:   conc,
			SampleTimesHours: times,
			Parameters:       fixed,
			Covariates:       snapshotCovariates(covariateSeries, e.CovariateDefs, intake.Start),
		}
		if params.WantStatistics {
			cycle.Statistics = make([]CycleStatistics, len(conc))
			for i, cc := range conc {
				cycle.Statistics[i] = ComputeCycleStatistics(cc, times, intake.Interval.Hours())
			}
		}
		cycles = append(cycles, cycle)
		residuals = newResiduals
	}
	return clipCyclesToWindow(cycles, params.Window), nil
}

// ResolveBaseParameters resolves the center parameter vector a Monte-Carlo
// percentile sample perturbs with BSV, or an adjustment candidate
// evaluates a trial regimen with, per §4.6/§4.8: population or a priori
// (or a posteriori, against treatment.Samples), evaluated at window.Start.
func (e *ConcentrationEngine) ResolveBaseParameters(treatment DrugTreatment, window Window, pointsPerHour, halfLifeHours float64, kind ParameterSetKind) (PKParameters, error) {
	defaults := ExtractionDefaults{PointsPerHour: pointsPerHour, HalfLifeHours: halfLifeHours}
	intakes, err := ExtractIntakes(treatment.History, window, defaults)
	if err != nil {
		return PKParameters{}, fmt.Errorf("extracting intakes: %w", err)
	}
	covariateSeries, err := e.buildCovariates(treatment, window)
	if err != nil {
		return PKParameters{}, err
	}
	resolver := ParameterResolver{
		Group:         e.Group,
		Covariates:    covariateSeries,
		CovariateDefs: defsByID(e.CovariateDefs),
		Samples:       treatment.Samples,
		Kind:          kind,
	}
	runParams := RunParams{Treatment: treatment, Window: window, PointsPerHour: pointsPerHour, HalfLifeHours: halfLifeHours, ParameterSet: kind}
	resolveConcentration := e.resolveConcentrationClosure(runParams, intakes)
	return resolver.Resolve(window.Start, resolveConcentration)
}

// resolveConcentrationClosure builds the callback the Bayesian estimator
// uses to score a candidate parameter vector: it forward-simulates the
// full intake series with that fixed vector (no per-cycle covariate
// re-resolution) and returns the predicted concentration at each sample's
// instant, in the order given, per §4.3's MAP objective.
func (e *ConcentrationEngine) resolveConcentrationClosure(params RunParams, intakes []IntakeEvent) func(PKParameters, []Sample) ([]float64, error) {
	return func(candidate PKParameters, samples []Sample) ([]float64, error) {
		cycles, err := e.forwardSimulate(candidate, intakes)
		if err != nil {
			return nil, err
		}
		predicted := make([]float64, len(samples))
		for i, s := range samples {
			predicted[i] = predictAt(cycles, s.At)
		}
		return predicted, nil
	}
}

// forwardSimulate runs the intake series with a single fixed parameter
// vector (no covariate-driven re-resolution per cycle), used by the
// Bayesian estimator's inner loop.
func (e *ConcentrationEngine) forwardSimulate(fixed PKParameters, intakes []IntakeEvent) ([]CycleData, error) {
	residuals := ZeroResiduals(e.calculatorCompartmentCount())
	var cycles []CycleData
	for _, intake := range intakes {
		calc, err := LookupCalculator(e.Group.StructuralModel, intake.FormulationAndRoute.AbsorptionModel)
		if err != nil {
			return nil, err
		}
		if calc.CompartmentCount() != len(residuals) {
			residuals = ZeroResiduals(calc.CompartmentCount())
		}
		if err := calc.Check(intake, fixed); err != nil {
			return nil, err
		}
		times := uniformSampleGrid(intake.Interval.Hours(), intake.NbPoints)
		conc, newResiduals, err := calc.Compute(intake, fixed, residuals, times)
		if err != nil {
			return nil, err
		}
		newResiduals.Clamp()
		cycles = append(cycles, CycleData{
			Start:            intake.Start,
			End:              intake.Start.Add(intake.Interval),
			Concentrations:   conc,
			SampleTimesHours: times,
			Parameters:       fixed,
		})
		residuals = newResiduals
	}
	return cycles, nil
}

// predictAt returns the first compartment's concentration at instant t,
// linearly interpolating within whichever cycle contains t. Samples are
// compared against the first (central/measured) compartment by
// convention; multi-compartment analyte matching is out of scope for the
// Bayesian objective, which fits against the measured analyte only.
func predictAt(cycles []CycleData, t Instant) float64 {
	for _, c := range cycles {
		if t.Before(c.Start) || t.After(c.End) {
			continue
		}
		if len(c.Concentrations) == 0 {
			return 0
		}
		hours := t.Sub(c.Start).Hours()
		return interpolate(c.SampleTimesHours, c.Concentrations[0], hours)
	}
	return 0
}

func interpolate(xs []float64, ys []float64, x float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[len(xs)-1] {
		return ys[len(ys)-1]
	}
	for i := 1; i < len(xs); i++ {
		if x <= xs[i] {
			span := xs[i] - xs[i-1]
			if span == 0 {
				return ys[i-1]
			}
			frac := (x - xs[i-1]) / span
			return ys[i-1] + frac*(ys[i]-ys[i-1])
		}
	}
	return ys[len(ys)-1]
}

// clipCyclesToWindow drops cycles entirely outside [window.Start,
// window.End], per §4.5's "clip to [w_start, w_end]". A cycle that
// overlaps the window is kept whole: its sample arrays are not trimmed to
// the overlapping span.
func clipCyclesToWindow(cycles []CycleData, window Window) []CycleData {
	var out []CycleData
	for _, c := range cycles {
		if c.End.Before(window.Start) || c.Start.After(window.End) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
