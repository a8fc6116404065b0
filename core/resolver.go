package core

import "fmt"

// BayesianEstimator performs a maximum-a-posteriori fit of a parameter
// vector against observed samples, using apriori values as priors, per
// §4.3 mode 3. Implementations are registered via NewBayesianEstimatorFunc.
type BayesianEstimator interface {
	// Estimate returns the MAP parameter vector, or an error classified as
	// StatusBayesianFitFailed on divergence after the implementation's
	// retry budget is exhausted.
	Estimate(apriori PKParameters, defs []ParameterDefinition, group AnalyteGroup, samples []Sample, resolveConcentration func(PKParameters, []Sample) ([]float64, error)) (PKParameters, error)
}

// NewBayesianEstimatorFunc is the registration point set by package
// bayes' init().
var NewBayesianEstimatorFunc func() BayesianEstimator

// NewBayesianEstimator calls NewBayesianEstimatorFunc with a nil guard.
func NewBayesianEstimator() (BayesianEstimator, error) {
	if NewBayesianEstimatorFunc == nil {
		return nil, fmt.Errorf("NewBayesianEstimatorFunc not registered: import the bayes package to register it")
	}
	return NewBayesianEstimatorFunc(), nil
}

// ParameterResolver produces a PKParameters vector for a cycle, per §4.3's
// three modes.
type ParameterResolver struct {
	Group      AnalyteGroup
	Covariates map[string]CovariateSeries
	CovariateDefs map[string]CovariateDefinition
	Samples    []Sample
	Kind       ParameterSetKind
}

// standardValues returns the population mode's parameter vector: every
// parameter at its standard value, per §4.3 mode 1.
func (r ParameterResolver) standardValues() PKParameters {
	values := make(map[string]float64, len(r.Group.Parameters))
	for _, d := range r.Group.Parameters {
		values[d.Name] = d.StandardValue
	}
	return PKParameters{Values: values}
}

// apriori evaluates each parameter's AprioriComputation formula against
// the covariates in effect at cycleStart, keeping the standard value for
// parameters without a formula, per §4.3 mode 2. Per the tie-break rule,
// covariates are evaluated once, at cycleStart, even if they change within
// the cycle.
func (r ParameterResolver) apriori(cycleStart Instant) (PKParameters, error) {
	covariateValues := make(map[string]float64, len(r.Covariates))
	for id, series := range r.Covariates {
		def := r.CovariateDefs[id]
		covariateValues[id] = series.ValueAt(cycleStart, def)
	}
	for id, def := range r.CovariateDefs {
		if _, ok := covariateValues[id]; !ok {
			if !def.HasStandardValue {
				return PKParameters{}, &ErrMissingCovariate{CovariateID: id}
			}
			covariateValues[id] = def.StandardValue
		}
	}

	values := make(map[string]float64, len(r.Group.Parameters))
	for _, d := range r.Group.Parameters {
		if d.AprioriComputation == nil {
			values[d.Name] = d.StandardValue
			continue
		}
		inputs := make(map[string]float64, len(d.AprioriComputation.Inputs))
		for _, in := range d.AprioriComputation.Inputs {
			v, ok := covariateValues[in]
			if !ok {
				return PKParameters{}, &ErrMissingCovariate{CovariateID: in}
			}
			inputs[in] = v
		}
		v, err := d.AprioriComputation.Eval(inputs)
		if err != nil {
			return PKParameters{}, fmt.Errorf("evaluating apriori formula for %q: %w", d.Name, err)
		}
		values[d.Name] = v
	}
	return PKParameters{Values: values}, nil
}

// Resolve produces the parameter vector for a cycle starting at
// cycleStart, per §4.3. aposteriori requires resolveConcentration, a
// closure the concentration engine supplies so the Bayesian estimator can
// evaluate candidate parameter vectors without importing core back from
// bayes (breaking the dependency the other way).
func (r ParameterResolver) Resolve(cycleStart Instant, resolveConcentration func(PKParameters, []Sample) ([]float64, error)) (PKParameters, error) {
	switch r.Kind {
	case ParameterSetPopulation:
		return r.standardValues(), nil
	case ParameterSetApriori:
		return r.apriori(cycleStart)
	case ParameterSetAposteriori:
		apriori, err := r.apriori(cycleStart)
		if err != nil {
			return PKParameters{}, err
		}
		if len(r.Samples) == 0 {
			// §4.3: "On no valid samples, falls back to a priori."
			return apriori, nil
		}
		estimator, err := NewBayesianEstimator()
		if err != nil {
			return PKParameters{}, err
		}
		posterior, err := estimator.Estimate(apriori, r.Group.Parameters, r.Group, r.Samples, resolveConcentration)
		if err != nil {
			return PKParameters{}, &ComputingError{Status: StatusBayesianFitFailed, Message: err.Error()}
		}
		return posterior, nil
	default:
		return PKParameters{}, fmt.Errorf("unrecognized parameter set kind %d", r.Kind)
	}
}
