// Package bayes implements the a posteriori (Bayesian MAP) parameter
// estimator (C5's third mode): given an a priori parameter vector, its
// between-subject variability, and observed samples, it searches for the
// parameter vector maximizing the posterior likelihood, per §4.3.
package bayes

import (
	"fmt"
	"math"

	"github.com/tucuxi-go/pkengine/core"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// Estimator implements core.BayesianEstimator using gonum's BFGS
// quasi-Newton method over the log-transformed free parameters (those with
// nonzero between-subject variability); parameters without variability are
// held fixed at their a priori value.
type Estimator struct {
	Config core.BayesConfig
}

// NewEstimator builds a Bayesian Estimator using core.DefaultBayesConfig's
// retry budgets and convergence threshold.
func NewEstimator() *Estimator { return &Estimator{Config: core.DefaultBayesConfig()} }

type freeParam struct {
	name       string
	logApriori float64
	omega      float64
}

// partitionFree splits a parameter set into the ones the optimizer
// searches over (nonzero BSV, positive a priori value so its log is
// defined) and the ones held fixed at their a priori value.
func partitionFree(defs []core.ParameterDefinition, apriori core.PKParameters) ([]freeParam, map[string]float64) {
	fixed := make(map[string]float64, len(defs))
	var free []freeParam
	for _, d := range defs {
		v, ok := apriori.Values[d.Name]
		if !ok {
			v = d.StandardValue
		}
		if d.BSV.Type == core.BSVNone || d.BSV.StdDev <= 0 || v <= 0 {
			fixed[d.Name] = v
			continue
		}
		free = append(free, freeParam{name: d.Name, logApriori: math.Log(v), omega: d.BSV.StdDev})
	}
	return free, fixed
}

// Estimate runs the MAP fit. With no free parameters or no samples, it
// returns apriori unchanged, per §4.3 ("falls back to a priori" is the
// caller's responsibility for the no-samples case; the no-free-parameters
// case is equivalent since nothing is searchable).
func (e *Estimator) Estimate(apriori core.PKParameters, defs []core.ParameterDefinition, group core.AnalyteGroup, samples []core.Sample, resolveConcentration func(core.PKParameters, []core.Sample) ([]float64, error)) (core.PKParameters, error) {
	free, fixed := partitionFree(defs, apriori)
	if len(free) == 0 || len(samples) == 0 {
		return apriori, nil
	}

	observed := make([]float64, len(samples))
	for i, s := range samples {
		observed[i] = s.Value
	}

	toParams := func(x []float64) core.PKParameters {
		values := make(map[string]float64, len(fixed)+len(free))
		for k, v := range fixed {
			values[k] = v
		}
		for i, fp := range free {
			values[fp.name] = math.Exp(x[i])
		}
		return core.PKParameters{Values: values}
	}

	// objective is the negative log posterior: the log-space prior penalty
	// ‖(log θ − log θ̂_apriori)/ω‖² plus the per-sample error-model negative
	// log-likelihood, per §4.3.
	objective := func(x []float64) float64 {
		penalty := 0.0
		for i, fp := range free {
			z := (x[i] - fp.logApriori) / fp.omega
			penalty += z * z
		}
		predicted, err := resolveConcentration(toParams(x), samples)
		if err != nil {
			return math.Inf(1)
		}
		for i, obs := range observed {
			ll, err := group.ErrorModel.NegLogLikelihood(obs, predicted[i])
			if err != nil {
				return math.Inf(1)
			}
			penalty += ll
		}
		return penalty
	}
	gradient := func(dst, x []float64) {
		fd.Gradient(dst, objective, x, nil)
	}

	x0 := make([]float64, len(free))
	for i, fp := range free {
		x0[i] = fp.logApriori
	}

	budgets := e.Config.RetryIterationBudgets
	if len(budgets) == 0 {
		budgets = core.DefaultBayesConfig().RetryIterationBudgets
	}
	var result *optimize.Result
	var lastErr error
	for _, budget := range budgets {
		r, err := optimize.Minimize(
			optimize.Problem{Func: objective, Grad: gradient},
			x0,
			&optimize.Settings{GradientThreshold: e.Config.GradientThreshold, MajorIterations: budget},
			&optimize.BFGS{},
		)
		if err == nil {
			result = r
			break
		}
		lastErr = err
	}
	if result == nil {
		return core.PKParameters{}, fmt.Errorf("bayesian fit diverged after %d attempts: %w", len(budgets), lastErr)
	}
	return toParams(result.X), nil
}
