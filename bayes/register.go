package bayes

import "github.com/tucuxi-go/pkengine/core"

// init wires Estimator into core.NewBayesianEstimatorFunc, mirroring
// sim/latency/register.go's one-line registration.
func init() {
	core.NewBayesianEstimatorFunc = func() core.BayesianEstimator { return NewEstimator() }
}
