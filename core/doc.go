// Package core provides the pharmacokinetic computation kernel.
//
// # Reading Guide
//
// Start with these files to understand the computation pipeline:
//   - request.go: ComputingRequest, DrugTreatment, and the sample/covariate inputs
//   - dispatcher.go: Dispatch(), the single entry point that routes a trait to its engine
//   - engine.go: the cycle-by-cycle concentration engine (C7) that every trait rides on
//
// # Architecture
//
// core defines interfaces and the domain model; implementations of the
// extension points live in sibling packages:
//   - calculators/: per-(structural model, absorption model) interval solvers (C6)
//   - covariates/: covariate interpolation engine (C4)
//   - bayes/: Bayesian a posteriori parameter estimator (C5)
//   - percentile/: Monte-Carlo percentile engine and its cache (C8, C9)
//   - adjustment/: dosage adjustment search (C10)
//
// Sub-packages register their implementations via init() functions that set
// package-level factory variables (NewCalculatorFunc, NewCovariateEngineFunc,
// NewBayesianEstimatorFunc), the same wiring shape used throughout this
// codebase to avoid import cycles between core (interface owner) and its
// implementations.
//
// # Key Interfaces
//
//   - Calculator: check a cycle's feasibility, then compute sampled
//     concentrations and carried residuals
//   - CovariateEngine: produce a covariate timeline from patient values
//   - BayesianEstimator: MAP-fit a parameter vector against samples
//
// See cmd/pkrun for a worked end-to-end example wiring all of the above.
package core
