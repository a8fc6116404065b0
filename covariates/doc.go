// Package covariates implements the covariate engine (C4): it turns a
// drug model's covariate definitions and a patient's observed values into
// one CovariateSeries per covariate, applying each definition's
// interpolation policy and, for computed covariates, its formula against
// the other covariates in effect at the same instant.
//
// Computed covariates are evaluated by a small formula type
// (CovariateFormula, built in core) rather than a general expression
// engine; see DESIGN.md for why this stays on the standard library.
package covariates
