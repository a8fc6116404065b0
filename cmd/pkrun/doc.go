// Package pkrun implements the pkrun CLI: a thin Cobra front end loading a
// JSON drug model and patient treatment from file and dispatching one
// computation against core.Dispatch, printing the JSON response to
// stdout. It supports a deliberately scoped JSON schema (documented in
// DESIGN.md): one LastingDose per time range and direct, non-computed
// covariates; it is a convenience driver for the engine, not a second
// implementation of the wire format.
package pkrun
