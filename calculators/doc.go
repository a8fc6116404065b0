// Package calculators implements the intake interval calculators (C6):
// one (structural model, absorption model) solver per registered
// core.CalculatorKey. Linear compartmental models use closed-form
// exponential solutions; Michaelis-Menten models integrate numerically.
//
// register.go's init() registers every key into core.NewCalculatorFunc,
// mirroring sim/latency/register.go and sim/kv/register.go's pattern of
// wiring an implementation sub-package into the interface owner's
// registration variable without the owner importing the implementation.
package calculators
