package core

// PercentileConfig groups the Monte-Carlo percentile engine's tunables
// (C8), per §4.6.
type PercentileConfig struct {
	DefaultNumSamples int     // Monte-Carlo sample count when a request leaves NumSamples unset (default 10000)
	DefaultPointsPerHour float64 // sampling density when a request leaves PointsPerHour unset (default 20)
}

// DefaultPercentileConfig returns the §4.6 default tunables.
func DefaultPercentileConfig() PercentileConfig {
	return PercentileConfig{
		DefaultNumSamples:    10000,
		DefaultPointsPerHour: 20,
	}
}

// BayesConfig groups the Bayesian MAP estimator's tunables (C5's third
// mode), per §4.3.
type BayesConfig struct {
	RetryIterationBudgets []int   // escalating optimizer iteration budgets tried in order until one converges
	GradientThreshold     float64 // optimize.Settings.GradientThreshold convergence criterion
}

// DefaultBayesConfig returns the §4.3 default tunables.
func DefaultBayesConfig() BayesConfig {
	return BayesConfig{
		RetryIterationBudgets: []int{200, 1000, 5000},
		GradientThreshold:     1e-6,
	}
}

// AdjustmentConfig groups the dosage adjustment search's tunables (C10),
// per §4.8.
type AdjustmentConfig struct {
	DefaultPointsPerHour float64 // sampling density when a trait leaves PointsPerHour unset (default 20)
	LoadingDoseMultiplier float64 // factor a loading dose scales the regular candidate dose by (default 2)
}

// DefaultAdjustmentConfig returns the §4.8 default tunables.
func DefaultAdjustmentConfig() AdjustmentConfig {
	return AdjustmentConfig{
		DefaultPointsPerHour:  20,
		LoadingDoseMultiplier: 2,
	}
}

// EngineConfig aggregates every subsystem's tunables into the one struct
// an embedding application loads from file or flags, per the ambient
// configuration layer's "grouped config structs" convention.
type EngineConfig struct {
	Overload   OverloadConfig
	Percentile PercentileConfig
	Bayes      BayesConfig
	Adjustment AdjustmentConfig
}

// DefaultEngineConfig returns an EngineConfig built from every subsystem's
// own defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Overload:   DefaultOverloadConfig(),
		Percentile: DefaultPercentileConfig(),
		Bayes:      DefaultBayesConfig(),
		Adjustment: DefaultAdjustmentConfig(),
	}
}
