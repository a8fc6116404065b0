package core

import (
	"fmt"
	"sync"
)

// OverloadConfig groups the resource thresholds an OverloadEvaluator
// enforces, per §4.9's default values.
type OverloadConfig struct {
	PredictionPointsLimit int // default 10 000
	PercentilePointsLimit int // default 2 000
	DosagePossibilitiesLimit int // default 10 000
}

// DefaultOverloadConfig returns the §4.9 default thresholds.
func DefaultOverloadConfig() OverloadConfig {
	return OverloadConfig{
		PredictionPointsLimit:    10000,
		PercentilePointsLimit:    2000,
		DosagePossibilitiesLimit: 10000,
	}
}

// OverloadEvaluator rejects oversized requests before work starts (C11).
// Per §9's redesign note, this is request-bound configuration rather than
// a mutable process-wide singleton; DefaultOverloadEvaluator offers the
// convenience default the note calls for.
type OverloadEvaluator struct {
	Config OverloadConfig
}

// NewOverloadEvaluator builds an evaluator with the given config.
func NewOverloadEvaluator(cfg OverloadConfig) *OverloadEvaluator {
	return &OverloadEvaluator{Config: cfg}
}

var (
	defaultEvaluatorOnce sync.Once
	defaultEvaluator     *OverloadEvaluator
)

// DefaultOverloadEvaluator returns the lazily-initialized process-wide
// default evaluator (§5's process-wide state S), usable as a convenience
// when a ComputingRequest does not carry its own override.
func DefaultOverloadEvaluator() *OverloadEvaluator {
	defaultEvaluatorOnce.Do(func() {
		defaultEvaluator = NewOverloadEvaluator(DefaultOverloadConfig())
	})
	return defaultEvaluator
}

// sumPoints totals NbPoints across intakes.
func sumPoints(intakes []IntakeEvent) int {
	total := 0
	for _, ev := range intakes {
		total += ev.NbPoints
	}
	return total
}

// CheckConcentration enforces the PredictionPointsLimit for a
// ComputingTraitConcentration (or At Measures / SinglePoints), per §4.9.
func (e *OverloadEvaluator) CheckConcentration(intakes []IntakeEvent) error {
	total := sumPoints(intakes)
	if total > e.Config.PredictionPointsLimit {
		return &ComputingError{
			Status: StatusTooBig,
			Message: fmt.Sprintf("requested %d prediction points, allowed %d", total, e.Config.PredictionPointsLimit),
		}
	}
	return nil
}

// CheckPercentiles enforces the PercentilePointsLimit for a
// ComputingTraitPercentiles, per §4.9 and §8 invariant 8.
func (e *OverloadEvaluator) CheckPercentiles(intakes []IntakeEvent) error {
	total := sumPoints(intakes)
	if total > e.Config.PercentilePointsLimit {
		return &ComputingError{
			Status: StatusTooBig,
			Message: fmt.Sprintf("requested %d percentile points, allowed %d", total, e.Config.PercentilePointsLimit),
		}
	}
	return nil
}

// CheckDosagePossibilities enforces the DosagePossibilitiesLimit for an
// adjustment search's candidate enumeration, per §4.9.
func (e *OverloadEvaluator) CheckDosagePossibilities(count int) error {
	if count > e.Config.DosagePossibilitiesLimit {
		return &ComputingError{
			Status: StatusTooBig,
			Message: fmt.Sprintf("enumerated %d dosage possibilities, allowed %d", count, e.Config.DosagePossibilitiesLimit),
		}
	}
	return nil
}
