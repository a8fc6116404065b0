package adjustment

import (
	"math"

	"github.com/tucuxi-go/pkengine/core"
)

// fallbackHalfLifeHours is used when a group's parameters don't expose a
// recognizable clearance/volume pair to derive an elimination half-life
// from, per §4.8 step 4's steady-state warm-up requirement.
const fallbackHalfLifeHours = 24.0

// estimateHalfLifeHours derives an approximate terminal elimination
// half-life from a one-compartment-style CL/V pair when the group's
// population parameters name them conventionally, falling back to a
// constant otherwise. Parameter names are drug-model-defined free text, so
// this is necessarily a heuristic rather than an exact computation.
func estimateHalfLifeHours(group core.AnalyteGroup) float64 {
	var cl, v float64
	for _, p := range group.Parameters {
		switch p.Name {
		case "CL", "Cl", "cl":
			cl = p.StandardValue
		case "V", "V1", "Vc":
			if v == 0 {
				v = p.StandardValue
			}
		}
	}
	if cl <= 0 || v <= 0 {
		return fallbackHalfLifeHours
	}
	return math.Ln2 * v / cl
}

// targetsFor finds the active moiety declaring targets for group, per
// §4.8 step 5.
func targetsFor(model core.DrugModel, group core.AnalyteGroup) []core.Target {
	for _, moiety := range model.ActiveMoieties {
		for _, analyte := range moiety.Analytes {
			if analyte == group.AnalyteID {
				return moiety.Targets
			}
		}
	}
	return nil
}

// scoreCycles scores the last evaluated cycle against every target and
// returns one TargetScore per target, per §4.8 step 5; globalScore
// combines them into the candidate's single global score.
func scoreCycles(cycles []core.CycleData, targets []core.Target, analyteID string) []core.TargetScore {
	scores := make([]core.TargetScore, len(targets))
	for i, target := range targets {
		observed := extractObserved(cycles, target)
		scores[i] = core.TargetScore{
			TargetType: target.Type,
			AnalyteID:  analyteID,
			Observed:   observed,
			Score:      target.Score(observed),
		}
	}
	return scores
}

func globalScore(scores []core.TargetScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	product := 1.0
	for _, s := range scores {
		product *= s.Score
	}
	if product <= 0 {
		return 0
	}
	return math.Pow(product, 1/float64(len(scores)))
}

// extractObserved derives the quantity a Target scores from the last
// evaluated cycle's per-compartment statistics, per the TargetType named
// in §4.8/§9's glossary. Only compartment 0 (the first analyte
// compartment) is scored, consistent with the rest of this core's
// one-analyte-group-per-run scope.
func extractObserved(cycles []core.CycleData, target core.Target) float64 {
	if len(cycles) == 0 {
		return 0
	}
	last := cycles[len(cycles)-1]
	if len(last.Statistics) == 0 || len(last.Concentrations) == 0 {
		return 0
	}
	stats := last.Statistics[0]

	switch target.Type {
	case core.TargetPeak:
		return stats.Peak
	case core.TargetPeakOverMIC:
		if target.MIC == nil || *target.MIC == 0 {
			return 0
		}
		return stats.Peak / *target.MIC
	case core.TargetResidual, core.TargetConcentrationAt:
		return stats.Trough
	case core.TargetMean:
		return stats.Mean
	case core.TargetAUC, core.TargetCumulativeAUC:
		return stats.AUC
	case core.TargetAUC24:
		return scaleAUC24(last, stats.AUC)
	case core.TargetAUC24OverMIC:
		if target.MIC == nil || *target.MIC == 0 {
			return 0
		}
		return scaleAUC24(last, stats.AUC) / *target.MIC
	case core.TargetTimeAboveMIC:
		return timeAboveMIC(last, target.MIC)
	default:
		return stats.Trough
	}
}

func scaleAUC24(cycle core.CycleData, auc float64) float64 {
	intervalHours := cycle.End.Sub(cycle.Start).Hours()
	if intervalHours <= 0 {
		return 0
	}
	return auc * (24 / intervalHours)
}

// timeAboveMIC integrates, by trapezoidal rule over the sampled grid, how
// many hours the first compartment's concentration spends at or above mic.
func timeAboveMIC(cycle core.CycleData, mic *float64) float64 {
	if mic == nil || len(cycle.Concentrations) == 0 {
		return 0
	}
	conc := cycle.Concentrations[0]
	times := cycle.SampleTimesHours
	if len(conc) != len(times) || len(conc) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(conc); i++ {
		dt := times[i] - times[i-1]
		above0, above1 := conc[i-1] >= *mic, conc[i] >= *mic
		switch {
		case above0 && above1:
			total += dt
		case above0 || above1:
			total += dt / 2
		}
	}
	return total
}
