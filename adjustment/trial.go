package adjustment

import "github.com/tucuxi-go/pkengine/core"

// tucuxiDoseUnit is the unit assigned to every synthesized trial dose.
// AvailableFormulationAndRoute.AvailableDoses carries no unit of its own
// (unlike IntakeEvent or LastingDose, which always pair a value with a
// unit), so a dimensionally appropriate default is required; milligram is
// used since dose is a mass quantity and every drug model's doses are
// conventionally expressed in it.
var tucuxiDoseUnit = core.UnitMilligram

// buildTrialTreatment synthesizes the treatment a candidate regimen is
// evaluated against: the patient's existing history truncated at
// adjustmentTime, followed by an optional rest period, an optional
// loading dose cycle, and the candidate's own regimen, per §4.8 step 3.
// It returns the synthesized treatment along with the index of the
// TimeRange carrying the candidate's own (non-loading) regimen.
func buildTrialTreatment(treatment core.DrugTreatment, adjustmentTime core.Instant, cand candidate, loading core.LoadingOption, rest core.RestPeriodOption, loadingDoseMultiplier float64) (core.DrugTreatment, int) {
	ranges := truncateAt(treatment.History.Ranges, adjustmentTime)

	regimenStart := adjustmentTime
	if rest == core.RestPeriodAllowed {
		regimenStart = adjustmentTime.Add(cand.interval)
	}

	if loading == core.LoadingDoseAllowed {
		loadingEnd := regimenStart.Add(cand.interval)
		ranges = append(ranges, core.TimeRange{
			Start:  regimenStart,
			End:    loadingEnd,
			HasEnd: true,
			Dosage: lastingDose(cand, cand.dose*loadingDoseMultiplier),
		})
		regimenStart = loadingEnd
	}

	regimenIdx := len(ranges)
	ranges = append(ranges, core.TimeRange{
		Start:  regimenStart,
		HasEnd: false,
		Dosage: lastingDose(cand, cand.dose),
	})

	out := treatment.Clone()
	out.History = core.DoseHistory{Ranges: ranges}
	return out, regimenIdx
}

func lastingDose(cand candidate, dose float64) core.Dosage {
	return core.LastingDose{
		Value:               dose,
		Unit:                tucuxiDoseUnit,
		FormulationAndRoute: cand.fr.FormulationAndRoute,
		InfusionDuration:    cand.infusion,
		Period:              cand.interval,
	}
}

// truncateAt drops ranges starting at or after cutoff and closes the last
// surviving range at cutoff, so the candidate's own regimen is the sole
// dosing authority from cutoff onward.
func truncateAt(ranges []core.TimeRange, cutoff core.Instant) []core.TimeRange {
	var out []core.TimeRange
	for _, r := range ranges {
		if !r.Start.Before(cutoff) {
			continue
		}
		if !r.HasEnd || r.End.After(cutoff) {
			r.HasEnd = true
			r.End = cutoff
		}
		out = append(out, r)
	}
	return out
}

// evaluationWindow picks the window a trial treatment is evaluated over:
// a single cycle wrapped in a DosageSteadyState marker when the trait
// demands steady state (letting the intake extractor synthesize its own
// warm-up prelude per §4.1), or the trait's own [Start, End] query range
// otherwise, per §4.8 step 4.
func evaluationWindow(trial core.DrugTreatment, regimenIdx int, cand candidate, opt core.SteadyStateTargetOption, traitStart, traitEnd core.Instant) (core.DrugTreatment, core.Window) {
	if opt != core.AtSteadyState {
		start := trial.History.Ranges[regimenIdx].Start
		if start.After(traitStart) {
			return trial, core.Window{Start: start, End: traitEnd}
		}
		return trial, core.Window{Start: traitStart, End: traitEnd}
	}

	ranges := append([]core.TimeRange(nil), trial.History.Ranges...)
	r := ranges[regimenIdx]
	regimenStart := r.Start
	r.Dosage = core.DosageSteadyState{Inner: r.Dosage, LastDoseInstant: regimenStart}
	r.HasEnd = true
	r.End = regimenStart.Add(cand.interval)
	ranges[regimenIdx] = r
	// Drop any range after the steady-state cycle: it exists only to keep
	// DoseHistory.Validate's "open-ended range must be last" invariant
	// satisfied before this rewrite.
	ranges = ranges[:regimenIdx+1]

	trial.History = core.DoseHistory{Ranges: ranges}
	return trial, core.Window{Start: regimenStart, End: regimenStart.Add(cand.interval)}
}
