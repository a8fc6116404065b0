package adjustment

import (
	"runtime"
	"sort"

	"github.com/tucuxi-go/pkengine/core"
	"golang.org/x/sync/errgroup"
)

// Search implements core.AdjustmentSearch (C10): it enumerates candidate
// regimens, scores each against the drug model's targets, and returns the
// survivors shaped by the trait's CandidatesOption, per §4.8.
type Search struct {
	Config core.AdjustmentConfig
}

// NewSearch builds an adjustment Search using core.DefaultAdjustmentConfig's
// sampling density and loading-dose multiplier.
func NewSearch() *Search { return &Search{Config: core.DefaultAdjustmentConfig()} }

// Run implements core.AdjustmentSearch.
func (s *Search) Run(params core.AdjustmentRunParams) (core.AdjustmentPayload, error) {
	if len(params.Model.AnalyteGroups) == 0 {
		return core.AdjustmentPayload{}, core.NewComputingError(core.StatusNoAnalyteMatch,
			"drug model %q/%q declares no analyte groups", params.Model.DrugID, params.Model.ModelID)
	}
	group := params.Model.AnalyteGroups[0]

	targets := targetsFor(params.Model, group)
	if len(targets) == 0 {
		return core.AdjustmentPayload{}, core.NewComputingError(core.StatusBadRequest,
			"no targets declared for analyte %q", group.AnalyteID)
	}

	frs := selectFormulationsAndRoutes(params.Model, params.Treatment, params.Trait.FormulationAndRouteSelectionOption)
	candidates := enumerateCandidates(frs)
	if len(candidates) == 0 {
		return core.AdjustmentPayload{}, core.NewComputingError(core.StatusBadRequest,
			"no candidate regimens available for the selected formulations and routes")
	}
	if params.Overload != nil {
		if err := params.Overload.CheckDosagePossibilities(len(candidates)); err != nil {
			return core.AdjustmentPayload{}, err
		}
	}

	halfLifeHours := estimateHalfLifeHours(group)
	pointsPerHour := params.Trait.PointsPerHour
	if pointsPerHour <= 0 {
		pointsPerHour = s.Config.DefaultPointsPerHour
		if pointsPerHour <= 0 {
			pointsPerHour = core.DefaultAdjustmentConfig().DefaultPointsPerHour
		}
	}

	loadingMultiplier := s.Config.LoadingDoseMultiplier
	if loadingMultiplier <= 0 {
		loadingMultiplier = core.DefaultAdjustmentConfig().LoadingDoseMultiplier
	}

	results := make([]core.AdjustmentCandidate, len(candidates))
	ok := make([]bool, len(candidates))

	workers := runtime.GOMAXPROCS(0)
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, cand := range candidates {
		i, cand := i, cand
		if params.Aborter != nil && params.Aborter.Triggered() {
			return core.AdjustmentPayload{}, &core.ComputingError{Status: core.StatusAborted, Message: "adjustment search aborted before candidate scoring"}
		}
		g.Go(func() error {
			trial, regimenIdx := buildTrialTreatment(params.Treatment, params.Trait.AdjustmentTime, cand,
				params.Trait.LoadingOption, params.Trait.RestPeriodOption, loadingMultiplier)
			evalTreatment, window := evaluationWindow(trial, regimenIdx, cand, params.Trait.SteadyStateTargetOption,
				params.Trait.Start, params.Trait.End)

			cycles, err := runGroup(group, params.Model.Covariates, evalTreatment, window, pointsPerHour, halfLifeHours,
				params.ParameterSet, params.Aborter)
			if err != nil {
				return nil // a failing candidate is dropped from the ranking, not fatal to the whole search
			}

			scores := scoreCycles(cycles, targets, group.AnalyteID)
			results[i] = core.AdjustmentCandidate{
				RegimenHistory: trial.History,
				TargetScores:   scores,
				GlobalScore:    globalScore(scores),
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	var scored []core.AdjustmentCandidate
	for i, r := range results {
		if ok[i] {
			scored = append(scored, r)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].GlobalScore != scored[j].GlobalScore {
			return scored[i].GlobalScore > scored[j].GlobalScore
		}
		return lessLexicographic(scored[i].RegimenHistory, scored[j].RegimenHistory)
	})

	currentScore, _ := scoreCurrentRegimen(group, params.Model.Covariates, params.Treatment, targets,
		params.Trait, pointsPerHour, halfLifeHours, params.ParameterSet, params.Aborter)

	return shapeOutput(params.Trait.CandidatesOption, currentScore, scored), nil
}

// runGroup evaluates one candidate treatment through the concentration
// engine, mirroring core's own per-group dispatch wiring since this
// package cannot reach core's unexported dispatcher helpers.
func runGroup(group core.AnalyteGroup, covariateDefs []core.CovariateDefinition, treatment core.DrugTreatment, window core.Window,
	pointsPerHour, halfLifeHours float64, parameterSet core.ParameterSetKind, aborter *core.Aborter) ([]core.CycleData, error) {
	engine := &core.ConcentrationEngine{
		Group:           group,
		CovariateEngine: covariateEngineOrNil(),
		CovariateDefs:   covariateDefs,
	}
	return engine.Run(core.RunParams{
		Treatment:      treatment,
		Window:         window,
		PointsPerHour:  pointsPerHour,
		ParameterSet:   parameterSet,
		HalfLifeHours:  halfLifeHours,
		WantStatistics: true,
		Aborter:        aborter,
	})
}

func covariateEngineOrNil() core.CovariateEngine {
	eng, err := core.NewCovariateEngine()
	if err != nil {
		return nil
	}
	return eng
}

// scoreCurrentRegimen evaluates the patient's existing regimen, unmodified
// beyond the trait's own evaluation window, as the baseline CurrentRegimenScore
// candidates are compared against, per §4.8's AdjustmentPayload contract.
func scoreCurrentRegimen(group core.AnalyteGroup, covariateDefs []core.CovariateDefinition, treatment core.DrugTreatment,
	targets []core.Target, trait core.TraitAdjustmentData, pointsPerHour, halfLifeHours float64,
	parameterSet core.ParameterSetKind, aborter *core.Aborter) (float64, error) {
	window := core.Window{Start: trait.Start, End: trait.End}
	cycles, err := runGroup(group, covariateDefs, treatment, window, pointsPerHour, halfLifeHours, parameterSet, aborter)
	if err != nil {
		return 0, err
	}
	return globalScore(scoreCycles(cycles, targets, group.AnalyteID)), nil
}

// lessLexicographic breaks global-score ties by (dose, interval, infusion
// duration) of the regimen's final (non-loading) TimeRange, per §4.8
// step 6's deterministic ordering requirement.
func lessLexicographic(a, b core.DoseHistory) bool {
	da, ia, fa, oka := regimenShape(a)
	db, ib, fb, okb := regimenShape(b)
	if !oka || !okb {
		return false
	}
	if da != db {
		return da < db
	}
	if ia != ib {
		return ia < ib
	}
	return fa < fb
}

func regimenShape(h core.DoseHistory) (dose float64, interval, infusion core.Duration, ok bool) {
	if len(h.Ranges) == 0 {
		return 0, 0, 0, false
	}
	ld, ok := h.Ranges[len(h.Ranges)-1].Dosage.(core.LastingDose)
	if !ok {
		return 0, 0, 0, false
	}
	return ld.Value, ld.Period, ld.InfusionDuration, true
}

// shapeOutput filters and truncates scored candidates per the trait's
// CandidatesOption, per §4.8 step 6.
func shapeOutput(opt core.CandidatesOption, currentScore float64, scored []core.AdjustmentCandidate) core.AdjustmentPayload {
	switch opt {
	case core.BestDosage:
		if len(scored) == 0 {
			return core.AdjustmentPayload{CurrentRegimenScore: currentScore}
		}
		return core.AdjustmentPayload{CurrentRegimenScore: currentScore, Candidates: scored[:1]}
	case core.BestDosagePerInterval:
		return core.AdjustmentPayload{CurrentRegimenScore: currentScore, Candidates: bestPerInterval(scored)}
	default: // core.AllDosages
		var accepted []core.AdjustmentCandidate
		for _, c := range scored {
			if c.GlobalScore > 0 {
				accepted = append(accepted, c)
			}
		}
		return core.AdjustmentPayload{CurrentRegimenScore: currentScore, Candidates: accepted}
	}
}

// bestPerInterval keeps the highest-scoring candidate for each distinct
// dosing interval seen in scored, which is assumed already sorted by
// descending score so the first candidate seen per interval wins.
func bestPerInterval(scored []core.AdjustmentCandidate) []core.AdjustmentCandidate {
	seen := make(map[core.Duration]bool)
	var out []core.AdjustmentCandidate
	for _, c := range scored {
		_, interval, _, ok := regimenShape(c.RegimenHistory)
		if !ok || seen[interval] {
			continue
		}
		seen[interval] = true
		out = append(out, c)
	}
	return out
}
