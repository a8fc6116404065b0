package covariates

import (
	"fmt"
	"sort"

	"github.com/tucuxi-go/pkengine/core"
)

// Engine implements core.CovariateEngine (C4), per §4.2.
type Engine struct{}

// NewEngine builds a covariate Engine.
func NewEngine() *Engine { return &Engine{} }

// Build computes one core.CovariateSeries per definition: observed
// (patient) covariates are taken directly; computed covariates are
// evaluated against the other series' values, refreshed at most once per
// RefreshPeriod, per §4.2.
func (e *Engine) Build(defs []core.CovariateDefinition, observed []core.PatientCovariate, window core.Window) (map[string]core.CovariateSeries, error) {
	byID := make(map[string][]core.PatientCovariate)
	for _, p := range observed {
		byID[p.ID] = append(byID[p.ID], p)
	}
	for id := range byID {
		sort.Slice(byID[id], func(i, j int) bool { return byID[id][i].Instant.Before(byID[id][j].Instant) })
	}

	result := make(map[string]core.CovariateSeries, len(defs))
	defsByID := make(map[string]core.CovariateDefinition, len(defs))
	for _, d := range defs {
		defsByID[d.ID] = d
	}

	// First pass: direct (non-computed) covariates, from observed patient
	// values.
	for _, d := range defs {
		if d.Computed != nil {
			continue
		}
		points := make([]core.CovariatePoint, 0, len(byID[d.ID]))
		for _, p := range byID[d.ID] {
			points = append(points, core.CovariatePoint{At: p.Instant, Value: p.Value})
		}
		result[d.ID] = core.CovariateSeries{ID: d.ID, Points: points}
	}

	// Second pass: computed covariates, evaluated at the union of
	// non-computed series' instants within window, refreshed at most once
	// per RefreshPeriod.
	for _, d := range defs {
		if d.Computed == nil {
			continue
		}
		series, err := e.buildComputed(d, defsByID, result, window)
		if err != nil {
			return nil, err
		}
		result[d.ID] = series
	}

	return result, nil
}

func (e *Engine) buildComputed(def core.CovariateDefinition, defsByID map[string]core.CovariateDefinition, series map[string]core.CovariateSeries, window core.Window) (core.CovariateSeries, error) {
	anyObserved := len(def.Computed.Inputs) == 0
	for _, inputID := range def.Computed.Inputs {
		s, ok := series[inputID]
		if !ok {
			return core.CovariateSeries{}, &core.ErrMissingCovariate{CovariateID: inputID}
		}
		if len(s.Points) > 0 {
			anyObserved = true
		}
	}
	var instants []core.Instant
	if anyObserved {
		instants = evaluationInstants(def, series, window)
	}

	var points []core.CovariatePoint
	var lastEvaluated core.Instant
	haveLast := false
	for _, at := range instants {
		if haveLast && def.RefreshPeriod > 0 && at.Sub(lastEvaluated) < def.RefreshPeriod {
			continue
		}
		inputs := make(map[string]float64, len(def.Computed.Inputs))
		for _, inputID := range def.Computed.Inputs {
			s, ok := series[inputID]
			if !ok {
				return core.CovariateSeries{}, &core.ErrMissingCovariate{CovariateID: inputID}
			}
			inputs[inputID] = s.ValueAt(at, defsByID[inputID])
		}
		value, err := def.Computed.Eval(inputs)
		if err != nil {
			return core.CovariateSeries{}, fmt.Errorf("evaluating computed covariate %q at %s: %w", def.ID, at, err)
		}
		points = append(points, core.CovariatePoint{At: at, Value: value})
		lastEvaluated = at
		haveLast = true
	}
	if len(points) == 0 {
		// no input has any observation: fall back to a single
		// standard-value point at the window start so downstream ValueAt
		// still has something to interpolate against.
		points = append(points, core.CovariatePoint{At: window.Start, Value: def.StandardValue})
	}
	return core.CovariateSeries{ID: def.ID, Points: points}, nil
}

// evaluationInstants is the sorted, de-duplicated union of every input
// covariate's observed instants, clipped to window, plus window.Start so a
// computed covariate is always defined from the start of the query.
func evaluationInstants(def core.CovariateDefinition, series map[string]core.CovariateSeries, window core.Window) []core.Instant {
	seen := make(map[int64]bool)
	var out []core.Instant
	add := func(at core.Instant) {
		key := at.Time().UnixNano()
		if seen[key] {
			return
		}
		if at.Before(window.Start) || at.After(window.End) {
			return
		}
		seen[key] = true
		out = append(out, at)
	}
	add(window.Start)
	for _, inputID := range def.Computed.Inputs {
		s, ok := series[inputID]
		if !ok {
			continue
		}
		for _, p := range s.Points {
			add(p.At)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
