// Package percentile implements the Monte-Carlo percentile engine (C8)
// and its memoizing cache (C9), per §4.6/§4.7.
package percentile

import (
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"github.com/tucuxi-go/pkengine/core"
	"golang.org/x/sync/errgroup"
)

// Engine implements core.PercentileEngine: it draws NumSamples parameter
// vectors from each parameter's between-subject variability, replays the
// intake series under each, and reduces the resulting concentration
// matrix to the requested percentile ranks by linear interpolation
// between order statistics, per §4.6.
type Engine struct {
	Config core.PercentileConfig
}

// NewEngine builds a percentile Engine using core.DefaultPercentileConfig's
// default sample count.
func NewEngine() *Engine { return &Engine{Config: core.DefaultPercentileConfig()} }

// Run implements core.PercentileEngine.
func (e *Engine) Run(params core.PercentileRunParams) ([]float64, [][]core.CycleData, error) {
	numSamples := params.NumSamples
	if numSamples <= 0 {
		numSamples = e.Config.DefaultNumSamples
		if numSamples <= 0 {
			numSamples = core.DefaultPercentileConfig().DefaultNumSamples
		}
	}

	concEngine := &core.ConcentrationEngine{
		Group:           params.Group,
		CovariateEngine: params.CovariateEngine,
		CovariateDefs:   params.CovariateDefs,
	}
	base, err := concEngine.ResolveBaseParameters(params.Treatment, params.Window, params.PointsPerHour, params.HalfLifeHours, params.ParameterSet)
	if err != nil {
		return nil, nil, err
	}

	runParams := core.RunParams{
		Treatment:      params.Treatment,
		Window:         params.Window,
		PointsPerHour:  params.PointsPerHour,
		HalfLifeHours:  params.HalfLifeHours,
		ParameterSet:   params.ParameterSet,
		WantStatistics: false,
		Aborter:        params.Aborter,
	}

	rng := core.NewPartitionedRNG(params.Key)
	samples := make([][]core.CycleData, numSamples)

	workers := runtime.GOMAXPROCS(0)
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for n := 0; n < numSamples; n++ {
		if params.Aborter != nil && params.Aborter.Triggered() {
			return nil, nil, &core.ComputingError{Status: core.StatusAborted, Message: "percentile engine aborted between samples"}
		}
		subsystem := core.SubsystemSample(n)
		draw := rng.ForSubsystem(subsystem)
		candidate, ok := sampleParameters(params.Group, base, draw)
		if !ok {
			// every redraw violated a parameter's validity predicate: drop
			// this sample per §7, leaving samples[n] nil.
			continue
		}
		g.Go(func() error {
			cycles, err := concEngine.RunFixed(runParams, candidate)
			if err != nil {
				return err
			}
			samples[n] = cycles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ce, ok := err.(*core.ComputingError); ok {
			return nil, nil, ce
		}
		return nil, nil, fmt.Errorf("percentile sampling: %w", err)
	}

	perRankCycles, err := reduceToRanks(samples, params.Ranks)
	if err != nil {
		return nil, nil, err
	}
	return append([]float64(nil), params.Ranks...), perRankCycles, nil
}

// maxBSVRedraws bounds how many times a single Monte-Carlo sample is
// redrawn after landing outside a parameter's validity predicate, per §7's
// "redrawn up to an implementation cap, then dropped" recovery.
const maxBSVRedraws = 100

// sampleParameters draws one realization of every group parameter from its
// between-subject variability around base, per §4.6 step 1. A draw that
// violates any ParameterDefinition.Valid predicate (e.g. a BSV spread that
// pushes CL or V negative) is redrawn up to maxBSVRedraws times; ok is
// false if every redraw still violated validity, meaning the caller must
// drop this sample.
func sampleParameters(group core.AnalyteGroup, base core.PKParameters, draw *rand.Rand) (candidate core.PKParameters, ok bool) {
	for attempt := 0; attempt <= maxBSVRedraws; attempt++ {
		values := make(map[string]float64, len(group.Parameters))
		for _, d := range group.Parameters {
			v, found := base.Values[d.Name]
			if !found {
				v = d.StandardValue
			}
			values[d.Name] = d.BSV.Sample(v, draw.NormFloat64)
		}
		candidate = core.PKParameters{Values: values}
		if candidate.Validate(group.Parameters) == nil {
			return candidate, true
		}
	}
	return core.PKParameters{}, false
}

// reduceToRanks builds one per-rank CycleData slice by sorting each
// sample's concentration at each (cycle, compartment, sample-time) triple
// and interpolating the requested percentile ranks between order
// statistics, per §4.6 steps 3-4. Cycle boundaries and sample times are
// taken from the first non-nil sample since all samples share the same
// intake series.
func reduceToRanks(samples [][]core.CycleData, ranks []float64) ([][]core.CycleData, error) {
	var template []core.CycleData
	for _, s := range samples {
		if s != nil {
			template = s
			break
		}
	}
	if template == nil {
		return nil, fmt.Errorf("percentile engine: no samples produced any cycles")
	}

	out := make([][]core.CycleData, len(ranks))
	for r, rank := range ranks {
		p := rank / 100
		cycles := make([]core.CycleData, len(template))
		for ci, tpl := range template {
			cycle := core.CycleData{
				Start:            tpl.Start,
				End:              tpl.End,
				SampleTimesHours: append([]float64(nil), tpl.SampleTimesHours...),
				Concentrations:   make([]core.CompartmentConcentrations, len(tpl.Concentrations)),
			}
			for comp := range tpl.Concentrations {
				cycle.Concentrations[comp] = make(core.CompartmentConcentrations, len(tpl.SampleTimesHours))
				for ti := range tpl.SampleTimesHours {
					values := collectAt(samples, ci, comp, ti)
					sort.Float64s(values)
					pos := p * float64(len(values)-1)
					lo := int(pos)
					q := values[lo]
					if lo+1 < len(values) {
						q += (pos - float64(lo)) * (values[lo+1] - values[lo])
					}
					cycle.Concentrations[comp][ti] = q
				}
			}
			cycles[ci] = cycle
		}
		out[r] = cycles
	}
	return out, nil
}

// collectAt gathers every sample's concentration at (cycle, compartment,
// sampleTime), skipping samples that errored out before producing cycles.
func collectAt(samples [][]core.CycleData, cycleIdx, compartment, sampleTime int) []float64 {
	out := make([]float64, 0, len(samples))
	for _, cycles := range samples {
		if cycleIdx >= len(cycles) {
			continue
		}
		c := cycles[cycleIdx]
		if compartment >= len(c.Concentrations) || sampleTime >= len(c.Concentrations[compartment]) {
			continue
		}
		out = append(out, c.Concentrations[compartment][sampleTime])
	}
	return out
}
