package core

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	percentileCacheOnce sync.Once
	percentileCache     PercentileCache
)

// defaultPercentileCache lazily builds a process-wide percentile cache
// (C9), per §5's "request-bound configuration with a convenience default"
// note mirrored from DefaultOverloadEvaluator. Returns nil if no
// percentile package has been imported to register one, in which case
// dispatchPercentiles falls back to calling the engine directly.
func defaultPercentileCache() PercentileCache {
	percentileCacheOnce.Do(func() {
		if c, err := NewPercentileCache(); err == nil {
			percentileCache = c
		}
	})
	return percentileCache
}

// Dispatch is the single entry point for computing requests (C12). It
// validates the request, checks overload limits before any simulation
// work starts, routes to the trait-specific handler, and recovers
// InternalError panics at this boundary only, never inside a percentile
// cache's locked section, per §7.
func Dispatch(req *ComputingRequest) (resp *ComputingResponse) {
	defer func() {
		if r := recover(); r != nil {
			if ie, ok := r.(*InternalError); ok {
				logrus.WithField("request_id", req.ID).WithField("diagnostic", ie.Diagnostic).
					Error("dispatcher: internal error recovered")
				resp = &ComputingResponse{ID: req.ID, Status: StatusInternalError,
					Err: &ComputingError{Status: StatusInternalError, Message: ie.Error()}}
				return
			}
			panic(r)
		}
	}()

	if err := req.Treatment.ValidateSamples(); err != nil {
		return errorResponse(req.ID, err)
	}
	if len(req.Traits) == 0 {
		return errorResponse(req.ID, NewComputingError(StatusBadRequest, "request carries no computing traits"))
	}

	// Only the first trait is honored per Dispatch call; multiple traits in
	// one request are a caller-side convenience for sharing a DrugModel and
	// DrugTreatment across several Dispatch calls, not a fan-out contract.
	trait := req.Traits[0]

	switch t := trait.(type) {
	case TraitConcentrationData:
		return dispatchConcentration(req, t)
	case TraitPercentilesData:
		return dispatchPercentiles(req, t)
	case TraitSinglePointsData:
		return dispatchSinglePoints(req, t)
	case TraitAtMeasuresData:
		return dispatchAtMeasures(req, t)
	case TraitAdjustmentData:
		return dispatchAdjustment(req, t)
	default:
		return errorResponse(req.ID, NewComputingError(StatusBadRequest, "unrecognized computing trait %T", t))
	}
}

func errorResponse(id string, err error) *ComputingResponse {
	if ce, ok := err.(*ComputingError); ok {
		return &ComputingResponse{ID: id, Status: ce.Status, Err: ce}
	}
	ce := &ComputingError{Status: StatusBadRequest, Message: err.Error()}
	return &ComputingResponse{ID: id, Status: ce.Status, Err: ce}
}

// relevantGroups returns the AnalyteGroups the request's drug model
// declares, in declaration order. A future multi-analyte fan-out would
// call ConcentrationEngine.Run once per group and merge results here;
// today's Run already accepts exactly one group, so a model with several
// analyte groups is run group-by-group and the payloads concatenated.
func relevantGroups(model DrugModel) ([]AnalyteGroup, error) {
	if len(model.AnalyteGroups) == 0 {
		return nil, NewComputingError(StatusNoAnalyteMatch, "drug model %q/%q declares no analyte groups", model.DrugID, model.ModelID)
	}
	return model.AnalyteGroups, nil
}

func newCovariateEngineOrNil() CovariateEngine {
	eng, err := NewCovariateEngine()
	if err != nil {
		return nil
	}
	return eng
}

func runAllGroups(req *ComputingRequest, window Window, pointsPerHour, halfLifeHours float64, parameterSet ParameterSetKind, wantStatistics bool) ([]CycleData, []CompartmentDescriptor, error) {
	groups, err := relevantGroups(req.DrugModel)
	if err != nil {
		return nil, nil, err
	}
	covEngine := newCovariateEngineOrNil()

	var allCycles []CycleData
	var descriptors []CompartmentDescriptor
	for _, group := range groups {
		engine := &ConcentrationEngine{Group: group, CovariateEngine: covEngine, CovariateDefs: req.DrugModel.Covariates}
		cycles, err := engine.Run(RunParams{
			Treatment:     req.Treatment,
			Window:        window,
			PointsPerHour: pointsPerHour,
			ParameterSet:  parameterSet,
			HalfLifeHours: halfLifeHours,
			WantStatistics: wantStatistics,
			Aborter:       req.Aborter,
		})
		if err != nil {
			return nil, nil, err
		}
		allCycles = append(allCycles, cycles...)
		if len(cycles) > 0 {
			for i := range cycles[0].Concentrations {
				descriptors = append(descriptors, CompartmentDescriptor{AnalyteID: group.AnalyteID, Index: i})
			}
		}
	}
	return allCycles, descriptors, nil
}

func dispatchConcentration(req *ComputingRequest, t TraitConcentrationData) *ComputingResponse {
	window := Window{Start: t.Start, End: t.End}
	intakes, err := peekIntakes(req, window, t.PointsPerHour)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	if err := req.overloadEvaluator().CheckConcentration(intakes); err != nil {
		return errorResponse(req.ID, err)
	}

	cycles, descriptors, err := runAllGroups(req, window, t.PointsPerHour, 0, t.ParameterSet, true)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	applyResultUnit(cycles, req.DrugModel, t.Options.ResultUnit)
	return &ComputingResponse{ID: req.ID, Status: StatusOk,
		Payload: SinglePredictionPayload{Cycles: cycles, Compartments: descriptors}}
}

func dispatchSinglePoints(req *ComputingRequest, t TraitSinglePointsData) *ComputingResponse {
	if len(t.Instants) == 0 {
		return errorResponse(req.ID, NewComputingError(StatusBadRequest, "single points trait requested with no instants"))
	}
	window := spanningWindow(t.Instants)
	intakes, err := peekIntakes(req, window, 0)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	if err := req.overloadEvaluator().CheckConcentration(intakes); err != nil {
		return errorResponse(req.ID, err)
	}

	cycles, descriptors, err := runAllGroups(req, window, 0, 0, t.ParameterSet, false)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	applyResultUnit(cycles, req.DrugModel, t.Options.ResultUnit)

	perCompartment := make([]CompartmentConcentrations, len(descriptors))
	for i := range perCompartment {
		perCompartment[i] = make(CompartmentConcentrations, len(t.Instants))
	}
	for instantIdx, at := range t.Instants {
		for compIdx := range descriptors {
			perCompartment[compIdx][instantIdx] = concentrationAt(cycles, compIdx, at)
		}
	}
	return &ComputingResponse{ID: req.ID, Status: StatusOk,
		Payload: SinglePointsPayload{Instants: t.Instants, PerCompartment: perCompartment, Compartments: descriptors}}
}

func dispatchAtMeasures(req *ComputingRequest, t TraitAtMeasuresData) *ComputingResponse {
	if len(req.Treatment.Samples) == 0 {
		return errorResponse(req.ID, NewComputingError(StatusNoSample, "at-measures trait requested with no observed samples"))
	}
	instants := make([]Instant, len(req.Treatment.Samples))
	for i, s := range req.Treatment.Samples {
		instants[i] = s.At
	}
	return dispatchSinglePoints(req, TraitSinglePointsData{Instants: instants, Options: t.Options, ParameterSet: t.ParameterSet})
}

func dispatchPercentiles(req *ComputingRequest, t TraitPercentilesData) *ComputingResponse {
	if t.PointsPerHour <= 0 {
		t.PointsPerHour = DefaultPercentileConfig().DefaultPointsPerHour
	}
	window := Window{Start: t.Start, End: t.End}
	intakes, err := peekIntakes(req, window, t.PointsPerHour)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	if err := req.overloadEvaluator().CheckPercentiles(intakes); err != nil {
		return errorResponse(req.ID, err)
	}
	groups, err := relevantGroups(req.DrugModel)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	group := groups[0]

	runParams := PercentileRunParams{
		Group:           group,
		CovariateEngine: newCovariateEngineOrNil(),
		CovariateDefs:   req.DrugModel.Covariates,
		Treatment:       req.Treatment,
		Window:          window,
		PointsPerHour:   t.PointsPerHour,
		ParameterSet:    ParameterSetPopulation,
		Ranks:           t.Ranks,
		NumSamples:      t.NumSamples,
		Key:             NewSimulationKey(req.ID),
		Aborter:         req.Aborter,
	}

	cache := defaultPercentileCache()
	cacheKey := percentileCacheKey(req.DrugModel, req.Treatment, t)
	if cache != nil {
		if resp, ok := cache.Get(cacheKey, runParams); ok {
			resp.ID = req.ID
			return &resp
		}
	}

	engine, err := NewPercentileEngine()
	if err != nil {
		return errorResponse(req.ID, err)
	}
	ranks, perRankCycles, err := engine.Run(runParams)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	var descriptors []CompartmentDescriptor
	if len(perRankCycles) > 0 && len(perRankCycles[0]) > 0 {
		for i := range perRankCycles[0][0].Concentrations {
			descriptors = append(descriptors, CompartmentDescriptor{AnalyteID: group.AnalyteID, Index: i})
		}
	}
	resp := ComputingResponse{ID: req.ID, Status: StatusOk,
		Payload: PercentilesPayload{Ranks: ranks, PerRankCycles: perRankCycles, Compartments: descriptors}}
	if cache != nil {
		cache.Put(cacheKey, runParams, resp)
	}
	return &resp
}

// percentileCacheKey fingerprints everything a percentile cache entry is
// keyed on besides its window and points-per-hour (those are read from
// each entry's own cycle grid at lookup time), per §4.7: drug model id,
// treatment structural shape, ranks, prediction type, and compartments
// option.
func percentileCacheKey(model DrugModel, treatment DrugTreatment, t TraitPercentilesData) string {
	return fmt.Sprintf("%s/%s|%#v|ranks=%v|pred=%d|compartments=%d",
		model.DrugID, model.ModelID, treatment.History.Ranges, t.Ranks, ParameterSetPopulation, t.Options.Compartments)
}

func dispatchAdjustment(req *ComputingRequest, t TraitAdjustmentData) *ComputingResponse {
	search, err := NewAdjustmentSearch()
	if err != nil {
		return errorResponse(req.ID, err)
	}
	payload, err := search.Run(AdjustmentRunParams{
		Model:        req.DrugModel,
		Treatment:    req.Treatment,
		Trait:        t,
		ParameterSet: parameterSetForTargetExtraction(t.TargetExtractionOption, req.Treatment),
		Aborter:      req.Aborter,
		Overload:     req.overloadEvaluator(),
	})
	if err != nil {
		return errorResponse(req.ID, err)
	}
	return &ComputingResponse{ID: req.ID, Status: StatusOk, Payload: payload}
}

// parameterSetForTargetExtraction maps an adjustment trait's
// TargetExtractionOption onto the parameter-resolution mode its candidate
// regimens are simulated with. Population values select population
// resolution; the individual-targets-only option selects a posteriori
// resolution when the treatment carries samples and a priori otherwise;
// every other option selects a priori resolution.
func parameterSetForTargetExtraction(opt TargetExtractionOption, treatment DrugTreatment) ParameterSetKind {
	switch opt {
	case TargetExtractionPopulationValues:
		return ParameterSetPopulation
	case TargetExtractionIndividualTargetsOnly:
		if len(treatment.Samples) > 0 {
			return ParameterSetAposteriori
		}
		return ParameterSetApriori
	default:
		return ParameterSetApriori
	}
}

// peekIntakes extracts intakes for an overload pre-check without running
// any calculator, per §4.9 ("reject oversized requests before work
// starts").
func peekIntakes(req *ComputingRequest, window Window, pointsPerHour float64) ([]IntakeEvent, error) {
	defaults := ExtractionDefaults{PointsPerHour: pointsPerHour, HalfLifeHours: 0}
	intakes, err := ExtractIntakes(req.Treatment.History, window, defaults)
	if err != nil {
		return nil, fmt.Errorf("extracting intakes: %w", err)
	}
	return intakes, nil
}

func spanningWindow(instants []Instant) Window {
	w := Window{Start: instants[0], End: instants[0]}
	for _, at := range instants[1:] {
		if at.Before(w.Start) {
			w.Start = at
		}
		if at.After(w.End) {
			w.End = at
		}
	}
	return w
}

func concentrationAt(cycles []CycleData, compartmentIdx int, at Instant) float64 {
	for _, c := range cycles {
		if at.Before(c.Start) || at.After(c.End) {
			continue
		}
		if compartmentIdx >= len(c.Concentrations) {
			return 0
		}
		hours := at.Sub(c.Start).Hours()
		return interpolate(c.SampleTimesHours, c.Concentrations[compartmentIdx], hours)
	}
	return 0
}

// applyResultUnit post-converts every cycle's concentrations to µg/L when
// requested, per §4.4 and §8 invariant 7 (unit neutrality: only the
// reported output changes, never the resolved parameters).
func applyResultUnit(cycles []CycleData, model DrugModel, option ResultUnitOption) {
	if option != ForceMicrogramPerLiter {
		return
	}
	for i := range cycles {
		for j := range cycles[i].Concentrations {
			unit, molarMass := unitForCompartment(model, j)
			converted, err := ConvertToForcedUnit(cycles[i].Concentrations[j], unit, molarMass)
			if err != nil {
				continue
			}
			cycles[i].Concentrations[j] = converted
		}
	}
}

// unitForCompartment reports the unit and molar mass governing a
// compartment's concentrations. Every compartment within one analyte
// group shares that group's unit; a model declaring more than one
// analyte group is assumed to report its first group's unit for forced
// conversion, matching this engine's one-group-per-Run scope.
func unitForCompartment(model DrugModel, compartmentIdx int) (TypedUnit, float64) {
	if len(model.AnalyteGroups) == 0 {
		return UnitMgPerLiter, 0
	}
	return model.AnalyteGroups[0].Unit, model.AnalyteGroups[0].MolarMassGPerMol
}
