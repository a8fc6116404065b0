package core

// TraitKind discriminates the ComputingTrait sum type, which Dispatch
// routes with a type switch rather than virtual double-dispatch (§9).
type TraitKind int

const (
	TraitConcentration TraitKind = iota
	TraitPercentiles
	TraitSinglePoints
	TraitAtMeasures
	TraitAdjustment
)

// CandidatesOption selects how many adjustment candidates Adjustment
// search returns, per §4.8 step 6 and original_source's CandidatesOption.
type CandidatesOption int

const (
	BestDosage CandidatesOption = iota
	AllDosages
	BestDosagePerInterval
)

// LoadingOption toggles whether a loading dose may prepend an adjustment
// candidate's regimen, per §4.8 step 3.
type LoadingOption int

const (
	NoLoadingDose LoadingOption = iota
	LoadingDoseAllowed
)

// RestPeriodOption toggles whether a rest period may prepend an
// adjustment candidate's regimen, per §4.8 step 3.
type RestPeriodOption int

const (
	NoRestPeriod RestPeriodOption = iota
	RestPeriodAllowed
)

// SteadyStateTargetOption selects whether an adjustment candidate is
// evaluated at steady state or within the treatment's own time range, per
// §4.8 step 4.
type SteadyStateTargetOption int

const (
	AtSteadyState SteadyStateTargetOption = iota
	WithinTreatmentTimeRange
)

// FormulationAndRouteSelectionOption selects which formulations-and-routes
// the adjustment search considers, per §4.8 step 1.
type FormulationAndRouteSelectionOption int

const (
	LastFormulationAndRoute FormulationAndRouteSelectionOption = iota
	DefaultFormulationAndRoute
	AllFormulationAndRoutes
)

// CompartmentsOption selects which compartments a response's CycleData
// reports, per §4.5 ("respect the compartments option").
type CompartmentsOption int

const (
	CompartmentsAll CompartmentsOption = iota
	CompartmentsActiveMoietyAndAnalyte
	CompartmentsAnalyteOnly
)

// ComputingOptions bundles the pharmacokinetic result-unit option and the
// compartments option shared by every trait, per §3.
type ComputingOptions struct {
	ResultUnit   ResultUnitOption
	Compartments CompartmentsOption
}

// ParameterSetKind selects the parameter-resolution mode (C5), used by
// adjustment's targetExtractionOption wiring and by callers that want to
// force a specific resolution mode outside of Bayesian auto-selection.
type ParameterSetKind int

const (
	ParameterSetPopulation ParameterSetKind = iota
	ParameterSetApriori
	ParameterSetAposteriori
)

// ComputingTrait is the sum-typed "what to compute" request, per §3 and
// §9's re-architecture note (ResponsePayload = one of ...).
type ComputingTrait interface {
	Kind() TraitKind
}

// TraitConcentrationData requests a single prediction over [Start, End].
type TraitConcentrationData struct {
	Start, End    Instant
	PointsPerHour float64
	Options       ComputingOptions
	ParameterSet  ParameterSetKind
}

func (TraitConcentrationData) Kind() TraitKind { return TraitConcentration }

// TraitPercentilesData requests percentile ranks over [Start, End].
type TraitPercentilesData struct {
	Start, End    Instant
	PointsPerHour float64
	Options       ComputingOptions
	Ranks         []float64 // each in (0, 100)
	NumSamples    int       // 0 selects the engine default (10 000)
}

func (TraitPercentilesData) Kind() TraitKind { return TraitPercentiles }

// TraitSinglePointsData requests concentrations at discrete instants.
type TraitSinglePointsData struct {
	Instants     []Instant
	Options      ComputingOptions
	ParameterSet ParameterSetKind
}

func (TraitSinglePointsData) Kind() TraitKind { return TraitSinglePoints }

// TraitAtMeasuresData requests concentrations at the treatment's own
// observed sample times.
type TraitAtMeasuresData struct {
	Options      ComputingOptions
	ParameterSet ParameterSetKind
}

func (TraitAtMeasuresData) Kind() TraitKind { return TraitAtMeasures }

// TraitAdjustmentData requests a dosage adjustment search, per §3 and §4.8.
type TraitAdjustmentData struct {
	Start, End                         Instant
	PointsPerHour                      float64
	Options                            ComputingOptions
	AdjustmentTime                     Instant
	CandidatesOption                   CandidatesOption
	LoadingOption                      LoadingOption
	RestPeriodOption                   RestPeriodOption
	SteadyStateTargetOption            SteadyStateTargetOption
	TargetExtractionOption             TargetExtractionOption
	FormulationAndRouteSelectionOption FormulationAndRouteSelectionOption
}

func (TraitAdjustmentData) Kind() TraitKind { return TraitAdjustment }
