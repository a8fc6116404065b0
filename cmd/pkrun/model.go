package pkrun

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tucuxi-go/pkengine/core"
)

type unitFile struct {
	Name      string  `json:"name"`
	Dimension string  `json:"dimension"`
	ToBase    float64 `json:"toBase"`
}

func (u unitFile) toCore() core.TypedUnit {
	return core.TypedUnit{Name: u.Name, Dimension: core.Dimension(u.Dimension), ToBase: u.ToBase}
}

type parameterFile struct {
	Name          string  `json:"name"`
	Class         string  `json:"class"` // "disposition" | "absorption"
	StandardValue float64 `json:"standardValue"`
	BSVType       string  `json:"bsvType"` // "none" | "additive" | "proportional" | "exponential" | "lognormal"
	BSVStdDev     float64 `json:"bsvStdDev"`
}

func parseBSVType(s string) (core.BSVType, error) {
	switch s {
	case "", "none":
		return core.BSVNone, nil
	case "additive":
		return core.BSVAdditive, nil
	case "proportional":
		return core.BSVProportional, nil
	case "exponential":
		return core.BSVExponential, nil
	case "lognormal":
		return core.BSVLognormal, nil
	default:
		return 0, fmt.Errorf("unrecognized bsvType %q", s)
	}
}

func parseParameterClass(s string) (core.ParameterClass, error) {
	switch s {
	case "", "disposition":
		return core.ParameterDisposition, nil
	case "absorption":
		return core.ParameterAbsorption, nil
	default:
		return 0, fmt.Errorf("unrecognized parameter class %q", s)
	}
}

func (p parameterFile) toCore() (core.ParameterDefinition, error) {
	bsvType, err := parseBSVType(p.BSVType)
	if err != nil {
		return core.ParameterDefinition{}, fmt.Errorf("parameter %q: %w", p.Name, err)
	}
	class, err := parseParameterClass(p.Class)
	if err != nil {
		return core.ParameterDefinition{}, fmt.Errorf("parameter %q: %w", p.Name, err)
	}
	return core.ParameterDefinition{
		Name:          p.Name,
		Class:         class,
		StandardValue: p.StandardValue,
		BSV:           core.BSV{Type: bsvType, StdDev: p.BSVStdDev},
	}, nil
}

type errorModelFile struct {
	Kind   string  `json:"kind"`
	Sigma0 float64 `json:"sigma0"`
	Sigma1 float64 `json:"sigma1"`
}

func (e errorModelFile) toCore() core.ErrorModel {
	return core.ErrorModel{Kind: core.ErrorModelKind(e.Kind), Sigma0: e.Sigma0, Sigma1: e.Sigma1}
}

type analyteGroupFile struct {
	AnalyteID        string          `json:"analyteId"`
	StructuralModel  string          `json:"structuralModel"`
	Parameters       []parameterFile `json:"parameters"`
	ErrorModel       errorModelFile  `json:"errorModel"`
	Unit             unitFile        `json:"unit"`
	MolarMassGPerMol float64         `json:"molarMassGPerMol"`
}

func (g analyteGroupFile) toCore() (core.AnalyteGroup, error) {
	params := make([]core.ParameterDefinition, len(g.Parameters))
	for i, p := range g.Parameters {
		cp, err := p.toCore()
		if err != nil {
			return core.AnalyteGroup{}, err
		}
		params[i] = cp
	}
	return core.AnalyteGroup{
		AnalyteID:        g.AnalyteID,
		StructuralModel:  core.StructuralModel(g.StructuralModel),
		Parameters:       params,
		ErrorModel:       g.ErrorModel.toCore(),
		Unit:             g.Unit.toCore(),
		MolarMassGPerMol: g.MolarMassGPerMol,
	}, nil
}

type formulationAndRouteFile struct {
	Formulation         string `json:"formulation"`
	AdministrationRoute string `json:"administrationRoute"`
	AbsorptionModel     string `json:"absorptionModel"`
	AdministrationName  string `json:"administrationName"`
}

func (f formulationAndRouteFile) toCore() core.FormulationAndRoute {
	return core.FormulationAndRoute{
		Formulation:         f.Formulation,
		AdministrationRoute: f.AdministrationRoute,
		AbsorptionModel:     core.AbsorptionModel(f.AbsorptionModel),
		AdministrationName:  f.AdministrationName,
	}
}

type availableFormulationAndRouteFile struct {
	FormulationAndRoute formulationAndRouteFile `json:"formulationAndRoute"`
	AvailableDoses      []float64               `json:"availableDoses"`
	AvailableIntervalsHours []float64           `json:"availableIntervalsHours"`
	AvailableInfusionsHours []float64           `json:"availableInfusionsHours"`
	IsDefault           bool                    `json:"isDefault"`
}

func (f availableFormulationAndRouteFile) toCore() core.AvailableFormulationAndRoute {
	return core.AvailableFormulationAndRoute{
		FormulationAndRoute: f.FormulationAndRoute.toCore(),
		AvailableDoses:      f.AvailableDoses,
		AvailableIntervals:  hoursToDurations(f.AvailableIntervalsHours),
		AvailableInfusions:  hoursToDurations(f.AvailableInfusionsHours),
		IsDefault:           f.IsDefault,
	}
}

func hoursToDurations(hours []float64) []core.Duration {
	out := make([]core.Duration, len(hours))
	for i, h := range hours {
		out[i] = core.DurationFromHours(h)
	}
	return out
}

type targetFile struct {
	Type           string   `json:"type"`
	Unit           unitFile `json:"unit"`
	Min            float64  `json:"min"`
	Max            float64  `json:"max"`
	Best           float64  `json:"best"`
	Inefficacy     float64  `json:"inefficacy"`
	Toxicity       float64  `json:"toxicity"`
	MIC            *float64 `json:"mic,omitempty"`
	TMinHours      float64  `json:"tMinHours"`
	TMaxHours      float64  `json:"tMaxHours"`
	TBestHours     float64  `json:"tBestHours"`
}

func (t targetFile) toCore() core.Target {
	return core.Target{
		Type:       core.TargetType(t.Type),
		Unit:       t.Unit.toCore(),
		Min:        t.Min,
		Max:        t.Max,
		Best:       t.Best,
		Inefficacy: t.Inefficacy,
		Toxicity:   t.Toxicity,
		MIC:        t.MIC,
		TMin:       core.DurationFromHours(t.TMinHours),
		TMax:       core.DurationFromHours(t.TMaxHours),
		TBest:      core.DurationFromHours(t.TBestHours),
	}
}

type activeMoietyFile struct {
	ID       string       `json:"id"`
	Analytes []string     `json:"analytes"`
	Targets  []targetFile `json:"targets"`
}

func (m activeMoietyFile) toCore() core.ActiveMoiety {
	targets := make([]core.Target, len(m.Targets))
	for i, t := range m.Targets {
		targets[i] = t.toCore()
	}
	return core.ActiveMoiety{ID: m.ID, Analytes: m.Analytes, Targets: targets}
}

type covariateDefinitionFile struct {
	ID               string   `json:"id"`
	StandardValue    float64  `json:"standardValue"`
	HasStandardValue bool     `json:"hasStandardValue"`
	Unit             unitFile `json:"unit"`
	DataType         string   `json:"dataType"` // "numeric" | "categorical"
	Interpolation    string   `json:"interpolation"` // "direct" | "linear"
	RefreshPeriodHours float64 `json:"refreshPeriodHours"`
}

func (c covariateDefinitionFile) toCore() core.CovariateDefinition {
	dataType := core.CovariateNumeric
	if c.DataType == "categorical" {
		dataType = core.CovariateCategorical
	}
	interp := core.InterpolationDirect
	if c.Interpolation == "linear" {
		interp = core.InterpolationLinear
	}
	return core.CovariateDefinition{
		ID:               c.ID,
		StandardValue:    c.StandardValue,
		HasStandardValue: c.HasStandardValue,
		Unit:             c.Unit.toCore(),
		DataType:         dataType,
		Interpolation:    interp,
		RefreshPeriod:    core.DurationFromHours(c.RefreshPeriodHours),
	}
}

type domainConstraintFile struct {
	Name     string  `json:"name"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
}

type drugModelFile struct {
	DrugID             string                             `json:"drugId"`
	ModelID            string                             `json:"modelId"`
	AnalyteGroups      []analyteGroupFile                 `json:"analyteGroups"`
	ActiveMoieties     []activeMoietyFile                 `json:"activeMoieties"`
	FormulationsRoutes []availableFormulationAndRouteFile  `json:"formulationsRoutes"`
	Covariates         []covariateDefinitionFile           `json:"covariates"`
	DomainConstraints  []domainConstraintFile              `json:"domainConstraints"`
}

// loadDrugModel reads and converts a JSON drug model file into a
// core.DrugModel. Computed covariates are not expressible in this file
// format (a formula's Eval is a closure, not wire data); drug models
// needing them must be built in Go and driven some other way than this CLI.
func loadDrugModel(path string) (core.DrugModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.DrugModel{}, fmt.Errorf("reading drug model %s: %w", path, err)
	}
	var file drugModelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return core.DrugModel{}, fmt.Errorf("parsing drug model %s: %w", path, err)
	}

	groups := make([]core.AnalyteGroup, len(file.AnalyteGroups))
	for i, g := range file.AnalyteGroups {
		cg, err := g.toCore()
		if err != nil {
			return core.DrugModel{}, fmt.Errorf("drug model %s: %w", path, err)
		}
		groups[i] = cg
	}
	moieties := make([]core.ActiveMoiety, len(file.ActiveMoieties))
	for i, m := range file.ActiveMoieties {
		moieties[i] = m.toCore()
	}
	formulations := make([]core.AvailableFormulationAndRoute, len(file.FormulationsRoutes))
	for i, f := range file.FormulationsRoutes {
		formulations[i] = f.toCore()
	}
	covariates := make([]core.CovariateDefinition, len(file.Covariates))
	for i, c := range file.Covariates {
		covariates[i] = c.toCore()
	}
	constraints := make([]core.DomainConstraint, len(file.DomainConstraints))
	for i, c := range file.DomainConstraints {
		constraints[i] = core.DomainConstraint{Name: c.Name, Min: c.Min, Max: c.Max}
	}

	return core.DrugModel{
		DrugID:             file.DrugID,
		ModelID:            file.ModelID,
		AnalyteGroups:      groups,
		ActiveMoieties:     moieties,
		FormulationsRoutes: formulations,
		Covariates:         covariates,
		DomainConstraints:  constraints,
	}, nil
}
