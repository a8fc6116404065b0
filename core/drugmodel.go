package core

// AnalyteGroup is one analyte's full PK description: its structural model,
// parameter definitions, and error model, per §6.
type AnalyteGroup struct {
	AnalyteID        string
	StructuralModel  StructuralModel
	Parameters       []ParameterDefinition
	ErrorModel       ErrorModel
	Unit             TypedUnit
	MolarMassGPerMol float64
}

// ParameterDefinition looks up def.Name in g.Parameters, or ok=false.
func (g AnalyteGroup) ParameterDefinition(name string) (ParameterDefinition, bool) {
	for _, d := range g.Parameters {
		if d.Name == name {
			return d, true
		}
	}
	return ParameterDefinition{}, false
}

// AvailableFormulationAndRoute describes one formulation-and-route the
// drug model supports, with its absorption parameters and the discrete
// candidate doses/intervals/infusions the adjustment search enumerates
// over, per §4.8 step 2.
type AvailableFormulationAndRoute struct {
	FormulationAndRoute FormulationAndRoute
	AvailableDoses      []float64
	AvailableIntervals  []Duration
	AvailableInfusions  []Duration // empty for non-infusion routes
	IsDefault           bool
}

// DomainConstraint bounds one parameter or covariate's admissible range,
// per §6's "domain constraints".
type DomainConstraint struct {
	Name     string
	Min, Max float64
}

// DrugModel is the in-memory drug model the core requires, per §6: drug
// id, model id, analyte groups, active moieties with targets,
// formulation-and-routes, covariates, domain constraints.
type DrugModel struct {
	DrugID             string
	ModelID            string
	AnalyteGroups      []AnalyteGroup
	ActiveMoieties     []ActiveMoiety
	FormulationsRoutes []AvailableFormulationAndRoute
	Covariates         []CovariateDefinition
	DomainConstraints  []DomainConstraint
}

// AnalyteGroupFor looks up the AnalyteGroup for analyteID, or ok=false.
func (m DrugModel) AnalyteGroupFor(analyteID string) (AnalyteGroup, bool) {
	for _, g := range m.AnalyteGroups {
		if g.AnalyteID == analyteID {
			return g, true
		}
	}
	return AnalyteGroup{}, false
}

// DefaultFormulationAndRouteSpec returns the drug model's default
// formulation-and-route, or ok=false if none is marked default.
func (m DrugModel) DefaultFormulationAndRouteSpec() (AvailableFormulationAndRoute, bool) {
	for _, fr := range m.FormulationsRoutes {
		if fr.IsDefault {
			return fr, true
		}
	}
	return AvailableFormulationAndRoute{}, false
}
