package adjustment

import "github.com/tucuxi-go/pkengine/core"

// candidate is one trial regimen under evaluation: a formulation and
// route together with one dose, interval, and (for infusion routes) one
// infusion duration drawn from its availability lists, per §4.8 step 2.
type candidate struct {
	fr       core.AvailableFormulationAndRoute
	dose     float64
	interval core.Duration
	infusion core.Duration
}

// selectFormulationsAndRoutes narrows the model's declared formulations
// and routes down to the set a search should try, per §4.8 step 1 and the
// FormulationAndRouteSelectionOption trait field.
func selectFormulationsAndRoutes(model core.DrugModel, treatment core.DrugTreatment, opt core.FormulationAndRouteSelectionOption) []core.AvailableFormulationAndRoute {
	switch opt {
	case core.LastFormulationAndRoute:
		if fr, ok := lastFormulationAndRoute(treatment); ok {
			if avail, ok := lookupAvailable(model, fr); ok {
				return []core.AvailableFormulationAndRoute{avail}
			}
		}
		return defaultFormulationsAndRoutes(model)
	case core.DefaultFormulationAndRoute:
		return defaultFormulationsAndRoutes(model)
	default: // core.AllFormulationAndRoutes
		return append([]core.AvailableFormulationAndRoute(nil), model.FormulationsRoutes...)
	}
}

func defaultFormulationsAndRoutes(model core.DrugModel) []core.AvailableFormulationAndRoute {
	var out []core.AvailableFormulationAndRoute
	for _, fr := range model.FormulationsRoutes {
		if fr.IsDefault {
			out = append(out, fr)
		}
	}
	if len(out) == 0 && len(model.FormulationsRoutes) > 0 {
		out = append(out, model.FormulationsRoutes[0])
	}
	return out
}

func lookupAvailable(model core.DrugModel, fr core.FormulationAndRoute) (core.AvailableFormulationAndRoute, bool) {
	for _, avail := range model.FormulationsRoutes {
		if avail.FormulationAndRoute == fr {
			return avail, true
		}
	}
	return core.AvailableFormulationAndRoute{}, false
}

// lastFormulationAndRoute walks the treatment's most recent TimeRange's
// Dosage tree down to the FormulationAndRoute it administers.
func lastFormulationAndRoute(treatment core.DrugTreatment) (core.FormulationAndRoute, bool) {
	ranges := treatment.History.Ranges
	if len(ranges) == 0 {
		return core.FormulationAndRoute{}, false
	}
	return formulationAndRouteOf(ranges[len(ranges)-1].Dosage)
}

func formulationAndRouteOf(d core.Dosage) (core.FormulationAndRoute, bool) {
	switch v := d.(type) {
	case core.LastingDose:
		return v.FormulationAndRoute, true
	case core.DailyDose:
		return v.FormulationAndRoute, true
	case core.WeeklyDose:
		return v.FormulationAndRoute, true
	case core.DosageRepeat:
		return formulationAndRouteOf(v.Inner)
	case core.DosageLoop:
		return formulationAndRouteOf(v.Inner)
	case core.DosageSteadyState:
		return formulationAndRouteOf(v.Inner)
	case core.DosageSequence:
		if len(v.Items) == 0 {
			return core.FormulationAndRoute{}, false
		}
		return formulationAndRouteOf(v.Items[len(v.Items)-1])
	case core.ParallelDosageSequence:
		if len(v.Items) == 0 {
			return core.FormulationAndRoute{}, false
		}
		return formulationAndRouteOf(v.Items[0])
	default:
		return core.FormulationAndRoute{}, false
	}
}

// enumerateCandidates builds the full cross product of dose, interval, and
// infusion duration (when applicable) across every formulation and route,
// per §4.8 step 2.
func enumerateCandidates(frs []core.AvailableFormulationAndRoute) []candidate {
	var out []candidate
	for _, fr := range frs {
		infusions := fr.AvailableInfusions
		if fr.FormulationAndRoute.AbsorptionModel != core.AbsorptionInfusion || len(infusions) == 0 {
			infusions = []core.Duration{0}
		}
		for _, dose := range fr.AvailableDoses {
			for _, interval := range fr.AvailableIntervals {
				for _, infusion := range infusions {
					out = append(out, candidate{fr: fr, dose: dose, interval: interval, infusion: infusion})
				}
			}
		}
	}
	return out
}
