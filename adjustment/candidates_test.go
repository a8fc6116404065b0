package adjustment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tucuxi-go/pkengine/core"
)

func oralFR(isDefault bool) core.AvailableFormulationAndRoute {
	return core.AvailableFormulationAndRoute{
		FormulationAndRoute: core.FormulationAndRoute{Formulation: "tablet", AdministrationRoute: "oral", AbsorptionModel: core.AbsorptionExtravascular},
		AvailableDoses:      []float64{500, 1000},
		AvailableIntervals:  []core.Duration{core.DurationFromHours(12), core.DurationFromHours(24)},
		IsDefault:           isDefault,
	}
}

func ivFR() core.AvailableFormulationAndRoute {
	return core.AvailableFormulationAndRoute{
		FormulationAndRoute: core.FormulationAndRoute{Formulation: "solution", AdministrationRoute: "intravenous", AbsorptionModel: core.AbsorptionInfusion},
		AvailableDoses:      []float64{1000},
		AvailableIntervals:  []core.Duration{core.DurationFromHours(12)},
		AvailableInfusions:  []core.Duration{core.DurationFromHours(1), core.DurationFromHours(2)},
	}
}

func TestSelectFormulationsAndRoutes_All_ReturnsEveryFormulation(t *testing.T) {
	model := core.DrugModel{FormulationsRoutes: []core.AvailableFormulationAndRoute{oralFR(false), ivFR()}}
	got := selectFormulationsAndRoutes(model, core.DrugTreatment{}, core.AllFormulationAndRoutes)
	assert.Len(t, got, 2)
}

func TestSelectFormulationsAndRoutes_Default_ReturnsOnlyDefaultFlagged(t *testing.T) {
	model := core.DrugModel{FormulationsRoutes: []core.AvailableFormulationAndRoute{oralFR(true), ivFR()}}
	got := selectFormulationsAndRoutes(model, core.DrugTreatment{}, core.DefaultFormulationAndRoute)
	assert.Len(t, got, 1)
	assert.Equal(t, "tablet", got[0].FormulationAndRoute.Formulation)
}

func TestSelectFormulationsAndRoutes_Default_NoneFlagged_FallsBackToFirst(t *testing.T) {
	model := core.DrugModel{FormulationsRoutes: []core.AvailableFormulationAndRoute{oralFR(false), ivFR()}}
	got := selectFormulationsAndRoutes(model, core.DrugTreatment{}, core.DefaultFormulationAndRoute)
	assert.Len(t, got, 1)
	assert.Equal(t, "tablet", got[0].FormulationAndRoute.Formulation)
}

func TestSelectFormulationsAndRoutes_Last_MatchesTreatmentHistory(t *testing.T) {
	model := core.DrugModel{FormulationsRoutes: []core.AvailableFormulationAndRoute{oralFR(false), ivFR()}}
	start := core.NewInstant(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	treatment := core.DrugTreatment{History: core.DoseHistory{Ranges: []core.TimeRange{
		{Start: start, Dosage: core.LastingDose{FormulationAndRoute: ivFR().FormulationAndRoute}},
	}}}

	got := selectFormulationsAndRoutes(model, treatment, core.LastFormulationAndRoute)
	assert.Len(t, got, 1)
	assert.Equal(t, "solution", got[0].FormulationAndRoute.Formulation)
}

func TestSelectFormulationsAndRoutes_Last_NoHistory_FallsBackToDefault(t *testing.T) {
	model := core.DrugModel{FormulationsRoutes: []core.AvailableFormulationAndRoute{oralFR(true)}}
	got := selectFormulationsAndRoutes(model, core.DrugTreatment{}, core.LastFormulationAndRoute)
	assert.Len(t, got, 1)
	assert.Equal(t, "tablet", got[0].FormulationAndRoute.Formulation)
}

func TestFormulationAndRouteOf_UnwrapsRepeatAndLoopAndSteadyState(t *testing.T) {
	fr := oralFR(false).FormulationAndRoute
	inner := core.LastingDose{FormulationAndRoute: fr}

	cases := []core.Dosage{
		core.DosageRepeat{Inner: inner, N: 3},
		core.DosageLoop{Inner: inner},
		core.DosageSteadyState{Inner: inner},
	}
	for _, d := range cases {
		got, ok := formulationAndRouteOf(d)
		assert.True(t, ok)
		assert.Equal(t, fr, got)
	}
}

func TestFormulationAndRouteOf_DosageSequence_UsesLastItem(t *testing.T) {
	fr := oralFR(false).FormulationAndRoute
	other := ivFR().FormulationAndRoute
	seq := core.DosageSequence{Items: []core.Dosage{
		core.LastingDose{FormulationAndRoute: other},
		core.LastingDose{FormulationAndRoute: fr},
	}}

	got, ok := formulationAndRouteOf(seq)
	assert.True(t, ok)
	assert.Equal(t, fr, got)
}

func TestFormulationAndRouteOf_EmptySequence_ReturnsNotOk(t *testing.T) {
	_, ok := formulationAndRouteOf(core.DosageSequence{})
	assert.False(t, ok)
}

func TestEnumerateCandidates_OralRoute_CrossesDosesAndIntervalsOnly(t *testing.T) {
	candidates := enumerateCandidates([]core.AvailableFormulationAndRoute{oralFR(false)})
	assert.Len(t, candidates, 2*2) // 2 doses x 2 intervals, no infusion axis
	for _, c := range candidates {
		assert.Equal(t, core.Duration(0), c.infusion)
	}
}

func TestEnumerateCandidates_InfusionRoute_CrossesInfusionDurationsToo(t *testing.T) {
	candidates := enumerateCandidates([]core.AvailableFormulationAndRoute{ivFR()})
	assert.Len(t, candidates, 1*1*2) // 1 dose x 1 interval x 2 infusion durations
}
