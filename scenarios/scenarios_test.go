// Package scenarios exercises Dispatch end to end with every
// subsystem's factory wired in, the way cmd/pkrun does for real
// invocations. These aren't unit tests of any one package; they check
// the whole-request behaviors a caller actually depends on.
package scenarios

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tucuxi-go/pkengine/core"

	_ "github.com/tucuxi-go/pkengine/adjustment"
	_ "github.com/tucuxi-go/pkengine/bayes"
	_ "github.com/tucuxi-go/pkengine/calculators"
	_ "github.com/tucuxi-go/pkengine/covariates"
	_ "github.com/tucuxi-go/pkengine/percentile"
)

func at(t string) core.Instant {
	ts, err := time.Parse(time.RFC3339, t)
	if err != nil {
		panic(err)
	}
	return core.NewInstant(ts)
}

func vancomycinTwoCompModel() core.DrugModel {
	return core.DrugModel{
		DrugID:  "ch.tucuxi.vancomycin",
		ModelID: "linear2comp",
		AnalyteGroups: []core.AnalyteGroup{{
			AnalyteID:       "vancomycin",
			StructuralModel: core.ModelLinear2CompMacro,
			Parameters: []core.ParameterDefinition{
				{Name: "CL", Class: core.ParameterDisposition, StandardValue: 3.505},
				{Name: "V1", Class: core.ParameterDisposition, StandardValue: 31.05},
				{Name: "Q", Class: core.ParameterDisposition, StandardValue: 7.48},
				{Name: "V2", Class: core.ParameterDisposition, StandardValue: 99},
			},
			ErrorModel: core.ErrorModel{Kind: core.ErrorModelProportional, Sigma0: 0.1},
			Unit:       core.UnitMgPerLiter,
		}},
	}
}

func twelveHourInfusionTreatment(start core.Instant) core.DrugTreatment {
	return core.DrugTreatment{
		History: core.DoseHistory{Ranges: []core.TimeRange{{
			Start:  start,
			HasEnd: false,
			Dosage: core.LastingDose{
				Value: 1000,
				Unit:  core.UnitMgPerLiter,
				FormulationAndRoute: core.FormulationAndRoute{
					Formulation:         "solution",
					AdministrationRoute: "intravenous",
					AbsorptionModel:     core.AbsorptionInfusion,
				},
				InfusionDuration: core.DurationFromHours(2),
				Period:           core.DurationFromHours(12),
			},
		}}},
	}
}

// S1: linear 2-compartment infusion, population parameters, 4-day window.
func TestScenario_LinearTwoCompartmentInfusion_PopulationFourDays(t *testing.T) {
	start := at("2018-09-01T08:00:00Z")
	end := at("2018-09-05T08:00:00Z")
	model := vancomycinTwoCompModel()
	treatment := twelveHourInfusionTreatment(start)

	req := core.NewComputingRequest("s1", model, treatment, core.TraitConcentrationData{
		Start: start, End: end, PointsPerHour: 10,
		ParameterSet: core.ParameterSetPopulation,
	})
	resp := core.Dispatch(req)
	require.Equal(t, core.StatusOk, resp.Status)

	payload, ok := resp.Payload.(core.SinglePredictionPayload)
	require.True(t, ok)
	require.Len(t, payload.Compartments, 1)
	assert.Equal(t, "vancomycin", payload.Compartments[0].AnalyteID)
	require.Len(t, payload.Cycles, 8)

	for _, cycle := range payload.Cycles {
		assert.InDelta(t, 12, cycle.End.Sub(cycle.Start).Hours(), 1e-6)
	}

	// Residual continuity: compartment 0's first sample of cycle i+1
	// equals cycle i's residual within tolerance.
	for i := 0; i+1 < len(payload.Cycles); i++ {
		cur := payload.Cycles[i]
		next := payload.Cycles[i+1]
		for k := range cur.Concentrations {
			gotResidual := cur.Concentrations[k][len(cur.Concentrations[k])-1]
			gotNext := next.Concentrations[k][0]
			assert.InDelta(t, gotResidual, gotNext, 1e-6*(1+gotResidual))
		}
	}

	// Steady-state invariance: last cycle's residual is close to its
	// first sample once several half-lives have elapsed.
	last := payload.Cycles[len(payload.Cycles)-1]
	firstPeak := last.Concentrations[0][0]
	lastResidual := last.Concentrations[0][len(last.Concentrations[0])-1]
	assert.InDelta(t, firstPeak, lastResidual, 0.15*firstPeak)
}

// S4: a repeated percentile request, a request on a disjoint window, and a
// request with a finer points-per-hour grid all return StatusOk. Whether
// each one hit or missed the percentile cache is not observed here.
func TestScenario_PercentileRequests_RepeatDisjointAndFinerGrid_AllReturnOk(t *testing.T) {
	model := vancomycinTwoCompModel()
	start := at("2018-09-01T08:00:00Z")
	treatment := twelveHourInfusionTreatment(start)

	window := func(fromHour, toHour time.Duration) (core.Instant, core.Instant) {
		return core.NewInstant(start.Time().Add(fromHour)), core.NewInstant(start.Time().Add(toHour))
	}

	a, b := window(0, 4*24*time.Hour)
	req1 := core.NewComputingRequest("s4-1", model, treatment, core.TraitPercentilesData{
		Start: a, End: b, PointsPerHour: 2, Ranks: []float64{5, 50, 95}, NumSamples: 50,
	})
	resp1 := core.Dispatch(req1)
	require.Equal(t, core.StatusOk, resp1.Status)

	req2 := core.NewComputingRequest("s4-2", model, treatment, core.TraitPercentilesData{
		Start: a, End: b, PointsPerHour: 2, Ranks: []float64{5, 50, 95}, NumSamples: 50,
	})
	resp2 := core.Dispatch(req2)
	require.Equal(t, core.StatusOk, resp2.Status)

	c, d := window(8*24*time.Hour, 11*24*time.Hour)
	req3 := core.NewComputingRequest("s4-3", model, treatment, core.TraitPercentilesData{
		Start: c, End: d, PointsPerHour: 2, Ranks: []float64{5, 50, 95}, NumSamples: 50,
	})
	resp3 := core.Dispatch(req3)
	require.Equal(t, core.StatusOk, resp3.Status)

	req4 := core.NewComputingRequest("s4-4", model, treatment, core.TraitPercentilesData{
		Start: a, End: b, PointsPerHour: 2.2, Ranks: []float64{5, 50, 95}, NumSamples: 50,
	})
	resp4 := core.Dispatch(req4)
	require.Equal(t, core.StatusOk, resp4.Status)
}

// S6: a sample taken before the first intake yields SampleBeforeTreatmentStart
// for both the Concentration and AtMeasures traits.
func TestScenario_SampleBeforeTreatmentStart_RejectedForConcentrationAndAtMeasures(t *testing.T) {
	model := vancomycinTwoCompModel()
	start := at("2018-09-01T08:00:00Z")
	treatment := twelveHourInfusionTreatment(start)
	treatment.Samples = []core.Sample{{
		At:       core.NewInstant(start.Time().Add(-1 * time.Hour)),
		AnalyteID: "vancomycin",
		Value:    10,
		Unit:     core.UnitMgPerLiter,
	}}

	concReq := core.NewComputingRequest("s6-conc", model, treatment, core.TraitConcentrationData{
		Start: start, End: core.NewInstant(start.Time().Add(24 * time.Hour)), PointsPerHour: 10,
	})
	concResp := core.Dispatch(concReq)
	assert.Equal(t, core.StatusSampleBeforeTreatmentStart, concResp.Status)

	atMeasuresReq := core.NewComputingRequest("s6-atmeasures", model, treatment, core.TraitAtMeasuresData{})
	atMeasuresResp := core.Dispatch(atMeasuresReq)
	assert.Equal(t, core.StatusSampleBeforeTreatmentStart, atMeasuresResp.Status)
}

// Unit neutrality (invariant 7): forcing µg/L only scales the output
// vector by the molar-mass factor; it does not change the resolved
// parameters driving the simulation.
func TestInvariant_UnitNeutrality_ForcedMicrogramOutputIsScaledMilligramOutput(t *testing.T) {
	model := vancomycinTwoCompModel()
	start := at("2018-09-01T08:00:00Z")
	end := at("2018-09-01T20:00:00Z")
	treatment := twelveHourInfusionTreatment(start)

	mgReq := core.NewComputingRequest("unit-mg", model, treatment, core.TraitConcentrationData{
		Start: start, End: end, PointsPerHour: 4,
		Options: core.ComputingOptions{ResultUnit: core.RespectDrugModelUnit},
	})
	mgResp := core.Dispatch(mgReq)
	require.Equal(t, core.StatusOk, mgResp.Status)

	ugReq := core.NewComputingRequest("unit-ug", model, treatment, core.TraitConcentrationData{
		Start: start, End: end, PointsPerHour: 4,
		Options: core.ComputingOptions{ResultUnit: core.ForceMicrogramPerLiter},
	})
	ugResp := core.Dispatch(ugReq)
	require.Equal(t, core.StatusOk, ugResp.Status)

	mgCycles := mgResp.Payload.(core.SinglePredictionPayload).Cycles
	ugCycles := ugResp.Payload.(core.SinglePredictionPayload).Cycles
	require.Equal(t, len(mgCycles), len(ugCycles))
	for i := range mgCycles {
		for k := range mgCycles[i].Concentrations {
			for j := range mgCycles[i].Concentrations[k] {
				assert.InDelta(t, mgCycles[i].Concentrations[k][j]*1000, ugCycles[i].Concentrations[k][j], 1e-6)
			}
		}
	}
}
