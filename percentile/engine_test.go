package percentile

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tucuxi-go/pkengine/core"
)

func TestSampleParameters_NoVariability_ReturnsBaseValueUnchanged(t *testing.T) {
	group := core.AnalyteGroup{Parameters: []core.ParameterDefinition{
		{Name: "CL", BSV: core.BSV{Type: core.BSVNone}},
	}}
	base := core.PKParameters{Values: map[string]float64{"CL": 3.505}}

	got, ok := sampleParameters(group, base, rand.New(rand.NewSource(1)))
	require.True(t, ok)
	assert.Equal(t, 3.505, got.Values["CL"])
}

func TestSampleParameters_MissingFromBase_FallsBackToStandardValue(t *testing.T) {
	group := core.AnalyteGroup{Parameters: []core.ParameterDefinition{
		{Name: "V", StandardValue: 31.05, BSV: core.BSV{Type: core.BSVNone}},
	}}

	got, ok := sampleParameters(group, core.PKParameters{Values: map[string]float64{}}, rand.New(rand.NewSource(1)))
	require.True(t, ok)
	assert.Equal(t, 31.05, got.Values["V"])
}

func TestSampleParameters_Proportional_PerturbsAroundBaseValue(t *testing.T) {
	group := core.AnalyteGroup{Parameters: []core.ParameterDefinition{
		{Name: "CL", BSV: core.BSV{Type: core.BSVProportional, StdDev: 0.3}},
	}}
	base := core.PKParameters{Values: map[string]float64{"CL": 3.505}}

	draw := rand.New(rand.NewSource(42))
	got, ok := sampleParameters(group, base, draw)
	require.True(t, ok)
	assert.NotEqual(t, 3.505, got.Values["CL"])
	assert.Greater(t, got.Values["CL"], 0.0)
}

func TestSampleParameters_AlwaysInvalid_DropsSampleAfterExhaustingRedraws(t *testing.T) {
	group := core.AnalyteGroup{Parameters: []core.ParameterDefinition{
		{Name: "CL", BSV: core.BSV{Type: core.BSVProportional, StdDev: 0.3}, Valid: func(float64) bool { return false }},
	}}
	base := core.PKParameters{Values: map[string]float64{"CL": 3.505}}

	_, ok := sampleParameters(group, base, rand.New(rand.NewSource(7)))
	assert.False(t, ok)
}

func TestSampleParameters_RedrawsUntilValid(t *testing.T) {
	group := core.AnalyteGroup{Parameters: []core.ParameterDefinition{
		{Name: "CL", BSV: core.BSV{Type: core.BSVAdditive, StdDev: 5}, Valid: func(v float64) bool { return v > 0 }},
	}}
	base := core.PKParameters{Values: map[string]float64{"CL": 3.505}}

	got, ok := sampleParameters(group, base, rand.New(rand.NewSource(3)))
	require.True(t, ok)
	assert.Greater(t, got.Values["CL"], 0.0)
}

func oneCompartmentCycle(start, end core.Instant, times []float64, values []float64) core.CycleData {
	return core.CycleData{
		Start:            start,
		End:              end,
		SampleTimesHours: times,
		Concentrations:   []core.CompartmentConcentrations{values},
	}
}

func TestCollectAt_GathersOneValuePerSample_SkippingShorterSamples(t *testing.T) {
	samples := [][]core.CycleData{
		{oneCompartmentCycle(core.Instant{}, core.Instant{}, []float64{0, 1}, []float64{10, 8})},
		{oneCompartmentCycle(core.Instant{}, core.Instant{}, []float64{0, 1}, []float64{12, 9})},
		nil, // a sample that errored before producing any cycles
	}

	got := collectAt(samples, 0, 0, 1)
	assert.ElementsMatch(t, []float64{8, 9}, got)
}

func TestReduceToRanks_InterpolatesOrderStatisticsPerRank(t *testing.T) {
	start := core.NewInstant(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	end := start.Add(core.DurationFromHours(12))
	times := []float64{0}

	samples := [][]core.CycleData{
		{oneCompartmentCycle(start, end, times, []float64{10})},
		{oneCompartmentCycle(start, end, times, []float64{20})},
		{oneCompartmentCycle(start, end, times, []float64{30})},
	}

	cycles, err := reduceToRanks(samples, []float64{50})
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	require.Len(t, cycles[0], 1)
	assert.InDelta(t, 20, cycles[0][0].Concentrations[0][0], 1e-9)
}

func TestReduceToRanks_AllSamplesNil_Errors(t *testing.T) {
	_, err := reduceToRanks([][]core.CycleData{nil, nil}, []float64{50})
	assert.Error(t, err)
}
