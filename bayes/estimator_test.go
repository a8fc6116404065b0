package bayes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tucuxi-go/pkengine/core"
)

func TestEstimator_Estimate_NoFreeParameters_ReturnsAprioriUnchanged(t *testing.T) {
	e := NewEstimator()
	apriori := core.PKParameters{Values: map[string]float64{"CL": 3.505}}
	defs := []core.ParameterDefinition{{Name: "CL", BSV: core.BSV{Type: core.BSVNone}}}

	got, err := e.Estimate(apriori, defs, core.AnalyteGroup{}, []core.Sample{{Value: 10}}, nil)
	require.NoError(t, err)
	assert.Equal(t, apriori, got)
}

func TestEstimator_Estimate_NoSamples_ReturnsAprioriUnchanged(t *testing.T) {
	e := NewEstimator()
	apriori := core.PKParameters{Values: map[string]float64{"CL": 3.505}}
	defs := []core.ParameterDefinition{{Name: "CL", BSV: core.BSV{Type: core.BSVProportional, StdDev: 0.3}}}

	got, err := e.Estimate(apriori, defs, core.AnalyteGroup{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, apriori, got)
}

// TestEstimator_Estimate_RecoversTrueClearanceFromASingleSample checks the
// MAP fit against a trivial one-parameter model: predicted = dose / CL.
// The prior is wide (StdDev 5), so its term moves the objective's single
// minimum only about 0.001 away from the clearance implied by the observed
// sample. This exercises the full BFGS fit loop without depending on the
// concentration engine.
func TestEstimator_Estimate_RecoversTrueClearanceFromASingleSample(t *testing.T) {
	e := NewEstimator()
	apriori := core.PKParameters{Values: map[string]float64{"CL": 2.0}}
	defs := []core.ParameterDefinition{{Name: "CL", BSV: core.BSV{Type: core.BSVProportional, StdDev: 5}}}
	group := core.AnalyteGroup{ErrorModel: core.ErrorModel{Kind: core.ErrorModelProportional, Sigma0: 0.1}}

	const dose = 1000.0
	trueCL := 4.0
	samples := []core.Sample{{Value: dose / trueCL}}

	resolve := func(params core.PKParameters, samples []core.Sample) ([]float64, error) {
		cl := params.Values["CL"]
		out := make([]float64, len(samples))
		for i := range samples {
			out[i] = dose / cl
		}
		return out, nil
	}

	got, err := e.Estimate(apriori, defs, group, samples, resolve)
	require.NoError(t, err)

	cl, ok := got.Get("CL")
	require.True(t, ok)
	assert.InDelta(t, trueCL, cl, 0.05)
}

func TestEstimator_Estimate_FixesParametersWithoutVariability(t *testing.T) {
	e := NewEstimator()
	apriori := core.PKParameters{Values: map[string]float64{"CL": 3.5, "V": 30}}
	defs := []core.ParameterDefinition{
		{Name: "CL", BSV: core.BSV{Type: core.BSVProportional, StdDev: 0.3}},
		{Name: "V", BSV: core.BSV{Type: core.BSVNone}},
	}
	group := core.AnalyteGroup{ErrorModel: core.ErrorModel{Kind: core.ErrorModelProportional, Sigma0: 0.1}}
	samples := []core.Sample{{Value: 1000.0 / 3.5}}

	resolve := func(params core.PKParameters, samples []core.Sample) ([]float64, error) {
		cl := params.Values["CL"]
		out := make([]float64, len(samples))
		for i := range samples {
			out[i] = 1000.0 / cl
		}
		return out, nil
	}

	got, err := e.Estimate(apriori, defs, group, samples, resolve)
	require.NoError(t, err)

	v, ok := got.Get("V")
	require.True(t, ok)
	assert.Equal(t, 30.0, v, "a parameter with no BSV must stay fixed at its apriori value")
}
