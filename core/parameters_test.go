package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func zero() float64 { return 0 }

func TestBSV_Sample_NoneReturnsValueUnchanged(t *testing.T) {
	b := BSV{Type: BSVNone, StdDev: 10}
	assert.Equal(t, 5.0, b.Sample(5, func() float64 { return 99 }))
}

func TestBSV_Sample_AdditiveAddsScaledNoise(t *testing.T) {
	b := BSV{Type: BSVAdditive, StdDev: 2}
	assert.Equal(t, 9.0, b.Sample(5, func() float64 { return 2 }))
}

func TestBSV_Sample_ProportionalScalesByNoise(t *testing.T) {
	b := BSV{Type: BSVProportional, StdDev: 0.1}
	assert.InDelta(t, 5.5, b.Sample(5, func() float64 { return 1 }), 1e-9)
}

func TestBSV_Sample_ExponentialAndLognormal_AreEquivalent(t *testing.T) {
	exp := BSV{Type: BSVExponential, StdDev: 0.3}
	log := BSV{Type: BSVLognormal, StdDev: 0.3}
	assert.Equal(t, exp.Sample(10, zero), log.Sample(10, zero))
	// z == 0 leaves the value unchanged regardless of StdDev.
	assert.Equal(t, 10.0, exp.Sample(10, zero))
}

func TestPKParameters_Get_ReportsAbsence(t *testing.T) {
	p := PKParameters{Values: map[string]float64{"CL": 3.5}}
	v, ok := p.Get("CL")
	assert.True(t, ok)
	assert.Equal(t, 3.5, v)

	_, ok = p.Get("V1")
	assert.False(t, ok)
}

func TestPKParameters_MustGet_PanicsOnMissingParameter(t *testing.T) {
	p := PKParameters{Values: map[string]float64{"CL": 3.5}}
	assert.Panics(t, func() { p.MustGet("V1") })
}

func TestPKParameters_Validate_ReturnsErrOnFirstViolation(t *testing.T) {
	defs := []ParameterDefinition{
		{Name: "CL", Valid: func(v float64) bool { return v > 0 }},
	}
	p := PKParameters{Values: map[string]float64{"CL": -1}}

	err := p.Validate(defs)
	assert.Error(t, err)
	var invalid *ErrInvalidParameters
	assert.ErrorAs(t, err, &invalid)
	assert.Equal(t, "CL", invalid.Parameter)
}

func TestPKParameters_Validate_SkipsParametersWithoutValidator(t *testing.T) {
	defs := []ParameterDefinition{{Name: "CL"}}
	p := PKParameters{Values: map[string]float64{"CL": -1}}
	assert.NoError(t, p.Validate(defs))
}

func TestPKParameters_Validate_IgnoresDefinitionsNotPresentInValues(t *testing.T) {
	defs := []ParameterDefinition{{Name: "V1", Valid: func(v float64) bool { return v > 0 }}}
	p := PKParameters{Values: map[string]float64{"CL": 3.5}}
	assert.NoError(t, p.Validate(defs))
}
