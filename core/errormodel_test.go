package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorModel_NegLogLikelihood_None_IsAlwaysZero(t *testing.T) {
	m := ErrorModel{Kind: ErrorModelNone}
	v, err := m.NegLogLikelihood(100, 50)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestErrorModel_NegLogLikelihood_Additive_SquaresScaledResidual(t *testing.T) {
	m := ErrorModel{Kind: ErrorModelAdditive, Sigma0: 2}
	v, err := m.NegLogLikelihood(12, 10)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9) // ((12-10)/2)^2 = 1
}

func TestErrorModel_NegLogLikelihood_Additive_RejectsNonPositiveSigma0(t *testing.T) {
	m := ErrorModel{Kind: ErrorModelAdditive, Sigma0: 0}
	_, err := m.NegLogLikelihood(12, 10)
	assert.Error(t, err)
}

func TestErrorModel_NegLogLikelihood_Proportional_ScalesBySigmaTimesPrediction(t *testing.T) {
	m := ErrorModel{Kind: ErrorModelProportional, Sigma0: 0.1}
	v, err := m.NegLogLikelihood(11, 10)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-9) // ((11-10)/(0.1*10))^2 = 1
}

func TestErrorModel_NegLogLikelihood_Proportional_RejectsZeroPrediction(t *testing.T) {
	m := ErrorModel{Kind: ErrorModelProportional, Sigma0: 0.1}
	_, err := m.NegLogLikelihood(11, 0)
	assert.Error(t, err)
}

func TestErrorModel_NegLogLikelihood_Exponential_UsesLogResidual(t *testing.T) {
	m := ErrorModel{Kind: ErrorModelExponential, Sigma0: 1}
	v, err := m.NegLogLikelihood(10, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 1e-9)
}

func TestErrorModel_NegLogLikelihood_Exponential_RejectsNonPositiveObservedOrPredicted(t *testing.T) {
	m := ErrorModel{Kind: ErrorModelExponential, Sigma0: 1}
	_, err := m.NegLogLikelihood(0, 10)
	assert.Error(t, err)
	_, err = m.NegLogLikelihood(10, 0)
	assert.Error(t, err)
}

func TestErrorModel_NegLogLikelihood_Mixed_CombinesAdditiveAndProportionalVariance(t *testing.T) {
	m := ErrorModel{Kind: ErrorModelMixed, Sigma0: 1, Sigma1: 0}
	v, err := m.NegLogLikelihood(12, 10)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, v, 1e-9) // sd=1, d=(12-10)/1=2, d^2=4
}

func TestErrorModel_NegLogLikelihood_UnrecognizedKind_Errors(t *testing.T) {
	m := ErrorModel{Kind: ErrorModelKind("bogus")}
	_, err := m.NegLogLikelihood(1, 1)
	assert.Error(t, err)
}
