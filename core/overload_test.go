package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverloadEvaluator_CheckConcentration_AllowsWithinLimit(t *testing.T) {
	e := NewOverloadEvaluator(OverloadConfig{PredictionPointsLimit: 100})
	assert.NoError(t, e.CheckConcentration([]IntakeEvent{{NbPoints: 50}, {NbPoints: 49}}))
}

func TestOverloadEvaluator_CheckConcentration_RejectsOverLimit(t *testing.T) {
	e := NewOverloadEvaluator(OverloadConfig{PredictionPointsLimit: 100})
	err := e.CheckConcentration([]IntakeEvent{{NbPoints: 60}, {NbPoints: 60}})
	assert.Error(t, err)

	var computingErr *ComputingError
	assert.ErrorAs(t, err, &computingErr)
	assert.Equal(t, StatusTooBig, computingErr.Status)
}

func TestOverloadEvaluator_CheckPercentiles_RejectsOverLimit(t *testing.T) {
	e := NewOverloadEvaluator(OverloadConfig{PercentilePointsLimit: 10})
	assert.Error(t, e.CheckPercentiles([]IntakeEvent{{NbPoints: 11}}))
	assert.NoError(t, e.CheckPercentiles([]IntakeEvent{{NbPoints: 10}}))
}

func TestOverloadEvaluator_CheckDosagePossibilities_RejectsOverLimit(t *testing.T) {
	e := NewOverloadEvaluator(OverloadConfig{DosagePossibilitiesLimit: 5})
	assert.Error(t, e.CheckDosagePossibilities(6))
	assert.NoError(t, e.CheckDosagePossibilities(5))
}

func TestDefaultOverloadEvaluator_IsASingletonWithDefaultConfig(t *testing.T) {
	a := DefaultOverloadEvaluator()
	b := DefaultOverloadEvaluator()
	assert.Same(t, a, b)
	assert.Equal(t, DefaultOverloadConfig(), a.Config)
}
