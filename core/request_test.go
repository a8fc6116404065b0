package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleTreatment() DrugTreatment {
	return DrugTreatment{
		History: DoseHistory{Ranges: []TimeRange{
			{Start: hourInstant(0), HasEnd: false, Dosage: lastingDose(DurationFromHours(12))},
		}},
	}
}

func TestDrugTreatment_ValidateSamples_AcceptsSamplesAfterFirstIntake(t *testing.T) {
	treatment := simpleTreatment()
	treatment.Samples = []Sample{{At: hourInstant(6), AnalyteID: "vancomycin", Value: 12}}
	assert.NoError(t, treatment.ValidateSamples())
}

func TestDrugTreatment_ValidateSamples_RejectsSampleBeforeFirstIntake(t *testing.T) {
	treatment := simpleTreatment()
	treatment.Samples = []Sample{{At: hourInstant(0).Add(-DurationFromHours(1)), AnalyteID: "vancomycin", Value: 12}}

	err := treatment.ValidateSamples()
	require.Error(t, err)
	var computingErr *ComputingError
	require.ErrorAs(t, err, &computingErr)
	assert.Equal(t, StatusSampleBeforeTreatmentStart, computingErr.Status)
}

func TestDrugTreatment_ValidateSamples_NoHistory_NeverRejects(t *testing.T) {
	treatment := DrugTreatment{Samples: []Sample{{At: hourInstant(0), Value: 1}}}
	assert.NoError(t, treatment.ValidateSamples())
}

func TestDrugTreatment_Clone_CopiesSlicesIndependently(t *testing.T) {
	original := simpleTreatment()
	clone := original.Clone()

	clone.History.Ranges[0].Start = hourInstant(99)
	assert.True(t, original.History.Ranges[0].Start.Equal(hourInstant(0)), "mutating the clone must not affect the original")
}

func TestNewComputingRequest_ClonesTreatment(t *testing.T) {
	treatment := simpleTreatment()
	req := NewComputingRequest("req-1", DrugModel{DrugID: "vancomycin"}, treatment)

	req.Treatment.History.Ranges[0].Start = hourInstant(99)
	assert.True(t, treatment.History.Ranges[0].Start.Equal(hourInstant(0)), "the request must hold its own copy")
}

func TestComputingRequest_OverloadEvaluator_FallsBackToDefault(t *testing.T) {
	req := NewComputingRequest("req-1", DrugModel{}, DrugTreatment{})
	assert.Same(t, DefaultOverloadEvaluator(), req.overloadEvaluator())

	custom := NewOverloadEvaluator(OverloadConfig{PredictionPointsLimit: 1})
	req.Overload = custom
	assert.Same(t, custom, req.overloadEvaluator())
}

func TestComputingRequest_Aborter_NeverNil(t *testing.T) {
	req := NewComputingRequest("req-1", DrugModel{}, DrugTreatment{})
	assert.NotNil(t, req.aborter())
	assert.False(t, req.aborter().Triggered())
}
