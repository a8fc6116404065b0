package adjustment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tucuxi-go/pkengine/core"
)

func historyWithLastingDose(value float64, period, infusion core.Duration) core.DoseHistory {
	return core.DoseHistory{Ranges: []core.TimeRange{
		{Dosage: core.LastingDose{Value: value, Period: period, InfusionDuration: infusion}},
	}}
}

func TestRegimenShape_ExtractsDoseIntervalAndInfusionFromTheFinalRange(t *testing.T) {
	h := historyWithLastingDose(1000, core.DurationFromHours(12), core.DurationFromHours(1))
	dose, interval, infusion, ok := regimenShape(h)
	assert.True(t, ok)
	assert.Equal(t, 1000.0, dose)
	assert.Equal(t, core.DurationFromHours(12), interval)
	assert.Equal(t, core.DurationFromHours(1), infusion)
}

func TestRegimenShape_EmptyHistory_IsNotOk(t *testing.T) {
	_, _, _, ok := regimenShape(core.DoseHistory{})
	assert.False(t, ok)
}

func TestRegimenShape_NonLastingDoseFinalRange_IsNotOk(t *testing.T) {
	h := core.DoseHistory{Ranges: []core.TimeRange{{Dosage: core.DosageLoop{}}}}
	_, _, _, ok := regimenShape(h)
	assert.False(t, ok)
}

func TestLessLexicographic_SmallerDose_IsLess(t *testing.T) {
	small := historyWithLastingDose(500, core.DurationFromHours(12), 0)
	large := historyWithLastingDose(1000, core.DurationFromHours(12), 0)
	assert.True(t, lessLexicographic(small, large))
	assert.False(t, lessLexicographic(large, small))
}

func TestLessLexicographic_EqualDose_FallsBackToInterval(t *testing.T) {
	short := historyWithLastingDose(1000, core.DurationFromHours(8), 0)
	long := historyWithLastingDose(1000, core.DurationFromHours(24), 0)
	assert.True(t, lessLexicographic(short, long))
}

func TestLessLexicographic_UnshapeableHistory_IsNeverLess(t *testing.T) {
	assert.False(t, lessLexicographic(core.DoseHistory{}, historyWithLastingDose(1000, core.DurationFromHours(12), 0)))
}

func scoredCandidate(score float64, dose float64, interval core.Duration) core.AdjustmentCandidate {
	return core.AdjustmentCandidate{GlobalScore: score, RegimenHistory: historyWithLastingDose(dose, interval, 0)}
}

func TestShapeOutput_BestDosage_KeepsOnlyTheTopCandidate(t *testing.T) {
	scored := []core.AdjustmentCandidate{
		scoredCandidate(0.9, 1000, core.DurationFromHours(12)),
		scoredCandidate(0.5, 500, core.DurationFromHours(24)),
	}
	payload := shapeOutput(core.BestDosage, 0.3, scored)
	assert.Equal(t, 0.3, payload.CurrentRegimenScore)
	assert.Len(t, payload.Candidates, 1)
	assert.Equal(t, 0.9, payload.Candidates[0].GlobalScore)
}

func TestShapeOutput_BestDosage_NoCandidates_ReturnsOnlyCurrentScore(t *testing.T) {
	payload := shapeOutput(core.BestDosage, 0.3, nil)
	assert.Empty(t, payload.Candidates)
	assert.Equal(t, 0.3, payload.CurrentRegimenScore)
}

func TestShapeOutput_AllDosages_DropsZeroScoredCandidates(t *testing.T) {
	scored := []core.AdjustmentCandidate{
		scoredCandidate(0.9, 1000, core.DurationFromHours(12)),
		scoredCandidate(0, 500, core.DurationFromHours(24)),
	}
	payload := shapeOutput(core.AllDosages, 0, scored)
	assert.Len(t, payload.Candidates, 1)
}

func TestShapeOutput_BestDosagePerInterval_KeepsOneWinnerPerDistinctInterval(t *testing.T) {
	scored := []core.AdjustmentCandidate{
		scoredCandidate(0.9, 1000, core.DurationFromHours(12)), // best at 12h
		scoredCandidate(0.7, 750, core.DurationFromHours(12)),  // runner-up at 12h, dropped
		scoredCandidate(0.6, 500, core.DurationFromHours(24)),  // best at 24h
	}
	payload := shapeOutput(core.BestDosagePerInterval, 0, scored)
	assert.Len(t, payload.Candidates, 2)
	assert.Equal(t, 0.9, payload.Candidates[0].GlobalScore)
	assert.Equal(t, 0.6, payload.Candidates[1].GlobalScore)
}
