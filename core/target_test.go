package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func vancomycinTrough() Target {
	return Target{
		Type:       TargetResidual,
		Unit:       UnitMgPerLiter,
		Min:        10,
		Max:        15,
		Best:       12,
		Inefficacy: 5,
		Toxicity:   20,
	}
}

func TestTarget_Score_PeaksAtBestAndDegradesTowardMinMaxEdges(t *testing.T) {
	target := vancomycinTrough()
	assert.Equal(t, 1.0, target.Score(12))
	assert.Equal(t, 0.5, target.Score(10))
	assert.Equal(t, 0.5, target.Score(15))
	assert.Greater(t, target.Score(11), target.Score(10))
	assert.Greater(t, target.Score(13), target.Score(15))
}

func TestTarget_Score_BestUnset_FallsBackToFlatOneWithinMinMax(t *testing.T) {
	target := vancomycinTrough()
	target.Best = 0
	assert.Equal(t, 1.0, target.Score(10))
	assert.Equal(t, 1.0, target.Score(12))
	assert.Equal(t, 1.0, target.Score(15))
}

func TestTarget_Score_OutsideAlarmBounds_IsZero(t *testing.T) {
	target := vancomycinTrough()
	assert.Equal(t, 0.0, target.Score(4.9))
	assert.Equal(t, 0.0, target.Score(20.1))
}

func TestTarget_Score_RampsLinearlyBelowMin(t *testing.T) {
	target := vancomycinTrough()
	// Halfway between inefficacy (5) and min (10) should score 0.5.
	assert.InDelta(t, 0.5, target.Score(7.5), 1e-9)
}

func TestTarget_Score_RampsLinearlyAboveMax(t *testing.T) {
	target := vancomycinTrough()
	// Halfway between max (15) and toxicity (20) should score 0.5.
	assert.InDelta(t, 0.5, target.Score(17.5), 1e-9)
}

func TestTarget_Score_DegenerateAlarmBounds_DoesNotDivideByZero(t *testing.T) {
	target := Target{Min: 10, Max: 10, Inefficacy: 10, Toxicity: 10}
	assert.Equal(t, 1.0, target.Score(10))
}
