package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSimulationKey_IsDeterministicForTheSameFingerprint(t *testing.T) {
	a := NewSimulationKey("drug=vancomycin;model=m1;ranks=5,50,95")
	b := NewSimulationKey("drug=vancomycin;model=m1;ranks=5,50,95")
	assert.Equal(t, a, b)
}

func TestNewSimulationKey_DiffersForDifferentFingerprints(t *testing.T) {
	a := NewSimulationKey("fingerprint-a")
	b := NewSimulationKey("fingerprint-b")
	assert.NotEqual(t, a, b)
}

func TestPartitionedRNG_ForSubsystem_IsDeterministicAcrossInstances(t *testing.T) {
	key := NewSimulationKey("seed-1")
	first := NewPartitionedRNG(key).ForSubsystem(SubsystemSample(3)).Float64()
	second := NewPartitionedRNG(key).ForSubsystem(SubsystemSample(3)).Float64()
	assert.Equal(t, first, second)
}

func TestPartitionedRNG_ForSubsystem_CachesTheSameInstancePerName(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey("seed-1"))
	a := rng.ForSubsystem(SubsystemBSV)
	b := rng.ForSubsystem(SubsystemBSV)
	assert.Same(t, a, b)
}

func TestPartitionedRNG_ForSubsystem_IsolatesDifferentSubsystems(t *testing.T) {
	rng := NewPartitionedRNG(NewSimulationKey("seed-1"))
	bsv := rng.ForSubsystem(SubsystemBSV).Float64()
	residual := rng.ForSubsystem(SubsystemResidualError).Float64()
	assert.NotEqual(t, bsv, residual)
}

func TestSubsystemSample_NamesDistinctStreamsPerSampleIndex(t *testing.T) {
	assert.NotEqual(t, SubsystemSample(0), SubsystemSample(1))
}

func TestPartitionedRNG_Key_ReturnsTheKeyUsedToConstructIt(t *testing.T) {
	key := NewSimulationKey("seed-2")
	rng := NewPartitionedRNG(key)
	assert.Equal(t, key, rng.Key())
}
