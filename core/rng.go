package core

import (
	"hash/fnv"
	"math/rand"
	"strconv"
)

// SimulationKey uniquely identifies a reproducible percentile computation.
// Two computations with the same SimulationKey and identical drug
// model/treatment/trait MUST produce bit-for-bit identical percentiles,
// per §4.6's determinism requirement and §8 invariant 9.
//
// Adapted from the teacher's SimulationKey/PartitionedRNG (sim/rng.go);
// here the key is derived from the request ID rather than a CLI
// --seed flag, per §9's "Numerical determinism" redesign note.
type SimulationKey int64

// NewSimulationKey derives a SimulationKey by hashing the given string.
// Dispatch passes the request ID, so requests with the same ID draw the
// same samples.
func NewSimulationKey(fingerprint string) SimulationKey {
	return SimulationKey(int64(fnv1a64(fingerprint)))
}

// === Subsystem Constants ===

const (
	// SubsystemBSV is the RNG subsystem for between-subject-variability sampling.
	SubsystemBSV = "bsv"
	// SubsystemResidualError is the RNG subsystem for simulated observation noise.
	SubsystemResidualError = "residual-error"
)

// SubsystemSample returns the subsystem name for Monte-Carlo sample N,
// giving each sample its own isolated stream so samples remain
// reproducible regardless of how many worker goroutines race to draw them.
func SubsystemSample(n int) string {
	return "sample_" + strconv.Itoa(n)
}

// PartitionedRNG provides deterministic, isolated RNG instances per
// subsystem, directly adapted from the teacher's PartitionedRNG.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe to call ForSubsystem with a new name
// concurrently; the percentile engine pre-creates one RNG per sample
// subsystem before fanning out workers (see percentile.Engine.Run),
// after which each worker only reads its own already-cached *rand.Rand.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named
// subsystem. The same subsystem name always returns the same *rand.Rand
// instance (cached). Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	derivedSeed := int64(p.key) ^ int64(fnv1a64(name))
	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey { return p.key }

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
