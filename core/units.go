package core

import (
	"fmt"
	"time"
)

// Instant is an absolute point on the continuous simulation timeline,
// represented as nanoseconds-resolution wall time. Comparisons between
// Instants are total.
type Instant struct {
	t time.Time
}

// NewInstant wraps a time.Time as an Instant.
func NewInstant(t time.Time) Instant { return Instant{t: t} }

// Before reports whether i is strictly earlier than other.
func (i Instant) Before(other Instant) bool { return i.t.Before(other.t) }

// After reports whether i is strictly later than other.
func (i Instant) After(other Instant) bool { return i.t.After(other.t) }

// Equal reports whether i and other denote the same point in time.
func (i Instant) Equal(other Instant) bool { return i.t.Equal(other.t) }

// Sub returns the signed Duration from other to i (i - other).
func (i Instant) Sub(other Instant) Duration { return Duration(i.t.Sub(other.t)) }

// Add returns the Instant obtained by shifting i by d.
func (i Instant) Add(d Duration) Instant { return Instant{t: i.t.Add(time.Duration(d))} }

// Time exposes the underlying time.Time value for formatting/interop.
func (i Instant) Time() time.Time { return i.t }

func (i Instant) String() string { return i.t.Format(time.RFC3339) }

// Duration is a signed span between two Instants, backed by time.Duration
// for sub-second resolution.
type Duration time.Duration

// Hours returns the duration expressed in (possibly fractional) hours.
func (d Duration) Hours() float64 { return time.Duration(d).Hours() }

// DurationFromHours builds a Duration from a (possibly fractional) hour count.
func DurationFromHours(h float64) Duration {
	return Duration(time.Duration(h * float64(time.Hour)))
}

func (d Duration) String() string { return time.Duration(d).String() }

// TimeOfDay is a Duration constrained to [0, 24h) from local midnight.
type TimeOfDay struct {
	offset Duration
}

// NewTimeOfDay builds a TimeOfDay from an offset since midnight. It
// returns an error for any value outside [0, 24h).
func NewTimeOfDay(offset Duration) (TimeOfDay, error) {
	const day = Duration(24 * time.Hour)
	if offset < 0 || offset >= day {
		return TimeOfDay{}, fmt.Errorf("time-of-day offset %s out of range [0, 24h)", offset)
	}
	return TimeOfDay{offset: offset}, nil
}

// Offset returns the duration since midnight.
func (t TimeOfDay) Offset() Duration { return t.offset }

// Dimension names a physical dimension a TypedUnit can carry (mass,
// mass-concentration, etc). Conversion between units of different
// dimensions is always an error.
type Dimension string

const (
	DimensionMass            Dimension = "mass"
	DimensionMassPerVolume   Dimension = "mass/volume"
	DimensionMolarPerVolume  Dimension = "mol/volume"
	DimensionVolume          Dimension = "volume"
	DimensionVolumePerTime   Dimension = "volume/time"
	DimensionTime            Dimension = "time"
	DimensionDimensionless   Dimension = "none"
)

// TypedUnit is a named unit of measure within a Dimension, convertible to
// any other unit of the same Dimension via a linear scale factor.
type TypedUnit struct {
	Name      string
	Dimension Dimension
	// ToBase is the multiplicative factor converting a value in this unit
	// into the Dimension's reference base unit.
	ToBase float64
}

// ConvertTo converts value (expressed in u) into the target unit. It
// returns an error if the two units' dimensions do not match.
func (u TypedUnit) ConvertTo(value float64, target TypedUnit) (float64, error) {
	if u.Dimension != target.Dimension {
		return 0, fmt.Errorf("cannot convert %q (%s) to %q (%s): dimension mismatch",
			u.Name, u.Dimension, target.Name, target.Dimension)
	}
	base := value * u.ToBase
	return base / target.ToBase, nil
}

// Common units used throughout drug models and test fixtures.
var (
	UnitMilligram    = TypedUnit{Name: "mg", Dimension: DimensionMass, ToBase: 1}
	UnitMicrogram    = TypedUnit{Name: "ug", Dimension: DimensionMass, ToBase: 0.001}
	UnitGram         = TypedUnit{Name: "g", Dimension: DimensionMass, ToBase: 1000}
	UnitMgPerLiter   = TypedUnit{Name: "mg/l", Dimension: DimensionMassPerVolume, ToBase: 1}
	UnitUgPerLiter   = TypedUnit{Name: "ug/l", Dimension: DimensionMassPerVolume, ToBase: 0.001}
	UnitLiter        = TypedUnit{Name: "l", Dimension: DimensionVolume, ToBase: 1}
	UnitLiterPerHour = TypedUnit{Name: "l/h", Dimension: DimensionVolumePerTime, ToBase: 1}
	UnitHour         = TypedUnit{Name: "h", Dimension: DimensionTime, ToBase: 1}
	UnitDimensionless = TypedUnit{Name: "", Dimension: DimensionDimensionless, ToBase: 1}
)

// ResultUnitOption selects how the engine expresses predicted
// concentrations, per §3's "pharmacokinetic options".
type ResultUnitOption int

const (
	// RespectDrugModelUnit leaves concentrations in the analyte's declared unit.
	RespectDrugModelUnit ResultUnitOption = iota
	// ForceMicrogramPerLiter post-converts every sample to µg/L, per §4.4;
	// the analyte's molar mass is used only when its unit is molar.
	ForceMicrogramPerLiter
)

// ConvertToForcedUnit converts a slice of concentrations expressed in
// fromUnit into µg/L, leaving the input parameters untouched (§8 invariant
// 7: unit neutrality). When fromUnit is a molar concentration, molarMassGPerMol
// (g/mol) converts moles to mass before the mass-per-volume conversion.
func ConvertToForcedUnit(values []float64, fromUnit TypedUnit, molarMassGPerMol float64) ([]float64, error) {
	out := make([]float64, len(values))
	if fromUnit.Dimension == DimensionMolarPerVolume {
		if molarMassGPerMol <= 0 {
			return nil, fmt.Errorf("molar mass must be positive, got %v", molarMassGPerMol)
		}
		for i, v := range values {
			// v is in fromUnit's base (mol/L equivalent) scaled by ToBase;
			// convert to mol/L, then to mg/L via molar mass, then to µg/L.
			molPerL := v * fromUnit.ToBase
			mgPerL := molPerL * molarMassGPerMol
			out[i] = mgPerL * 1000
		}
		return out, nil
	}
	for i, v := range values {
		base, err := fromUnit.ConvertTo(v, UnitUgPerLiter)
		if err != nil {
			return nil, fmt.Errorf("force µg/L conversion: %w", err)
		}
		out[i] = base
	}
	return out, nil
}
