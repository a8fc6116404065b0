package core

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// IntakeEvent is one administered dose, flattened by ExtractIntakes from a
// DoseHistory, per §3.
type IntakeEvent struct {
	Start              Instant
	Interval           Duration
	Dose               float64
	Unit               TypedUnit
	FormulationAndRoute FormulationAndRoute
	InfusionDuration   Duration
	// NbPoints is the number of sample points for this cycle: points-per-hour
	// times the interval, rounded up, per §4.1.
	NbPoints int
	// CarryResiduals is true for at most one event whose start precedes the
	// window but whose span covers the window start, per §4.1.
	CarryResiduals bool

	// dosageIndex is the stable tiebreaker for events sharing a Start,
	// assigned during extraction and not part of the public contract.
	dosageIndex int
}

// Window is the half-open (conceptually closed-closed per the spec's
// notation) query interval intakes are extracted against.
type Window struct {
	Start Instant
	End   Instant
}

// ExtractionDefaults supplies the absorption-model defaults ExtractIntakes
// falls back on, and the pph used to compute NbPoints.
type ExtractionDefaults struct {
	PointsPerHour float64
	// HalfLifeHours, when DosageSteadyState demands a synthetic warm-up
	// prelude, bounds how many synthetic pre-window cycles are generated:
	// the extractor prepends cycles covering SteadyStateHalfLives half-lives.
	HalfLifeHours float64
}

// SteadyStateHalfLives is the implementation-chosen N >= 20 from §4.1.
const SteadyStateHalfLives = 20

// ExtractIntakes flattens history within window into a time-ordered,
// finite sequence of IntakeEvents (C3), per §4.1.
func ExtractIntakes(history DoseHistory, window Window, defaults ExtractionDefaults) ([]IntakeEvent, error) {
	if err := history.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dose history: %w", err)
	}
	if defaults.PointsPerHour <= 0 {
		return nil, fmt.Errorf("points-per-hour must be positive, got %v", defaults.PointsPerHour)
	}

	var events []IntakeEvent
	dosageIdx := 0
	for _, r := range history.Ranges {
		rangeEnd := r.End
		rangeHasEnd := r.HasEnd
		if !rangeHasEnd {
			rangeEnd = window.End
			rangeHasEnd = true
		}
		if rangeEnd.Before(window.Start) {
			continue // entirely before the window
		}
		if r.Start.After(window.End) {
			continue // entirely after the window
		}
		flattened, nextIdx, err := flattenDosage(r.Dosage, r.Start, rangeEnd, window, defaults, dosageIdx)
		if err != nil {
			return nil, fmt.Errorf("flattening dosage in range starting %s: %w", r.Start, err)
		}
		dosageIdx = nextIdx
		events = append(events, flattened...)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].dosageIndex < events[j].dosageIndex
		}
		return events[i].Start.Before(events[j].Start)
	})

	events = clipAndMarkCarryResiduals(events, window)
	return events, nil
}

// flattenDosage recursively expands a Dosage within [rangeStart, rangeEnd),
// returning events intersecting the window plus the next free dosage index
// for stable tie-breaking.
func flattenDosage(d Dosage, rangeStart, rangeEnd Instant, window Window, defaults ExtractionDefaults, nextIdx int) ([]IntakeEvent, int, error) {
	switch v := d.(type) {
	case LastingDose:
		return expandPeriodic(v.Value, v.Unit, v.FormulationAndRoute, v.InfusionDuration, v.Period,
			rangeStart, rangeEnd, window, defaults, nextIdx)

	case DailyDose:
		return expandDailyOrWeekly(v.Value, v.Unit, v.FormulationAndRoute, v.InfusionDuration,
			rangeStart, rangeEnd, window, defaults, nextIdx, 24, v.At.Offset(), nil)

	case WeeklyDose:
		day := v.Day
		return expandDailyOrWeekly(v.Value, v.Unit, v.FormulationAndRoute, v.InfusionDuration,
			rangeStart, rangeEnd, window, defaults, nextIdx, 24*7, v.At.Offset(), &day)

	case DosageRepeat:
		var out []IntakeEvent
		cursor := rangeStart
		idx := nextIdx
		for i := 0; i < v.N && cursor.Before(rangeEnd); i++ {
			inner, newIdx, err := flattenDosage(v.Inner, cursor, rangeEnd, window, defaults, idx)
			if err != nil {
				return nil, idx, err
			}
			idx = newIdx
			out = append(out, inner...)
			cursor = advanceCursorPastOneCycle(v.Inner, cursor, inner)
			if cursor.Equal(rangeStart) { // no progress possible; avoid infinite loop
				break
			}
			rangeStart = cursor
		}
		return out, idx, nil

	case DosageLoop:
		var out []IntakeEvent
		cursor := rangeStart
		idx := nextIdx
		for cursor.Before(rangeEnd) {
			inner, newIdx, err := flattenDosage(v.Inner, cursor, rangeEnd, window, defaults, idx)
			if err != nil {
				return nil, idx, err
			}
			if len(inner) == 0 {
				break
			}
			idx = newIdx
			out = append(out, inner...)
			next := advanceCursorPastOneCycle(v.Inner, cursor, inner)
			if !next.After(cursor) {
				break
			}
			cursor = next
		}
		return out, idx, nil

	case DosageSteadyState:
		inner, idx, err := flattenDosage(v.Inner, rangeStart, rangeEnd, window, defaults, nextIdx)
		if err != nil {
			return nil, idx, err
		}
		prelude := synthesizeSteadyStatePrelude(v.Inner, v.LastDoseInstant, defaults)
		return append(prelude, inner...), idx, nil

	case DosageSequence:
		var out []IntakeEvent
		cursor := rangeStart
		idx := nextIdx
		for _, item := range v.Items {
			if !cursor.Before(rangeEnd) {
				break
			}
			inner, newIdx, err := flattenDosage(item, cursor, rangeEnd, window, defaults, idx)
			if err != nil {
				return nil, idx, err
			}
			idx = newIdx
			out = append(out, inner...)
			cursor = advanceCursorPastOneCycle(item, cursor, inner)
		}
		return out, idx, nil

	case ParallelDosageSequence:
		var out []IntakeEvent
		idx := nextIdx
		for i, item := range v.Items {
			start := rangeStart.Add(v.Offsets[i])
			inner, newIdx, err := flattenDosage(item, start, rangeEnd, window, defaults, idx)
			if err != nil {
				return nil, idx, err
			}
			idx = newIdx
			out = append(out, inner...)
		}
		return out, idx, nil

	default:
		return nil, nextIdx, fmt.Errorf("unrecognized dosage variant %T", d)
	}
}

// advanceCursorPastOneCycle returns the instant just after the last
// generated event's cycle for simple periodic dosages, used to drive
// Repeat/Loop iteration. For compound dosages it falls back to the end of
// the last produced event.
func advanceCursorPastOneCycle(d Dosage, cursor Instant, produced []IntakeEvent) Instant {
	switch v := d.(type) {
	case LastingDose:
		return cursor.Add(v.Period)
	case DailyDose:
		return cursor.Add(DurationFromHours(24))
	case WeeklyDose:
		return cursor.Add(DurationFromHours(24 * 7))
	default:
		if len(produced) == 0 {
			return cursor
		}
		last := produced[len(produced)-1]
		return last.Start.Add(last.Interval)
	}
}

func expandPeriodic(value float64, unit TypedUnit, fr FormulationAndRoute, infusion, period Duration,
	rangeStart, rangeEnd Instant, window Window, defaults ExtractionDefaults, nextIdx int) ([]IntakeEvent, int, error) {
	if period <= 0 {
		return nil, nextIdx, fmt.Errorf("dosage period must be positive")
	}
	var out []IntakeEvent
	idx := nextIdx
	cursor := rangeStart
	for cursor.Before(rangeEnd) {
		// §4.1: clip trailing events whose start >= w_end.
		if cursor.Before(window.End) {
			ev, err := buildIntakeEvent(cursor, period, value, unit, fr, infusion, defaults, idx)
			if err != nil {
				return nil, idx, err
			}
			out = append(out, ev)
		}
		idx++
		cursor = cursor.Add(period)
	}
	return out, idx, nil
}

func expandDailyOrWeekly(value float64, unit TypedUnit, fr FormulationAndRoute, infusion Duration,
	rangeStart, rangeEnd Instant, window Window, defaults ExtractionDefaults, nextIdx int,
	periodHours float64, at Duration, day *DayOfWeek) ([]IntakeEvent, int, error) {
	period := DurationFromHours(periodHours)
	// Align the first occurrence to the requested time-of-day (and day-of-week).
	first := alignToTimeOfDay(rangeStart, at, day)
	return expandPeriodic(value, unit, fr, infusion, period, first, rangeEnd, window, defaults, nextIdx)
}

func alignToTimeOfDay(from Instant, at Duration, day *DayOfWeek) Instant {
	t := from.Time()
	year, month, dayOfMonth := t.Date()
	base := NewInstant(time.Date(year, month, dayOfMonth, 0, 0, 0, 0, t.Location()))
	candidate := base.Add(Duration(at))
	if candidate.Before(from) {
		candidate = candidate.Add(DurationFromHours(24))
	}
	if day != nil {
		for weekdayOf(candidate) != *day {
			candidate = candidate.Add(DurationFromHours(24))
		}
	}
	return candidate
}

// weekdayOf maps time.Weekday (Sunday-first) to this package's
// Monday-first DayOfWeek.
func weekdayOf(i Instant) DayOfWeek {
	switch i.Time().Weekday() {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

func buildIntakeEvent(start Instant, interval Duration, dose float64, unit TypedUnit, fr FormulationAndRoute,
	infusion Duration, defaults ExtractionDefaults, dosageIdx int) (IntakeEvent, error) {
	if interval <= 0 {
		return IntakeEvent{}, fmt.Errorf("intake interval must be positive")
	}
	nbPoints := int(math.Ceil(defaults.PointsPerHour * interval.Hours()))
	if nbPoints < 1 {
		nbPoints = 1
	}
	effectiveInfusion := infusion
	if effectiveInfusion > interval {
		// §4.4: infusion time > interval is treated as continuous infusion
		// (no off-phase); the calculator handles this, the extractor just
		// passes the raw value through unmodified.
		effectiveInfusion = infusion
	}
	return IntakeEvent{
		Start:              start,
		Interval:           interval,
		Dose:               dose,
		Unit:               unit,
		FormulationAndRoute: fr,
		InfusionDuration:   effectiveInfusion,
		NbPoints:           nbPoints,
		dosageIndex:        dosageIdx,
	}, nil
}

// synthesizeSteadyStatePrelude prepends enough synthetic pre-window cycles
// of inner (a simple periodic Dosage) to reach numerical steady state
// before lastDoseInstant, per §4.1's N >= 20 half-lives rule.
func synthesizeSteadyStatePrelude(inner Dosage, lastDoseInstant Instant, defaults ExtractionDefaults) []IntakeEvent {
	period := periodOf(inner)
	if period <= 0 || defaults.HalfLifeHours <= 0 {
		return nil
	}
	warmup := DurationFromHours(defaults.HalfLifeHours * SteadyStateHalfLives)
	warmupCycles := int(math.Ceil(warmup.Hours() / period.Hours()))
	var out []IntakeEvent
	start := lastDoseInstant.Add(-period * Duration(warmupCycles))
	idx := -warmupCycles
	for i := 0; i < warmupCycles; i++ {
		cursor := start.Add(period * Duration(i))
		switch v := inner.(type) {
		case LastingDose:
			ev, err := buildIntakeEvent(cursor, v.Period, v.Value, v.Unit, v.FormulationAndRoute, v.InfusionDuration, defaults, idx+i)
			if err == nil {
				out = append(out, ev)
			}
		}
	}
	return out
}

func periodOf(d Dosage) Duration {
	switch v := d.(type) {
	case LastingDose:
		return v.Period
	case DailyDose:
		return DurationFromHours(24)
	case WeeklyDose:
		return DurationFromHours(24 * 7)
	default:
		return 0
	}
}

// clipAndMarkCarryResiduals drops events whose start is at or after the
// window end, and marks at most one pre-window event (the first one whose
// start is before window.Start and whose span covers it) as carrying
// residuals forward into the window, per §4.1 and the §9 open question
// (conservative inclusion policy).
func clipAndMarkCarryResiduals(events []IntakeEvent, window Window) []IntakeEvent {
	var out []IntakeEvent
	carryAssigned := false
	for _, ev := range events {
		if !ev.Start.Before(window.End) {
			continue // clip trailing events whose start >= w_end
		}
		if ev.Start.Before(window.Start) {
			end := ev.Start.Add(ev.Interval)
			if !carryAssigned && end.After(window.Start) {
				ev.CarryResiduals = true
				carryAssigned = true
				out = append(out, ev)
			}
			// Other fully pre-window events are dropped: they exist only to
			// seed residual carry, and only the one spanning window.Start does.
			continue
		}
		out = append(out, ev)
	}
	return out
}
