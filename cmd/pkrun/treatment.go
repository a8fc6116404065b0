package pkrun

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tucuxi-go/pkengine/core"
)

func parseInstant(s string) (core.Instant, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return core.Instant{}, fmt.Errorf("parsing instant %q: %w", s, err)
	}
	return core.NewInstant(t), nil
}

// timeRangeFile describes one dosing period: a single LastingDose
// repeated every periodHours, optionally marked as the steady-state
// regimen. Richer Dosage trees (DailyDose, DosageSequence, and so on)
// aren't expressible in this file format; they're the uncommon case and
// callers needing them should build a core.DrugTreatment directly in Go.
type timeRangeFile struct {
	Start               string                  `json:"start"`
	End                 string                  `json:"end,omitempty"`
	HasEnd              bool                    `json:"hasEnd"`
	DoseValue           float64                 `json:"doseValue"`
	DoseUnit            unitFile                `json:"doseUnit"`
	FormulationAndRoute formulationAndRouteFile `json:"formulationAndRoute"`
	InfusionDurationHours float64               `json:"infusionDurationHours"`
	PeriodHours         float64                 `json:"periodHours"`
	SteadyState         bool                    `json:"steadyState"`
}

func (r timeRangeFile) toCore() (core.TimeRange, error) {
	start, err := parseInstant(r.Start)
	if err != nil {
		return core.TimeRange{}, err
	}
	var end core.Instant
	if r.HasEnd {
		end, err = parseInstant(r.End)
		if err != nil {
			return core.TimeRange{}, err
		}
	}

	var dosage core.Dosage = core.LastingDose{
		Value:               r.DoseValue,
		Unit:                r.DoseUnit.toCore(),
		FormulationAndRoute: r.FormulationAndRoute.toCore(),
		InfusionDuration:    core.DurationFromHours(r.InfusionDurationHours),
		Period:              core.DurationFromHours(r.PeriodHours),
	}
	if r.SteadyState {
		dosage = core.DosageSteadyState{Inner: dosage, LastDoseInstant: start}
	}

	return core.TimeRange{Start: start, End: end, HasEnd: r.HasEnd, Dosage: dosage}, nil
}

type patientCovariateFile struct {
	ID       string   `json:"id"`
	Value    float64  `json:"value"`
	DataType string   `json:"dataType"`
	Unit     unitFile `json:"unit"`
	At       string   `json:"at"`
}

func (c patientCovariateFile) toCore() (core.PatientCovariate, error) {
	at, err := parseInstant(c.At)
	if err != nil {
		return core.PatientCovariate{}, err
	}
	dataType := core.CovariateNumeric
	if c.DataType == "categorical" {
		dataType = core.CovariateCategorical
	}
	return core.PatientCovariate{ID: c.ID, Value: c.Value, DataType: dataType, Unit: c.Unit.toCore(), Instant: at}, nil
}

type sampleFile struct {
	At        string   `json:"at"`
	AnalyteID string   `json:"analyteId"`
	Value     float64  `json:"value"`
	Unit      unitFile `json:"unit"`
}

func (s sampleFile) toCore() (core.Sample, error) {
	at, err := parseInstant(s.At)
	if err != nil {
		return core.Sample{}, err
	}
	return core.Sample{At: at, AnalyteID: s.AnalyteID, Value: s.Value, Unit: s.Unit.toCore()}, nil
}

type drugTreatmentFile struct {
	Ranges     []timeRangeFile        `json:"ranges"`
	Covariates []patientCovariateFile `json:"covariates"`
	Samples    []sampleFile           `json:"samples"`
}

// loadDrugTreatment reads and converts a JSON treatment file into a
// core.DrugTreatment.
func loadDrugTreatment(path string) (core.DrugTreatment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.DrugTreatment{}, fmt.Errorf("reading treatment %s: %w", path, err)
	}
	var file drugTreatmentFile
	if err := json.Unmarshal(data, &file); err != nil {
		return core.DrugTreatment{}, fmt.Errorf("parsing treatment %s: %w", path, err)
	}

	ranges := make([]core.TimeRange, len(file.Ranges))
	for i, r := range file.Ranges {
		cr, err := r.toCore()
		if err != nil {
			return core.DrugTreatment{}, fmt.Errorf("treatment %s: range %d: %w", path, i, err)
		}
		ranges[i] = cr
	}
	covariates := make([]core.PatientCovariate, len(file.Covariates))
	for i, c := range file.Covariates {
		cc, err := c.toCore()
		if err != nil {
			return core.DrugTreatment{}, fmt.Errorf("treatment %s: covariate %d: %w", path, i, err)
		}
		covariates[i] = cc
	}
	samples := make([]core.Sample, len(file.Samples))
	for i, s := range file.Samples {
		cs, err := s.toCore()
		if err != nil {
			return core.DrugTreatment{}, fmt.Errorf("treatment %s: sample %d: %w", path, i, err)
		}
		samples[i] = cs
	}

	treatment := core.DrugTreatment{
		History:    core.DoseHistory{Ranges: ranges},
		Covariates: covariates,
		Samples:    samples,
	}
	if err := treatment.History.Validate(); err != nil {
		return core.DrugTreatment{}, fmt.Errorf("treatment %s: %w", path, err)
	}
	return treatment, nil
}
