package core

// Sample is one observed blood concentration, used by the Bayesian
// estimator (C5 mode 3) and by the AtMeasures trait.
type Sample struct {
	At          Instant
	AnalyteID   string
	Value       float64
	Unit        TypedUnit
}

// DrugTreatment is the patient-specific input: dose history, observed
// covariates, and observed samples, per §3.
type DrugTreatment struct {
	History    DoseHistory
	Covariates []PatientCovariate
	Samples    []Sample
}

// firstIntakeStart returns the earliest TimeRange start in the treatment's
// dose history, used to detect a Sample taken before treatment start
// (§7, §8 S6).
func (t DrugTreatment) firstIntakeStart() (Instant, bool) {
	if len(t.History.Ranges) == 0 {
		return Instant{}, false
	}
	earliest := t.History.Ranges[0].Start
	for _, r := range t.History.Ranges[1:] {
		if r.Start.Before(earliest) {
			earliest = r.Start
		}
	}
	return earliest, true
}

// ValidateSamples returns ErrSampleBeforeTreatmentStart if any sample
// precedes the treatment's first intake, per §7: "regardless of mode, and
// the partial response is discarded."
func (t DrugTreatment) ValidateSamples() error {
	first, ok := t.firstIntakeStart()
	if !ok {
		return nil
	}
	for _, s := range t.Samples {
		if s.At.Before(first) {
			return &ComputingError{
				Status:  StatusSampleBeforeTreatmentStart,
				Message: "a sample was taken before the treatment's first intake",
			}
		}
	}
	return nil
}

// Clone deep-copies the treatment, matching §5's "Patient covariates and
// drug treatments are copied by the request constructor so the caller may
// release them after compute returns."
func (t DrugTreatment) Clone() DrugTreatment {
	out := DrugTreatment{
		History:    DoseHistory{Ranges: append([]TimeRange(nil), t.History.Ranges...)},
		Covariates: append([]PatientCovariate(nil), t.Covariates...),
		Samples:    append([]Sample(nil), t.Samples...),
	}
	return out
}

// ComputingRequest bundles a drug model, a drug treatment, and one or more
// ComputingTraits, per §3. An Aborter and an OverloadEvaluator override
// may optionally accompany the request.
type ComputingRequest struct {
	ID          string
	DrugModel   DrugModel
	Treatment   DrugTreatment
	Traits      []ComputingTrait
	Aborter     *Aborter
	Overload    *OverloadEvaluator
}

// NewComputingRequest builds a ComputingRequest, deep-copying treatment so
// the caller may mutate or release its original afterward (§5).
func NewComputingRequest(id string, model DrugModel, treatment DrugTreatment, traits ...ComputingTrait) *ComputingRequest {
	return &ComputingRequest{
		ID:        id,
		DrugModel: model,
		Treatment: treatment.Clone(),
		Traits:    traits,
	}
}

// overloadEvaluator returns the request's override, falling back to the
// process-wide default (§4.9).
func (r *ComputingRequest) overloadEvaluator() *OverloadEvaluator {
	if r.Overload != nil {
		return r.Overload
	}
	return DefaultOverloadEvaluator()
}

// aborter returns the request's Aborter, creating an always-false one if
// absent so callers never need a nil check.
func (r *ComputingRequest) aborter() *Aborter {
	if r.Aborter != nil {
		return r.Aborter
	}
	return NewAborter()
}
