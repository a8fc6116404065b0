package core

import "fmt"

// Status is the closed exit-status taxonomy returned by Dispatch, per §6.
type Status int

const (
	StatusOk Status = iota
	StatusTooBig
	StatusBadRequest
	StatusMissingCovariate
	StatusInvalidParameters
	StatusNoSample
	StatusNoAnalyteMatch
	StatusSampleBeforeTreatmentStart
	StatusBayesianFitFailed
	StatusNumericalError
	StatusAborted
	StatusInternalError
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "Ok"
	case StatusTooBig:
		return "TooBig"
	case StatusBadRequest:
		return "BadRequest"
	case StatusMissingCovariate:
		return "MissingCovariate"
	case StatusInvalidParameters:
		return "InvalidParameters"
	case StatusNoSample:
		return "NoSample"
	case StatusNoAnalyteMatch:
		return "NoAnalyteMatch"
	case StatusSampleBeforeTreatmentStart:
		return "SampleBeforeTreatmentStart"
	case StatusBayesianFitFailed:
		return "BayesianFitFailed"
	case StatusNumericalError:
		return "NumericalError"
	case StatusAborted:
		return "Aborted"
	case StatusInternalError:
		return "InternalError"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// ComputingError is the error taxonomy returned as status to the caller,
// per §7: "all taxa above propagate unchanged to the caller with a
// human-readable error-string accessor; the response payload is left
// empty."
type ComputingError struct {
	Status  Status
	Message string
	// Cause optionally wraps a lower-level error (e.g. a JSON parse
	// failure) for %w unwrapping.
	Cause error
}

func (e *ComputingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

func (e *ComputingError) Unwrap() error { return e.Cause }

// NewComputingError builds a ComputingError, formatting Message like
// fmt.Errorf.
func NewComputingError(status Status, format string, args ...any) *ComputingError {
	return &ComputingError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// InternalError is the fatal-abort taxon of §7: an internal invariant
// violation (e.g. a calculator returning the wrong number of residuals).
// It is recovered only at the Dispatch call boundary, never inside a
// cache's locked section, so it can never corrupt the cache.
type InternalError struct {
	Diagnostic string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Diagnostic)
}
