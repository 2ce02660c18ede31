package errors

import "errors"

// Kind classifies a blocked operation so the caller can branch on the
// machine-checkable class while rendering the human-readable reason verbatim.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindInvariantViolation  Kind = "invariant_violation"
	KindPreconditionNotMet  Kind = "precondition_not_met"
	KindConcurrencyConflict Kind = "concurrency_conflict"
	KindNotFound            Kind = "not_found"
)

// Failure is the structured error every engine operation returns on a
// blocked mutation or bad input. Failures are rejected before any write;
// they never describe a partially applied change.
type Failure struct {
	Kind   Kind
	Reason string
}

func (f *Failure) Error() string { return f.Reason }

// Is matches any failure of the same kind, so sentinels below work with
// errors.Is regardless of the concrete reason text.
func (f *Failure) Is(target error) bool {
	var other *Failure
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == f.Kind && (other.Reason == "" || other.Reason == f.Reason)
}

func Validation(reason string) *Failure {
	return &Failure{Kind: KindValidation, Reason: reason}
}

func Invariant(reason string) *Failure {
	return &Failure{Kind: KindInvariantViolation, Reason: reason}
}

func Precondition(reason string) *Failure {
	return &Failure{Kind: KindPreconditionNotMet, Reason: reason}
}

func Conflict(reason string) *Failure {
	return &Failure{Kind: KindConcurrencyConflict, Reason: reason}
}

func NotFound(reason string) *Failure {
	return &Failure{Kind: KindNotFound, Reason: reason}
}

// KindOf extracts the failure kind, or empty when err is not a Failure.
func KindOf(err error) Kind {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind
	}
	return ""
}

// Kind sentinels for errors.Is checks that only care about the class.
var (
	ErrValidation          = &Failure{Kind: KindValidation}
	ErrInvariantViolation  = &Failure{Kind: KindInvariantViolation}
	ErrPreconditionNotMet  = &Failure{Kind: KindPreconditionNotMet}
	ErrConcurrencyConflict = &Failure{Kind: KindConcurrencyConflict}
	ErrNotFound            = &Failure{Kind: KindNotFound}
)

// Common lookup failures shared by adapters and use cases.
var (
	ErrProjectNotFound    = NotFound("project not found")
	ErrAssignmentNotFound = NotFound("judge assignment not found")
	ErrJudgeNotFound      = NotFound("judge not found")
)
