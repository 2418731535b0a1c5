package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ValidationError rejects a batch before any row is processed.
type ValidationError struct {
	Missing []string // required columns absent from every row
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return "missing required column(s): " + strings.Join(e.Missing, ", ")
	}
	return "invalid import: " + e.Reason
}

// UnresolvedIdentityError reports student ids that have no profile.
type UnresolvedIdentityError struct {
	SessionKey string
	StudentIDs []string
}

func (e *UnresolvedIdentityError) Error() string {
	return fmt.Sprintf("unresolved student id(s) for session %s: %s; create the student accounts first",
		e.SessionKey, strings.Join(e.StudentIDs, ", "))
}

// Step names a reconciliation step.
type Step string

const (
	StepSubject     Step = "subject"
	StepRoom        Step = "room"
	StepSession     Step = "session"
	StepIdentities  Step = "identities"
	StepResolve     Step = "resolve"
	StepEnrollments Step = "enrollments"
	StepGenerate    Step = "generate"
)

// StepError wraps a store or generator failure with the step that raised it.
type StepError struct {
	Step       Step
	SessionKey string
	Err        error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed for session %s: %v", e.Step, e.SessionKey, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// AbortReason classifies why an import stopped.
type AbortReason string

const (
	ReasonValidation         AbortReason = "validation"
	ReasonUnresolvedIdentity AbortReason = "unresolved_identity"
	ReasonStore              AbortReason = "store"
	ReasonSeatGeneration     AbortReason = "seat_generation"
	ReasonCancelled          AbortReason = "cancelled"
	ReasonBusy               AbortReason = "busy"
)

// ImportAbortedError is the single failure shape of an import. Result holds
// everything accumulated before the failure; groups reconciled earlier stay
// persisted.
type ImportAbortedError struct {
	Reason      AbortReason
	Cause       error
	LastSession string // key of the last fully reconciled group, "" if none
	Result      *ImportResult
}

func (e *ImportAbortedError) Error() string {
	msg := fmt.Sprintf("import aborted (%s): %v", e.Reason, e.Cause)
	if e.LastSession != "" {
		msg += "; last completed session " + e.LastSession
	}
	return msg
}

func (e *ImportAbortedError) Unwrap() error { return e.Cause }

// ErrNotFound is returned when a looked-up entity does not exist.
var ErrNotFound = errors.New("record not found")

// ErrSeatGeneratorUnavailable is returned when seat generation is requested
// without a configured generator.
var ErrSeatGeneratorUnavailable = errors.New("seat generator not configured")

func abortReason(err error) AbortReason {
	var (
		ve   *ValidationError
		ue   *UnresolvedIdentityError
		step *StepError
	)
	switch {
	case errors.As(err, &ve):
		return ReasonValidation
	case errors.As(err, &ue):
		return ReasonUnresolvedIdentity
	case errors.As(err, &step) && step.Step == StepGenerate:
		return ReasonSeatGeneration
	case errors.Is(err, ErrImportBusy):
		return ReasonBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	}
	return ReasonStore
}
