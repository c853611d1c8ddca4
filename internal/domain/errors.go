package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes failures so callers can map them to responses.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "not_found"
	KindValidation    ErrorKind = "validation"
	KindAllocation    ErrorKind = "allocation"
	KindConflict      ErrorKind = "conflict"
	KindAuthorization ErrorKind = "authorization"
	KindInternal      ErrorKind = "internal"
)

// Stage is a step of a route mutation. Errors carry the stage they failed in.
type Stage string

const (
	StageValidating Stage = "validating"
	StageResolving  Stage = "resolving"
	StageAllocating Stage = "allocating"
	StagePersisting Stage = "persisting"
	StageReleasing  Stage = "releasing"
	StageNotifying  Stage = "notifying"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// Error is the error type returned by the orchestration layer and its stores.
type Error struct {
	Kind    ErrorKind
	Stage   Stage
	Message string
	Err     error
}

func (e *Error) Error() string {
	head := string(e.Kind)
	if e.Message != "" {
		head += ": " + e.Message
	}
	if e.Stage != "" {
		head = fmt.Sprintf("%s (stage=%s)", head, e.Stage)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", head, e.Err)
	}
	return head
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound reports a missing record of the given kind.
func NotFound(what, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", what, id)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

// Allocation wraps a relay capacity or satellite failure.
func Allocation(msg string, err error) *Error {
	return &Error{Kind: KindAllocation, Message: msg, Err: err}
}

// Internal wraps an unexpected store or transport failure.
func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// AtStage tags err with the stage it surfaced in. A *Error that already has
// a stage keeps it; any other error is wrapped as internal.
func AtStage(err error, stage Stage) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		if de.Stage != "" {
			return err
		}
		if direct, ok := err.(*Error); ok {
			tagged := *direct
			tagged.Stage = stage
			return &tagged
		}
		// Keep the outer context; the kind comes from the wrapped error.
		return &Error{Kind: de.Kind, Stage: stage, Err: err}
	}
	return &Error{Kind: KindInternal, Stage: stage, Message: "unexpected failure", Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// StageOf returns the stage err was tagged with, if any.
func StageOf(err error) Stage {
	var de *Error
	if errors.As(err, &de) {
		return de.Stage
	}
	return ""
}

func IsNotFound(err error) bool   { return err != nil && KindOf(err) == KindNotFound }
func IsConflict(err error) bool   { return err != nil && KindOf(err) == KindConflict }
func IsAllocation(err error) bool { return err != nil && KindOf(err) == KindAllocation }
func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }
