package apperror

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories surfaced to callers.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindConflict:
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}

// Codes refine a Kind where callers need to branch on a specific condition.
const (
	CodeNoteRequired         = "NOTE_REQUIRED"
	CodeNegativeStock        = "NEGATIVE_STOCK"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeAlreadyFinalized     = "ALREADY_FINALIZED"
	CodeApprovedNotFinalized = "APPROVED_NOT_FINALIZED"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithCode sets the refinement code and returns the same error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidState(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

// As extracts an *Error from the chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromError returns err as an *Error, classifying anything unknown as internal.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Internal(err, "internal error")
}

func KindOf(err error) Kind {
	return FromError(err).Kind
}

func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
