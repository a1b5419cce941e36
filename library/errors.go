package library

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures returned by LibraryManager operations.
type ErrorCode string

const (
	// CodeValidation indicates missing or malformed input fields.
	CodeValidation ErrorCode = "VALIDATION"

	// CodeNotFound indicates a referenced id is absent.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeConflict indicates a state precondition was violated, such as
	// borrowing a book that is not available.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeAuth indicates the caller is unauthenticated or not permitted.
	CodeAuth ErrorCode = "AUTH"

	// CodeDuplicate indicates a uniqueness violation on username, email or
	// category name.
	CodeDuplicate ErrorCode = "DUPLICATE"
)

// Sentinels for errors.Is. They match any *Error with the same code.
var (
	ErrValidation = &Error{Code: CodeValidation}
	ErrNotFound   = &Error{Code: CodeNotFound}
	ErrConflict   = &Error{Code: CodeConflict}
	ErrAuth       = &Error{Code: CodeAuth}
	ErrDuplicate  = &Error{Code: CodeDuplicate}
)

// Error is the failure type of the library core. Every precondition
// violation is reported as an *Error; backend failures are wrapped plain
// errors instead.
type Error struct {
	Code    ErrorCode
	Op      string // operation name, e.g. "borrow"
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

func validationError(op, format string, args ...any) *Error {
	return newError(CodeValidation, op, format, args...)
}

func notFoundError(op, format string, args ...any) *Error {
	return newError(CodeNotFound, op, format, args...)
}

func conflictError(op, format string, args ...any) *Error {
	return newError(CodeConflict, op, format, args...)
}

func authError(op, format string, args ...any) *Error {
	return newError(CodeAuth, op, format, args...)
}

func duplicateError(op, format string, args ...any) *Error {
	return newError(CodeDuplicate, op, format, args...)
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there
// is none.
func CodeOf(err error) ErrorCode {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// IsValidation reports whether err carries CodeValidation.
func IsValidation(err error) bool { return CodeOf(err) == CodeValidation }

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsConflict reports whether err carries CodeConflict.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// IsAuth reports whether err carries CodeAuth.
func IsAuth(err error) bool { return CodeOf(err) == CodeAuth }

// IsDuplicate reports whether err carries CodeDuplicate.
func IsDuplicate(err error) bool { return CodeOf(err) == CodeDuplicate }
