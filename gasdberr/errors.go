package gasdberr

import (
	"errors"
	"fmt"
)

// Kind identifies a behavioural error category from spec.md §7. It is a
// closed enum, not an open sentinel set: every error the core returns to a
// caller carries exactly one Kind.
type Kind string

const (
	InvalidArgument   Kind = "InvalidArgument"
	InvalidQuery      Kind = "InvalidQuery"
	InvalidUpdate     Kind = "InvalidUpdate"
	DocumentNotFound  Kind = "DocumentNotFound"
	DuplicateKey      Kind = "DuplicateKey"
	ConflictErrorKind Kind = "ConflictError"
	LockTimeout       Kind = "LockTimeout"
	FileIO            Kind = "FileIO"
	InvalidFileFormat Kind = "InvalidFileFormat"
	MasterIndexError  Kind = "MasterIndexError"
	ConfigurationErr  Kind = "ConfigurationError"
	InvalidPath       Kind = "InvalidPath"
	QuotaExceeded     Kind = "QuotaExceeded"
	PermissionDenied  Kind = "PermissionDenied"
	FileNotFound      Kind = "FileNotFound"
)

// Error is the single error type returned by every GASDB component. It
// generalizes the teacher pack's package-level sentinel-error idiom
// (internal/util/errors.go's `var Err... = errors.New(...)`) into a typed,
// wrapped error carrying a closed Kind so callers can switch on behaviour
// rather than string-match messages.
type Error struct {
	Kind Kind
	Op   string // component/operation that raised it, e.g. "query.Parse"
	Msg  string
	Err  error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is supports errors.Is(err, &Error{Kind: K}) style checks against Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError constructs a typed Error.
func NewError(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err is (or wraps) an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
