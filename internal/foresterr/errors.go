// Package foresterr defines the typed error kinds surfaced by every public
// Forester operation (spec §7). Callers switch on Kind() instead of matching
// error strings.
package foresterr

import "fmt"

// Kind identifies the category of failure a Forester operation reports.
type Kind string

const (
	NotARepo           Kind = "not_a_repo"
	AlreadyExists       Kind = "already_exists"
	NoChanges           Kind = "no_changes"
	UnknownRef          Kind = "unknown_ref"
	UncommittedChanges  Kind = "uncommitted_changes"
	LockedFiles         Kind = "locked_files"
	HookRejected        Kind = "hook_rejected"
	Timeout             Kind = "timeout"
	CorruptObject       Kind = "corrupt_object"
	IOError             Kind = "io_error"
)

// Error is the concrete type returned by Forester operations that fail.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around a causing error.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	fe, ok := err.(*Error)
	return ok && fe.Kind == kind
}

// KindOf extracts the Kind of err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	if fe, ok := err.(*Error); ok {
		return fe.Kind
	}
	return ""
}
