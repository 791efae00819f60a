package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseValidate Phase = "validate" // input validation, before any dispatch
	PhaseEncode   Phase = "encode"   // Go to engine memory
	PhaseDecode   Phase = "decode"   // engine memory to Go
	PhaseCall     Phase = "call"     // native call completion
)

// Kind categorizes the error
type Kind string

const (
	KindSizeMismatch   Kind = "size_mismatch"
	KindInvalidData    Kind = "invalid_data"
	KindNullResult     Kind = "null_result"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindHandleReleased Kind = "handle_released"
	KindNativeFailure  Kind = "native_failure"
	KindOverflow       Kind = "overflow"
	KindAllocation     Kind = "allocation"
)

// Error is the structured error type used throughout the layer
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
	Code   int32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Kind == KindNativeFailure {
		fmt.Fprintf(&b, " (code %d)", e.Code)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Code sets the native result code
func (b *Builder) Code(code int32) *Builder {
	b.err.Code = code
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// SizeMismatch creates a fixed-size buffer validation error. It fires before
// any native call is made.
func SizeMismatch(path []string, want, got int) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindSizeMismatch,
		Path:   path,
		Detail: fmt.Sprintf("expected exactly %d bytes, got %d", want, got),
	}
}

// InvalidInput creates a validation error for malformed input
func InvalidInput(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// HandleReleased creates a validation error for use of a freed handle
func HandleReleased(what string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindHandleReleased,
		Detail: fmt.Sprintf("%s handle already released", what),
	}
}

// Native creates the failed outcome of a dispatched call whose completion
// reported a non-zero result code
func Native(code int32, desc string) *Error {
	return &Error{
		Phase:  PhaseCall,
		Kind:   KindNativeFailure,
		Code:   code,
		Detail: desc,
	}
}

// NullResult creates a decoding error for a null pointer where the engine
// promised a non-empty result
func NullResult(path []string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindNullResult,
		Path:   path,
		Detail: "null pointer with non-zero length",
	}
}

// OutOfBounds creates a decoding error for an engine output range that does
// not fit the declared layout
func OutOfBounds(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: detail,
	}
}

// InvalidOutput creates a decoding error for engine output that violates an
// assumed invariant
func InvalidOutput(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// AllocationFailed creates an encoding error for a failed engine-side alloc
func AllocationFailed(size, align uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with phase and kind context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// IsValidation reports whether err is a validation failure (raised before
// any native call)
func IsValidation(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Phase == PhaseValidate
}

// IsNative reports whether err is a failed native completion
func IsNative(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindNativeFailure
}

// IsDecoding reports whether err is a boundary-contract violation in engine
// output
func IsDecoding(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Phase == PhaseDecode
}

// NativeCode returns the engine result code carried by err, or 0 if err is
// not a native failure
func NativeCode(err error) int32 {
	if e, ok := err.(*Error); ok && e.Kind == KindNativeFailure {
		return e.Code
	}
	return 0
}
