package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseLoad      Phase = "load"      // library resolution and symbol binding
	PhaseBootstrap Phase = "bootstrap" // isolate creation
	PhaseDispatch  Phase = "dispatch"  // worker queue and lifecycle
	PhaseDecode    Phase = "decode"    // result buffer decoding
	PhaseRuntime   Phase = "runtime"   // calls into the embedded runtime
)

// Kind categorizes the error
type Kind string

const (
	KindLibraryNotFound Kind = "library_not_found"
	KindMissingSymbol   Kind = "missing_symbol"
	KindBootstrapFailed Kind = "bootstrap_failed"
	KindInitTimeout     Kind = "init_timeout"
	KindTaskFailed      Kind = "task_failed"
	KindInvalidHandle   Kind = "invalid_handle"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindInvalidData     Kind = "invalid_data"
	KindNotSupported    Kind = "not_supported"
	KindShuttingDown    Kind = "shutting_down"
	KindNotInitialized  Kind = "not_initialized"
	KindRuntimeFailure  Kind = "runtime_failure"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
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

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
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

// Convenience constructors

// LoadFailure creates a library load error
func LoadFailure(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindLibraryNotFound,
		Detail: fmt.Sprintf("load library %q", path),
		Cause:  cause,
	}
}

// MissingSymbol creates an unresolved-entry-point error
func MissingSymbol(name string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindMissingSymbol,
		Detail: fmt.Sprintf("required entry point %q not found", name),
	}
}

// BootstrapFailure creates an isolate creation error
func BootstrapFailure(code int32) *Error {
	return &Error{
		Phase:  PhaseBootstrap,
		Kind:   KindBootstrapFailed,
		Detail: fmt.Sprintf("isolate creation returned %d", code),
		Value:  code,
	}
}

// InitTimeout creates an initialization handshake timeout error
func InitTimeout(detail string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindInitTimeout,
		Detail: detail,
	}
}

// TaskFailed wraps a failure captured from a dispatched task
func TaskFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindTaskFailed,
		Detail: "task failed on worker",
		Cause:  cause,
	}
}

// InvalidHandle creates an error for a zero, negative or stale handle
func InvalidHandle(what string, handle int64) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("invalid %s handle %d", what, handle),
		Value:  handle,
	}
}

// OutOfBounds creates a decode error for a read past the buffer end
func OutOfBounds(path []string, want, have int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindOutOfBounds,
		Detail: fmt.Sprintf("need %d bytes, %d remain", want, have),
		Path:   path,
	}
}

// InvalidData creates a decode error for malformed buffer contents
func InvalidData(detail string) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindInvalidData,
		Detail: detail,
	}
}

// NotSupported creates an error for an optional entry point that is
// absent from the loaded library
func NotSupported(name string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindNotSupported,
		Detail: fmt.Sprintf("entry point %q not available", name),
	}
}

// ShuttingDown creates an error for work submitted after shutdown began
func ShuttingDown() *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindShuttingDown,
		Detail: "engine is shutting down",
	}
}

// RuntimeFailure creates an error for an entry point that reported
// failure through its return value. detail carries the runtime's own
// error text when one is available.
func RuntimeFailure(op, detail string) *Error {
	e := &Error{
		Phase:  PhaseRuntime,
		Kind:   KindRuntimeFailure,
		Detail: op + " failed",
	}
	if detail != "" {
		e.Detail += ": " + detail
	}
	return e
}

// NotInitialized creates a not-initialized error
func NotInitialized(component string) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}
