// Package merr provides the engine's typed error vocabulary. Every
// recoverable failure the engine returns is a *Error of one of the Kinds
// below; internal invariant violations use Panic instead, since those
// are treated as fatal rather than recoverable.
package merr

import (
	"fmt"
	"runtime"
)

// Kind enumerates the engine-visible error kinds.
type Kind string

const (
	InvalidExport        Kind = "INVALID_EXPORT"
	Duplicate            Kind = "DUPLICATE"
	NotFound             Kind = "NOT_FOUND"
	NotADependency       Kind = "NOT_A_DEPENDENCY"
	NotPermitted         Kind = "NOT_PERMITTED"
	CyclicDependency     Kind = "CYCLIC_DEPENDENCY"
	LoadingInProcess     Kind = "LOADING_IN_PROCESS"
	InvalidParameterType Kind = "INVALID_PARAMETER_TYPE"
	OutOfMemory          Kind = "OUT_OF_MEMORY"
)

// Error is the concrete type returned for every recoverable failure: a
// category, a message, and the call site that raised it.
type Error struct {
	Kind    Kind
	Message string
	Caller  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s (at %s)", e.Kind, e.Message, e.Caller)
}

// New constructs an *Error, capturing the immediate caller for diagnostics.
func New(kind Kind, format string, args ...interface{}) *Error {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"

	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Caller:  caller,
	}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// Fatal marks an internal invariant violation: lock-order breakage, a
// double free of a namespace row, a cycle appearing in the global graph
// after a successful commit. Unlike Error, a Fatal is never meant to be
// handled — it is raised via Panic and propagates to terminate the
// process.
type Fatal struct {
	Message string
}

func (f *Fatal) Error() string { return "modlink: fatal invariant violation: " + f.Message }

// Panic raises a Fatal. Reserved for conditions that are source-level
// bugs rather than recoverable runtime failures, e.g. a `dependency`
// modifier naming an instance that collides with a different live
// instance of the same name.
func Panic(format string, args ...interface{}) {
	panic(&Fatal{Message: fmt.Sprintf(format, args...)})
}
