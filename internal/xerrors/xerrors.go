package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind is the machine-readable classification of a failure. Kinds are
// attached near where the failure is detected and mapped to transport
// status codes only at the system boundary.
type Kind int

const (
	KindUnknown Kind = iota

	// KindInput: the caller supplied something missing or malformed.
	// User-correctable, no state was created.
	KindInput

	// KindValidation: a bundle failed the static safety checks and its
	// extracted directory has been removed.
	KindValidation

	// KindConflict: the operation would duplicate existing state
	// (source identity already imported, like already recorded).
	KindConflict

	// KindNotFound: no entity with the given id/slug.
	KindNotFound

	// KindUpstream: a remote fetch failed, timed out, or exceeded the
	// response size limit.
	KindUpstream

	// KindStorage: the persistence layer failed; fatal for the request.
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }
func (e *kindError) Kind() Kind    { return e.kind }

// WithKind tags err with a Kind. The innermost tag wins on lookup so a
// handler re-wrapping a storage error cannot accidentally relabel it.
func WithKind(err error, k Kind) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: k, err: err}
}

// KindOf walks the chain and returns the innermost Kind tag, or
// KindUnknown when the error carries none.
func KindOf(err error) Kind {
	k := KindUnknown
	for e := err; e != nil; e = errors.Unwrap(e) {
		if ke, ok := e.(interface{ Kind() Kind }); ok {
			k = ke.Kind()
		}
	}
	return k
}

// IsKind reports whether KindOf(err) == k.
func IsKind(err error, k Kind) bool { return KindOf(err) == k }

// E builds a tagged error in one call: E(KindInput, "title required").
func E(k Kind, msg string) error { return WithKind(withStackSkip(errors.New(msg), 2), k) }

// Ef is E with formatting.
func Ef(k Kind, format string, args ...any) error {
	return WithKind(withStackSkip(fmt.Errorf(format, args...), 2), k)
}

type withStack struct {
	err error
	pcs []uintptr
}

func (w *withStack) Error() string       { return w.err.Error() }
func (w *withStack) Unwrap() error       { return w.err }
func (w *withStack) StackPCs() []uintptr { return w.pcs }

func captureStack(skip int) []uintptr {
	const maxDepth = 64
	pcs := make([]uintptr, maxDepth)
	// 2 skips runtime.Callers + captureStack
	n := runtime.Callers(2+skip, pcs)
	return pcs[:n]
}

func withStackSkip(err error, skip int) error {
	if err == nil {
		return nil
	}
	return &withStack{err: err, pcs: captureStack(skip)}
}

// WithStack attaches the caller's stack to err.
func WithStack(err error) error { return withStackSkip(err, 2) }

// EnsureTrace attaches a stack only if the chain doesn't already carry one.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var hs interface{ StackPCs() []uintptr }
	if errors.As(err, &hs) && hs != nil && len(hs.StackPCs()) > 0 {
		return err
	}
	return withStackSkip(err, 2)
}

type wrap struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrap) Error() string { return w.msg + ": " + w.err.Error() }
func (w *wrap) Unwrap() error { return w.err }
func (w *wrap) PC() uintptr   { return w.pc }

func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	// 2 skips runtime.Callers + callerPC
	if n := runtime.Callers(2+skip, pcs[:]); n == 0 {
		return 0
	}
	return pcs[0]
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: msg, pc: callerPC(1)}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: fmt.Sprintf(format, args...), pc: callerPC(1)}
}

func New(msg string) error             { return withStackSkip(errors.New(msg), 2) }
func Newf(f string, args ...any) error { return withStackSkip(fmt.Errorf(f, args...), 2) }
