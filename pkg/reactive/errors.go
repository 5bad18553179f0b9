package reactive

import (
	"errors"
	"fmt"
)

// ErrUseAfterDispose is returned when a handle refers to a cell or
// computation whose scope (or the node itself) has been disposed.
var ErrUseAfterDispose = errors.New("reactive: use after dispose")

// ErrCyclicDependency is returned when a computation reads a memo that is
// still being evaluated, or when effects keep writing to their own
// dependencies for longer than the configured number of flush rounds.
var ErrCyclicDependency = errors.New("reactive: cyclic dependency")

// ErrWriteInComputation is returned when a memo computation writes to a
// cell. Memos must be pure; writes belong in effects or event handlers.
var ErrWriteInComputation = errors.New("reactive: write during memo computation")

// ErrDuplicateKey is returned by KeyedList.Reconcile when two items share a key.
var ErrDuplicateKey = errors.New("reactive: duplicate list key")

// Diagnostic codes. They line up with the CLI's error registry.
const (
	CodeUnknown            = "E100"
	CodeUseAfterDispose    = "E101"
	CodeCyclicDependency   = "E102"
	CodeWriteInComputation = "E103"
	CodeDuplicateKey       = "E104"
)

// Error describes a failed engine operation.
type Error struct {
	// Op is the operation that failed ("read", "write", "flush", "reconcile").
	Op string

	// Code is the diagnostic code for Err.
	Code string

	// Node is the creation sequence number of the node involved, or 0.
	Node uint64

	// Label is the node label set with WithLabel, if any.
	Label string

	// Detail is an optional extra explanation.
	Detail string

	// Err is the underlying sentinel.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	subject := ""
	switch {
	case e.Label != "":
		subject = fmt.Sprintf(" %q", e.Label)
	case e.Node != 0:
		subject = fmt.Sprintf(" #%d", e.Node)
	}
	msg := fmt.Sprintf("%s%s: %v", e.Op, subject, e.Err)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Unwrap returns the underlying sentinel for errors.Is support.
func (e *Error) Unwrap() error {
	return e.Err
}

// codeFor maps a sentinel to its diagnostic code.
func codeFor(err error) string {
	switch {
	case errors.Is(err, ErrUseAfterDispose):
		return CodeUseAfterDispose
	case errors.Is(err, ErrCyclicDependency):
		return CodeCyclicDependency
	case errors.Is(err, ErrWriteInComputation):
		return CodeWriteInComputation
	case errors.Is(err, ErrDuplicateKey):
		return CodeDuplicateKey
	default:
		return CodeUnknown
	}
}

func newError(op string, n *node, err error) *Error {
	e := &Error{Op: op, Code: codeFor(err), Err: err}
	if n != nil {
		e.Node = n.seq
		e.Label = n.label
	}
	return e
}

// CodeOf returns the diagnostic code carried by err, or "" when err is not
// an engine error.
func CodeOf(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
