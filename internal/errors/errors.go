// Package errors implements the compiler's error taxonomy (spec §7).
//
// Grounded on sentra's internal/errors/errors.go: a single tagged error
// struct with a typed kind, a builder-style Error() renderer, and small
// constructor functions per kind. The call-stack concept of the original
// does not apply to a single-pass compiler and is dropped; in its place an
// Error carries the pass name, a message and a free-form Detail string. It
// holds no reference to the offending instruction, array or value.
package errors

import (
	"fmt"
	"strings"
)

// Kind is one of the four fatal error categories from spec.md §7.
type Kind string

const (
	// InvariantViolation is raised by a validator between passes when the
	// IR breaks one of the invariants in spec.md §3.2.
	InvariantViolation Kind = "InvariantViolation"
	// ResourceExhausted covers const-file overflow, spill-budget overflow,
	// and binary size exceeding a generation's instruction-count cap.
	ResourceExhausted Kind = "ResourceExhausted"
	// UnsupportedFeature is raised when a legal HIR construct cannot be
	// encoded on the target generation (e.g. indirect sampler offset).
	UnsupportedFeature Kind = "UnsupportedFeature"
	// InternalBug covers unreachable opcodes, RA spill cycles, and
	// unmatched push/pop exec — always carries a stable Code.
	InternalBug Kind = "InternalBug"
)

// Error is the single error type returned by every fallible pass.
type Error struct {
	Kind    Kind
	Pass    string // name of the pass that detected the problem
	Message string
	Code    string // stable code, required for InternalBug
	Detail  string // free-form extra context (instruction dump, etc.)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s", e.Kind)
	if e.Pass != "" {
		fmt.Fprintf(&sb, " in pass %q", e.Pass)
	}
	if e.Code != "" {
		fmt.Fprintf(&sb, " [%s]", e.Code)
	}
	fmt.Fprintf(&sb, ": %s", e.Message)
	if e.Detail != "" {
		fmt.Fprintf(&sb, "\n  %s", e.Detail)
	}
	return sb.String()
}

// WithDetail attaches free-form extra context and returns the receiver.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// NewInvariantViolation builds an InvariantViolation error for the given
// pass, naming the specific invariant that was broken in message.
func NewInvariantViolation(pass, message string) *Error {
	return &Error{Kind: InvariantViolation, Pass: pass, Message: message}
}

// NewResourceExhausted builds a ResourceExhausted error.
func NewResourceExhausted(pass, message string) *Error {
	return &Error{Kind: ResourceExhausted, Pass: pass, Message: message}
}

// NewUnsupportedFeature builds an UnsupportedFeature error.
func NewUnsupportedFeature(pass, message string) *Error {
	return &Error{Kind: UnsupportedFeature, Pass: pass, Message: message}
}

// NewInternalBug builds an InternalBug error; code should be a short,
// grep-able stable identifier (e.g. "unreachable-opcode", "ra-spill-cycle").
func NewInternalBug(pass, code, message string) *Error {
	return &Error{Kind: InternalBug, Pass: pass, Code: code, Message: message}
}

// Is reports whether err is an *Error of the given kind, so callers can
// branch on category the way the driver boundary (§7) is expected to.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}
