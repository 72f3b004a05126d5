// Package utils provides small cross-cutting helpers shared by every
// decoder package: error wrapping, pooled buffers, and overflow-safe
// arithmetic.
package utils

import "fmt"

// Kind classifies an Error into one of the abstract error families a
// decoder can raise. The zero value, KindUnspecified, is used by call
// sites that have not yet been migrated to a specific kind.
type Kind int

const (
	KindUnspecified Kind = iota
	// KindFormatMismatch: magic not recognised, or wrong section for the
	// requested operation.
	KindFormatMismatch
	// KindTruncatedInput: the reader returned fewer bytes than required.
	KindTruncatedInput
	// KindInvariantViolation: sorted-order check failed, segment overlap,
	// record count mismatch, duplicate page reference, reserved bits set,
	// enum value out of range, and similar structural violations.
	KindInvariantViolation
	// KindCrossReferenceMissing: typedef target not found, dir-tree child
	// id unknown, field-name stream exhausted.
	KindCrossReferenceMissing
	// KindUnsupportedVersion: a B-tree, ID1, TIL, or root-info version
	// outside the implemented set, in strict mode.
	KindUnsupportedVersion
)

func (k Kind) String() string {
	switch k {
	case KindFormatMismatch:
		return "format mismatch"
	case KindTruncatedInput:
		return "truncated input"
	case KindInvariantViolation:
		return "invariant violation"
	case KindCrossReferenceMissing:
		return "cross-reference missing"
	case KindUnsupportedVersion:
		return "unsupported version"
	default:
		return "error"
	}
}

// Error is a structured decoder error: a Kind, human context identifying
// the record (section, netnode id, tag, sub-index, ...), and the
// underlying cause.
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Context)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WrapError creates a contextual error of unspecified kind. Returns nil
// when cause is nil, so call sites can use it unconditionally on a
// trailing error return.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: KindUnspecified, Context: context, Cause: cause}
}

// WrapKind creates a contextual error of the given kind.
func WrapKind(kind Kind, context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Context: context, Cause: cause}
}

// NewKind creates a contextual error of the given kind with no wrapped
// cause, for structural violations detected without an underlying error.
func NewKind(kind Kind, context string) error {
	return &Error{Kind: kind, Context: context}
}
