// Package errs defines the semantic error kinds used across the loader
// pipelines and the context-chain helpers that attach them to a
// go-faster/errors wrap chain. Kinds are data, not distinct Go types:
// every error returned by a loader carries exactly one Kind, discoverable
// via KindOf, plus a chain of path/offset annotations added as the error
// propagates up through the walker/decoder that produced it.
package errs

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind enumerates the semantic error categories a load can fail with.
type Kind int

const (
	// Unknown is the zero value; KindOf returns it for errors that were
	// never wrapped through this package.
	Unknown Kind = iota
	// Io covers missing or unreadable source files.
	Io
	// Truncated marks a length-prefixed chunk that runs past the buffer end.
	Truncated
	// BadMagic marks a wrong structural magic number or padding field.
	BadMagic
	// Encoding marks invalid UTF-8 or UTF-16LE byte sequences.
	Encoding
	// UnknownKey marks a JSON object key the schema does not recognise.
	UnknownKey
	// UnknownVariant marks an unrecognised message type, section type,
	// action, content tuple, or call string.
	UnknownVariant
	// ConsistencyError marks a structural invariant violation: a broken
	// linked list, a chat member without a user, a count mismatch, etc.
	ConsistencyError
	// MyselfChoiceAborted marks a negative index from the MyselfChooser,
	// or a chooser that failed without making a choice.
	MyselfChoiceAborted
	// MyselfChoiceOutOfRange marks an out-of-bounds index from the
	// MyselfChooser.
	MyselfChoiceOutOfRange
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case Truncated:
		return "truncated"
	case BadMagic:
		return "bad_magic"
	case Encoding:
		return "encoding"
	case UnknownKey:
		return "unknown_key"
	case UnknownVariant:
		return "unknown_variant"
	case ConsistencyError:
		return "consistency_error"
	case MyselfChoiceAborted:
		return "myself_choice_aborted"
	case MyselfChoiceOutOfRange:
		return "myself_choice_out_of_range"
	default:
		return "unknown"
	}
}

// kindErr pairs a Kind with the wrapped error it annotates. It is never
// exported directly; callers interact with it through New/Wrap/KindOf/Is.
type kindErr struct {
	kind Kind
	err  error
}

func (e *kindErr) Error() string { return e.err.Error() }
func (e *kindErr) Unwrap() error { return e.err }

// New builds a fresh error of the given kind with a formatted message.
func New(kind Kind, format string, a ...any) error {
	return &kindErr{kind: kind, err: errors.New(fmt.Sprintf(format, a...))}
}

// Wrap attaches kind to err and prepends a context message, the same way
// the loader's record/JSON-path context chain accumulates one segment per
// wrap call as an error rises out of a nested parser.
func Wrap(kind Kind, err error, context string) error {
	if err == nil {
		return nil
	}
	return &kindErr{kind: kind, err: errors.Wrap(err, context)}
}

// Wrapf is Wrap with a formatted context message.
func Wrapf(kind Kind, err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(kind, err, fmt.Sprintf(format, a...))
}

// Annotate re-wraps err with an additional context segment while
// preserving its existing Kind (falling back to Unknown if err was never
// classified). Used by callers that only want to add a path/offset
// breadcrumb without changing the semantic category.
func Annotate(err error, context string) error {
	if err == nil {
		return nil
	}
	return Wrap(KindOf(err), err, context)
}

// Annotatef is Annotate with a formatted context message.
func Annotatef(err error, format string, a ...any) error {
	return Annotate(err, fmt.Sprintf(format, a...))
}

// KindOf walks err's Unwrap chain and returns the first Kind attached to
// it, or Unknown if none is found.
func KindOf(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindErr); ok {
			return ke.kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return Unknown
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
