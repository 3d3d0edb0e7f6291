// Package osmerr classifies errors raised during import, storage and
// tile assembly into a small set of kinds so the CLI can report a single
// meaningful line and pick an exit path.
package osmerr

import (
	"errors"
	"fmt"
)

// Kind names the failure category.
type Kind int

const (
	// KindUnknown is the zero value for errors that did not originate here.
	KindUnknown Kind = iota
	// KindParse is a malformed token stream or an unexpected state transition.
	KindParse
	// KindClassify is an unknown class referenced from a style sheet.
	KindClassify
	// KindIo is a file read/write failure, including coord-cache paging.
	KindIo
	// KindStore is a rejected statement in the underlying engine.
	KindStore
	// KindBudget is a per-way/per-relation limit overflow.
	KindBudget
	// KindInvariant is a broken store invariant; always a programming error.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindClassify:
		return "classify"
	case KindIo:
		return "io"
	case KindStore:
		return "store"
	case KindBudget:
		return "budget"
	case KindInvariant:
		return "invariant"
	}
	return "unknown"
}

// Error carries a kind plus the offending object id and input line when
// known. ID -1 and Line 0 mean "not applicable".
type Error struct {
	Kind Kind
	ID   int64
	Line int
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.ID != -1 {
		msg = fmt.Sprintf("%s id=%d", msg, e.ID)
	}
	if e.Line > 0 {
		msg = fmt.Sprintf("%s line=%d", msg, e.Line)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error of the given kind with no id or line attached.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, ID: -1, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to an existing error. Returns nil if err is nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, ID: -1, Err: err}
}

// WithID returns a copy of the error carrying the offending object id.
func (e *Error) WithID(id int64) *Error {
	out := *e
	out.ID = id
	return &out
}

// WithLine returns a copy of the error carrying the input line number.
func (e *Error) WithLine(line int) *Error {
	out := *e
	out.Line = line
	return &out
}

// KindOf extracts the kind from an error chain.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindUnknown
}

// Is lets errors.Is match on bare kinds via sentinel comparison.
func (e *Error) Is(target error) bool {
	var oe *Error
	if errors.As(target, &oe) {
		return oe.Kind == e.Kind
	}
	return false
}
