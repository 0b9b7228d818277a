package uevent

import (
	"errors"
	"fmt"
)

// Kind classifies the errors a Monitor or FilterSpec can return (spec.md §7).
type Kind int

const (
	_ Kind = iota
	KindInvalidArgument
	KindOutOfMemory
	KindTooBig
	KindOsError
	KindAgain
	KindTransportRefused
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindOutOfMemory:
		return "out of memory"
	case KindTooBig:
		return "filter program too big"
	case KindOsError:
		return "os error"
	case KindAgain:
		return "again"
	case KindTransportRefused:
		return "transport refused"
	default:
		return "unknown error"
	}
}

// Error is the typed error value every fallible operation in this package
// returns. Inspect Kind directly, or use errors.Is against ErrAgain.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("uevent: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("uevent: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// ErrAgain is the sentinel wrapped by every *Error with Kind KindAgain: a
// received datagram was dropped because of a structural decode failure, a
// failed admission check, or a message that did not pass the current
// FilterSpec. It is always recoverable (spec.md §7's "Again" kind) — the
// drain loop in Poller, and Monitor.Receive's own drain, continue on it.
var ErrAgain = errors.New("uevent: message dropped, try again")

func again(op string) *Error {
	return newErr(op, KindAgain, ErrAgain)
}

// IsAgain reports whether err indicates a dropped, recoverable message.
func IsAgain(err error) bool {
	return errors.Is(err, ErrAgain)
}

// osError wraps a host errno as KindOsError, returning nil if err is nil so
// call sites can write `return osError(op, syscallFn())` directly.
func osError(op string, err error) *Error {
	if err == nil {
		return nil
	}
	return newErr(op, KindOsError, err)
}
