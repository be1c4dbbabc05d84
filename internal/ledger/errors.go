package ledger

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by point lookups for ids that are not in the book.
var ErrNotFound = errors.New("not found")

// PreconditionViolation means the data an operation depends on is malformed
// (missing account, parent cycle, a position with no zero crossing). The
// operation cannot produce a result; callers should surface it and stop.
type PreconditionViolation struct {
	Op     string
	Detail string
	Err    error
}

func (e *PreconditionViolation) Error() string {
	msg := e.Op + ": " + e.Detail
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PreconditionViolation) Unwrap() error { return e.Err }

// Violation builds a PreconditionViolation with a formatted detail.
func Violation(op string, err error, format string, args ...any) error {
	return &PreconditionViolation{Op: op, Detail: fmt.Sprintf(format, args...), Err: err}
}

// IsViolation reports whether err wraps a PreconditionViolation.
func IsViolation(err error) bool {
	var pv *PreconditionViolation
	return errors.As(err, &pv)
}
