package sop

import "fmt"

// ErrorLevel classifies a TransactionError by how recoverable it is.
type ErrorLevel int

const (
	// Normal errors are recoverable: the caller may retry, rollback, or
	// otherwise route around the failure.
	Normal ErrorLevel = iota
	// Fatal errors occur after the commit log has been durably written, or
	// when a rollback itself fails; they cannot be rolled back and require
	// operator intervention or a replay-driven re-commit.
	Fatal
)

// String renders the error level for log lines and API responses.
func (l ErrorLevel) String() string {
	if l == Fatal {
		return "Fatal"
	}
	return "Normal"
}

// TransactionError is the error type returned by node and manager
// operations. It carries enough identity (tid/pid/cid, observed status,
// operation name) for an operator or replay routine to locate and act on
// the offending node.
type TransactionError struct {
	Level  ErrorLevel
	Op     string
	Tid    UUID
	Pid    UUID
	Cid    UUID
	Status Status
	Err    error
}

// NewTransactionError constructs a TransactionError at the given level.
func NewTransactionError(level ErrorLevel, op string, status Status, err error) *TransactionError {
	return &TransactionError{Level: level, Op: op, Status: status, Err: err}
}

// WithIDs attaches transaction/prepare/commit identifiers to the error and
// returns it for chaining.
func (e *TransactionError) WithIDs(tid, pid, cid UUID) *TransactionError {
	e.Tid, e.Pid, e.Cid = tid, pid, cid
	return e
}

// Error implements the error interface.
func (e *TransactionError) Error() string {
	return fmt.Errorf("%s error (level=%s, status=%s, tid=%s, pid=%s, cid=%s): %w",
		e.Op, e.Level, e.Status, e.Tid, e.Pid, e.Cid, e.Err).Error()
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *TransactionError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a TransactionError at Fatal level.
func IsFatal(err error) bool {
	var te *TransactionError
	if as, ok := err.(*TransactionError); ok {
		te = as
		return te.Level == Fatal
	}
	return false
}
