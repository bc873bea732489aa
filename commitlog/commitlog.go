// Package commitlog defines the write-ahead commit log capability the
// manager consumes (SPEC_FULL.md section 6) and its pluggable backends.
// Append is a durable-intent write that returns an opaque handle; Flush is
// the explicit second step that makes the append durable; Replay iterates
// every durably-flushed record exactly once, in append order, driving
// crash recovery (SPEC_FULL.md section 4.8).
package commitlog

import (
	"context"

	sop "github.com/SharedCode/sop"
)

// Handle identifies a pending append until it is flushed. Backends define
// their own concrete handle type (e.g. a WAL index); the manager treats it
// as opaque.
type Handle any

// CommitLog is the capability the manager consumes for write-ahead commit
// durability.
type CommitLog interface {
	// Append writes (cid, payload) and returns a handle identifying the
	// pending write. The write is not guaranteed durable until Flush
	// succeeds for the same handle.
	Append(ctx context.Context, cid sop.UUID, payload []byte) (Handle, error)

	// Flush makes a previously appended record durable.
	Flush(ctx context.Context, handle Handle) error

	// Replay invokes callback once per durably-flushed record, in append
	// order, and reports how many records were read and how many the
	// callback accepted (returned a nil error for).
	Replay(ctx context.Context, callback func(cid sop.UUID, payload []byte) error) (recordsRead int, recordsApplied int, err error)

	// Close releases the backend's resources.
	Close() error
}
