package node

import (
	"sync"
	"sync/atomic"

	sop "github.com/SharedCode/sop"
)

// Base carries the common capability set every concrete Node embeds:
// identity, flags, and a thread-safe status field. The manager's registry
// and the runtime tasks executing a node's subtree share this struct
// concurrently, so Status is an atomic and the identifiers are guarded by
// a small mutex rather than requiring callers to hold a lock across an
// await point.
type Base struct {
	source sop.Source
	status atomic.Int32

	idMu sync.RWMutex
	tid  sop.UUID
	pid  sop.UUID
	cid  sop.UUID

	Writable            bool
	Persistent          bool
	InheritUID          bool
	ConcurrentPrepareOp bool
	ConcurrentCommitOp  bool
	ConcurrentRollbackOp bool
}

// NewBase constructs a Base with the given source and flags. status starts
// at sop.Start, the zero value.
func NewBase(source sop.Source, writable, persistent bool) *Base {
	b := &Base{source: source, Writable: writable, Persistent: persistent}
	b.status.Store(int32(sop.Start))
	return b
}

func (b *Base) Source() sop.Source { return b.source }

func (b *Base) Status() sop.Status { return sop.Status(b.status.Load()) }

func (b *Base) SetStatus(s sop.Status) { b.status.Store(int32(s)) }

func (b *Base) TransactionUID() sop.UUID {
	b.idMu.RLock()
	defer b.idMu.RUnlock()
	return b.tid
}

func (b *Base) SetTransactionUID(id sop.UUID) {
	b.idMu.Lock()
	defer b.idMu.Unlock()
	b.tid = id
}

func (b *Base) PrepareUID() sop.UUID {
	b.idMu.RLock()
	defer b.idMu.RUnlock()
	return b.pid
}

func (b *Base) SetPrepareUID(id sop.UUID) {
	b.idMu.Lock()
	defer b.idMu.Unlock()
	b.pid = id
}

func (b *Base) CommitUID() sop.UUID {
	b.idMu.RLock()
	defer b.idMu.RUnlock()
	return b.cid
}

func (b *Base) SetCommitUID(id sop.UUID) {
	b.idMu.Lock()
	defer b.idMu.Unlock()
	b.cid = id
}

func (b *Base) IsWritable() bool            { return b.Writable }
func (b *Base) RequiresPersistence() bool   { return b.Persistent }
func (b *Base) EnableInheritUID() bool      { return b.InheritUID }
func (b *Base) ConcurrentPrepare() bool     { return b.ConcurrentPrepareOp }
func (b *Base) ConcurrentCommit() bool      { return b.ConcurrentCommitOp }
func (b *Base) ConcurrentRollback() bool    { return b.ConcurrentRollbackOp }
