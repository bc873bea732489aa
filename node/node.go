// Package node defines the transaction tree contract consumed by the 2PC
// manager. Nodes are a tagged sum over {unit, tree, invalid}: unit nodes
// wrap a single participant's init/prepare/commit/rollback callbacks, tree
// nodes fan those operations out to children according to their own
// concurrency policy, and invalid nodes exist only to carry a construction
// error into the state machine so it surfaces through the normal
// InitFailed/PrepareFailed path instead of a panic.
package node

import (
	"context"

	sop "github.com/SharedCode/sop"
)

// Kind tags which variant of the node sum type a Node is.
type Kind int

const (
	Unit Kind = iota
	Tree
	Invalid
)

func (k Kind) String() string {
	switch k {
	case Unit:
		return "unit"
	case Tree:
		return "tree"
	default:
		return "invalid"
	}
}

// Node is the capability interface the manager consumes. Implementations
// are free to be unit or tree nodes (see UnitNode/TreeNode in this
// package) or entirely custom types, so long as they satisfy this
// contract.
type Node interface {
	Kind() Kind

	Source() sop.Source
	Status() sop.Status
	SetStatus(sop.Status)

	TransactionUID() sop.UUID
	SetTransactionUID(sop.UUID)
	PrepareUID() sop.UUID
	SetPrepareUID(sop.UUID)
	CommitUID() sop.UUID
	SetCommitUID(sop.UUID)

	IsWritable() bool
	RequiresPersistence() bool
	EnableInheritUID() bool
	ConcurrentPrepare() bool
	ConcurrentCommit() bool
	ConcurrentRollback() bool

	Children() []Node
	ChildrenLen() int

	Init(ctx context.Context) (any, error)
	Prepare(ctx context.Context) ([]byte, error)
	Commit(ctx context.Context, confirm bool) (any, error)
	Rollback(ctx context.Context) (any, error)
}
