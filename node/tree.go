package node

import (
	"context"

	sop "github.com/SharedCode/sop"
)

// TreeNode is an interior node: it holds children (units, trees, or
// invalid nodes) and its own init/prepare/commit/rollback callbacks, which
// the manager invokes *after* all children have completed the same phase
// (SPEC_FULL.md section 4.3/4.4/4.5). Concurrency policy is per-node: a
// TreeNode fans its children out in parallel for a phase only if the
// matching ConcurrentPrepareOp/ConcurrentCommitOp/ConcurrentRollbackOp flag
// on its own Base is set.
type TreeNode struct {
	*Base

	children []Node

	InitFunc     func(ctx context.Context) (any, error)
	PrepareFunc  func(ctx context.Context) ([]byte, error)
	CommitFunc   func(ctx context.Context, confirm bool) (any, error)
	RollbackFunc func(ctx context.Context) (any, error)
}

// NewTreeNode constructs a TreeNode with the given source, flags, and
// children in document order.
func NewTreeNode(source sop.Source, writable, persistent bool, children ...Node) *TreeNode {
	return &TreeNode{Base: NewBase(source, writable, persistent), children: children}
}

func (t *TreeNode) Kind() Kind { return Tree }

func (t *TreeNode) Children() []Node { return t.children }
func (t *TreeNode) ChildrenLen() int  { return len(t.children) }

// AddChild appends a child in document order. Only valid before Start.
func (t *TreeNode) AddChild(n Node) {
	t.children = append(t.children, n)
}

func (t *TreeNode) Init(ctx context.Context) (any, error) {
	if t.InitFunc == nil {
		return nil, nil
	}
	return t.InitFunc(ctx)
}

func (t *TreeNode) Prepare(ctx context.Context) ([]byte, error) {
	if !t.IsWritable() {
		return nil, nil
	}
	if t.PrepareFunc == nil {
		return nil, nil
	}
	return t.PrepareFunc(ctx)
}

func (t *TreeNode) Commit(ctx context.Context, confirm bool) (any, error) {
	if t.CommitFunc == nil {
		return nil, nil
	}
	return t.CommitFunc(ctx, confirm)
}

func (t *TreeNode) Rollback(ctx context.Context) (any, error) {
	if t.RollbackFunc == nil {
		return nil, nil
	}
	return t.RollbackFunc(ctx)
}
