package node

import (
	"context"
	"fmt"

	sop "github.com/SharedCode/sop"
)

// UnitNode is a leaf participant: it has no children and delegates each
// phase to a user-supplied callback. Real resource managers (storage
// engines, RPC peers) implement the Node interface directly; UnitNode is
// the common case for participants that are simple enough to be expressed
// as four functions plus the Base flags, and is also what the manager's
// tests build trees out of.
type UnitNode struct {
	*Base

	InitFunc     func(ctx context.Context) (any, error)
	PrepareFunc  func(ctx context.Context) ([]byte, error)
	CommitFunc   func(ctx context.Context, confirm bool) (any, error)
	RollbackFunc func(ctx context.Context) (any, error)
}

// NewUnitNode constructs a UnitNode with the given source and flags. Any
// callback left nil is treated as a no-op success.
func NewUnitNode(source sop.Source, writable, persistent bool) *UnitNode {
	return &UnitNode{Base: NewBase(source, writable, persistent)}
}

func (u *UnitNode) Kind() Kind { return Unit }

func (u *UnitNode) Children() []Node { return nil }
func (u *UnitNode) ChildrenLen() int { return 0 }

func (u *UnitNode) Init(ctx context.Context) (any, error) {
	if u.InitFunc == nil {
		return nil, nil
	}
	return u.InitFunc(ctx)
}

func (u *UnitNode) Prepare(ctx context.Context) ([]byte, error) {
	if !u.IsWritable() {
		return nil, nil
	}
	if u.PrepareFunc == nil {
		return nil, nil
	}
	return u.PrepareFunc(ctx)
}

func (u *UnitNode) Commit(ctx context.Context, confirm bool) (any, error) {
	if u.CommitFunc == nil {
		return nil, nil
	}
	return u.CommitFunc(ctx, confirm)
}

func (u *UnitNode) Rollback(ctx context.Context) (any, error) {
	if u.RollbackFunc == nil {
		return nil, nil
	}
	return u.RollbackFunc(ctx)
}

// String aids test failure messages.
func (u *UnitNode) String() string {
	return fmt.Sprintf("UnitNode{source=%s, status=%s, tid=%s}", u.Source(), u.Status(), u.TransactionUID())
}
