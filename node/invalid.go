package node

import (
	"context"
	"errors"

	sop "github.com/SharedCode/sop"
)

// ErrInvalidNode is returned by every operation on an InvalidNode that
// carries no Reason (one that does returns its Reason instead), and by the
// manager whenever it reaches a node of Kind Invalid.
var ErrInvalidNode = errors.New("node: invalid node type (neither unit nor tree)")

// InvalidNode models a child slot that failed to construct (e.g. a
// deserialization error while rebuilding a tree for replay). It carries no
// behavior of its own: every phase fails immediately so the surrounding
// tree's state machine treats it as a normal participant failure during
// init/prepare and a fatal one during commit/rollback, matching
// SPEC_FULL.md section 7's "Invalid node type" error kind. The manager,
// not this type, is responsible for choosing Normal vs Fatal based on
// which phase is calling.
type InvalidNode struct {
	*Base
	Reason error
}

// NewInvalidNode constructs an InvalidNode carrying the construction error.
func NewInvalidNode(source sop.Source, reason error) *InvalidNode {
	return &InvalidNode{Base: NewBase(source, false, false), Reason: reason}
}

func (n *InvalidNode) Kind() Kind { return Invalid }

func (n *InvalidNode) Children() []Node { return nil }
func (n *InvalidNode) ChildrenLen() int  { return 0 }

func (n *InvalidNode) err() error {
	if n.Reason != nil {
		return n.Reason
	}
	return ErrInvalidNode
}

func (n *InvalidNode) Init(ctx context.Context) (any, error)                  { return nil, n.err() }
func (n *InvalidNode) Prepare(ctx context.Context) ([]byte, error)            { return nil, n.err() }
func (n *InvalidNode) Commit(ctx context.Context, confirm bool) (any, error)  { return nil, n.err() }
func (n *InvalidNode) Rollback(ctx context.Context) (any, error)              { return nil, n.err() }
