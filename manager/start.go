package manager

import (
	"context"
	"fmt"

	sop "github.com/SharedCode/sop"
	"github.com/SharedCode/sop/admission"
	"github.com/SharedCode/sop/node"
)

// Start runs the recursive initialization described in SPEC_FULL.md
// sections 4.2/4.3: it allocates root's tid, runs admission, registers the
// root, then recursively initializes every descendant before the root
// itself.
func (m *Manager) Start(ctx context.Context, root node.Node) error {
	if root.Status() != sop.Start {
		root.SetStatus(sop.InitFailed)
		return invalidTransition("start", root.Status()).WithIDs(root.TransactionUID(), sop.UUID{}, sop.UUID{})
	}

	tid := m.allocTransactionUID(root)
	root.SetTransactionUID(tid)

	source := root.Source()
	admitted, live, limit := m.registry.CheckLimit(source)
	rejectedBy := ""
	if admitted && m.policy != nil {
		started, ended, lim := m.registry.SourceCounts(source)
		allowed, err := m.policy.Allow(admission.Context{
			Source:              source,
			Writable:            root.IsWritable(),
			RequiresPersistence: root.RequiresPersistence(),
			Started:             started,
			Ended:               ended,
			Limit:               lim,
		})
		if err != nil || !allowed {
			admitted = false
			rejectedBy = m.policy.Name
		}
	}
	if !admitted {
		root.SetStatus(sop.InitFailed)
		reason := fmt.Errorf("admission rejected for source %q (live=%d, limit=%d)", source, live, limit)
		if rejectedBy != "" {
			reason = fmt.Errorf("admission rejected for source %q by policy %q (live=%d, limit=%d)", source, rejectedBy, live, limit)
		}
		return sop.NewTransactionError(sop.Normal, "start", sop.InitFailed, reason).WithIDs(tid, sop.UUID{}, sop.UUID{})
	}
	m.registry.Admit(source)
	m.registry.Insert(tid, root)

	root.SetStatus(sop.Initing)
	if err := m.initNode(ctx, root); err != nil {
		root.SetStatus(sop.InitFailed)
		return err
	}
	root.SetStatus(sop.Inited)
	return nil
}

// initNode implements the recursive child initialization of SPEC_FULL.md
// section 4.3. The recursion is tail-forward (an explicit loop over
// children plus a recursive call per tree child), not tail-recursive, so
// stack usage is bounded by tree depth rather than any particular runtime
// call-stack optimization.
func (m *Manager) initNode(ctx context.Context, n node.Node) error {
	switch n.Kind() {
	case node.Unit:
		_, err := n.Init(ctx)
		return err

	case node.Invalid:
		return fmt.Errorf("init: %w", node.ErrInvalidNode)

	case node.Tree:
		for _, child := range n.Children() {
			switch child.Kind() {
			case node.Unit:
				child.SetTransactionUID(m.allocTransactionUID(child))
				child.SetStatus(sop.Initing)
				if _, err := child.Init(ctx); err != nil {
					child.SetStatus(sop.InitFailed)
					return err
				}
				child.SetStatus(sop.Inited)

			case node.Tree:
				if err := m.Start(ctx, child); err != nil {
					return err
				}

			default:
				child.SetStatus(sop.InitFailed)
				return fmt.Errorf("init: child: %w", node.ErrInvalidNode)
			}
		}
		_, err := n.Init(ctx)
		return err

	default:
		return fmt.Errorf("init: unrecognized node kind %v", n.Kind())
	}
}
