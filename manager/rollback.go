package manager

import (
	"context"

	sop "github.com/SharedCode/sop"
	"github.com/SharedCode/sop/node"
	"github.com/SharedCode/sop/runtime"
)

// Rollback runs from ActionFailed/PrepareFailed/LogCommitFailed and
// delegates entirely to the node's own Rollback, regardless of whether n
// is a unit or tree node (SPEC_FULL.md section 9, preserving the source's
// behavior verbatim). Failure here is Fatal: there is no further
// automated recovery path once rollback itself fails.
func (m *Manager) Rollback(ctx context.Context, n node.Node) (any, error) {
	switch n.Status() {
	case sop.ActionFailed, sop.PrepareFailed, sop.LogCommitFailed:
	default:
		n.SetStatus(sop.RollbackFailed)
		m.fail(n)
		return nil, invalidTransition("rollback", n.Status()).WithIDs(n.TransactionUID(), n.PrepareUID(), n.CommitUID())
	}

	n.SetStatus(sop.Rollbacking)
	result, err := n.Rollback(ctx)
	if err != nil {
		n.SetStatus(sop.RollbackFailed)
		m.fail(n)
		return nil, sop.NewTransactionError(sop.Fatal, "rollback", sop.RollbackFailed, err).
			WithIDs(n.TransactionUID(), n.PrepareUID(), n.CommitUID())
	}
	n.SetStatus(sop.Rollbacked)
	return result, nil
}

// rollbackChildren is not reached by Rollback today: the source this
// manager is grounded on always delegates rollback to the node's own
// callback regardless of unit/tree, never fanning out across children on
// its own (see the recorded decision in SPEC_FULL.md section 9). It is
// kept, unreferenced, as the home for a future symmetric rollback fan-out
// alongside Prepare's and Commit's.
func (m *Manager) rollbackChildren(ctx context.Context, n node.Node) ([]any, error) {
	children := n.Children()
	if n.ConcurrentRollback() {
		return runtime.MapReduce(ctx, m.maxFanOut, children,
			func(ctx context.Context, idx int, child node.Node) (any, error) {
				return m.Rollback(ctx, child)
			})
	}
	results := make([]any, 0, len(children))
	for _, child := range children {
		r, err := m.Rollback(ctx, child)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}
