package manager

import (
	"context"
	"fmt"

	sop "github.com/SharedCode/sop"
	"github.com/SharedCode/sop/node"
	"github.com/SharedCode/sop/runtime"
)

// Commit runs both sub-phases of SPEC_FULL.md section 4.5: Phase A writes
// and flushes the commit log (the Normal/Fatal severity fence sits exactly
// at LogCommited), Phase B then fans the confirm out across the node tree,
// reusing LogCommiting as the in-progress sentinel for Phase B on purpose.
// Any failure surfacing after the Phase A fence is Fatal and marks tid in
// the registry's fatal ledger.
func (m *Manager) Commit(ctx context.Context, n node.Node, payload []byte, confirm bool) (any, error) {
	if n.Status() != sop.Prepared {
		n.SetStatus(sop.LogCommitFailed)
		return nil, invalidTransition("commit", n.Status()).WithIDs(n.TransactionUID(), n.PrepareUID(), n.CommitUID())
	}

	if !n.IsWritable() {
		n.SetStatus(sop.Commited)
		return nil, nil
	}

	if !n.RequiresPersistence() {
		n.SetStatus(sop.LogCommited)
	} else {
		m.registry.incCommitProduced()
		n.SetStatus(sop.LogCommiting)
		handle, err := m.log.Append(ctx, n.CommitUID(), payload)
		if err != nil {
			n.SetStatus(sop.LogCommitFailed)
			return nil, sop.NewTransactionError(sop.Normal, "commit", sop.LogCommitFailed, err).
				WithIDs(n.TransactionUID(), n.PrepareUID(), n.CommitUID())
		}
		if err := m.log.Flush(ctx, handle); err != nil {
			n.SetStatus(sop.LogCommitFailed)
			return nil, sop.NewTransactionError(sop.Normal, "commit", sop.LogCommitFailed, err).
				WithIDs(n.TransactionUID(), n.PrepareUID(), n.CommitUID())
		}
		n.SetStatus(sop.LogCommited)
	}

	return m.commitPhaseB(ctx, n, confirm)
}

// commitPhaseB implements SPEC_FULL.md section 4.5 Phase B. Every failure
// here is Fatal: the log already holds a durable record by the time this
// runs.
func (m *Manager) commitPhaseB(ctx context.Context, n node.Node, confirm bool) (any, error) {
	if n.Status() != sop.LogCommited {
		n.SetStatus(sop.CommitFailed)
		m.fail(n)
		te := invalidTransition("commit", n.Status()).WithIDs(n.TransactionUID(), n.PrepareUID(), n.CommitUID())
		te.Level = sop.Fatal
		return nil, te
	}
	n.SetStatus(sop.LogCommiting)

	result, err := m.commitNode(ctx, n, confirm)
	if err != nil {
		n.SetStatus(sop.CommitFailed)
		m.fail(n)
		if n.RequiresPersistence() {
			m.registry.incCommitConsumed()
		}
		return nil, sop.NewTransactionError(sop.Fatal, "commit", sop.CommitFailed, err).
			WithIDs(n.TransactionUID(), n.PrepareUID(), n.CommitUID())
	}

	n.SetStatus(sop.Commited)
	if n.RequiresPersistence() {
		m.registry.incCommitConsumed()
	}
	return result, nil
}

func (m *Manager) fail(n node.Node) {
	if !n.TransactionUID().IsNil() {
		m.registry.MarkFatal(n.TransactionUID())
	}
}

func (m *Manager) commitNode(ctx context.Context, n node.Node, confirm bool) (any, error) {
	switch n.Kind() {
	case node.Unit:
		return n.Commit(ctx, confirm)

	case node.Invalid:
		return nil, fmt.Errorf("commit: %w", node.ErrInvalidNode)

	case node.Tree:
		children := n.Children()

		if n.ConcurrentCommit() {
			_, err := runtime.MapReduce(ctx, m.maxFanOut, children,
				func(ctx context.Context, idx int, child node.Node) (any, error) {
					return m.commitChild(ctx, child, confirm)
				})
			if err != nil {
				return nil, err
			}
		} else {
			for _, child := range children {
				if _, err := m.commitChild(ctx, child, confirm); err != nil {
					return nil, err
				}
			}
		}

		return n.Commit(ctx, confirm)

	default:
		return nil, fmt.Errorf("commit: unrecognized node kind %v", n.Kind())
	}
}

// commitChild drives a single child through Commiting -> Commited/
// CommitFailed, per SPEC_FULL.md section 4.5 Phase B step 4.
func (m *Manager) commitChild(ctx context.Context, child node.Node, confirm bool) (any, error) {
	child.SetStatus(sop.Commiting)
	result, err := m.commitNode(ctx, child, confirm)
	if err != nil {
		child.SetStatus(sop.CommitFailed)
		m.fail(child)
		return nil, err
	}
	child.SetStatus(sop.Commited)
	return result, nil
}
