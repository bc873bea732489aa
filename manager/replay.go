package manager

import (
	"context"
	"fmt"

	sop "github.com/SharedCode/sop"
	"github.com/SharedCode/sop/node"
)

// Reconstructor rebuilds the transaction node a replayed commit log record
// belongs to. It returns the node tree rooted at the replayed transaction
// along with the tid that record was written under.
type Reconstructor func(cid sop.UUID, payload []byte) (n node.Node, tid sop.UUID, confirm bool, err error)

// ReplayCommitLog implements SPEC_FULL.md section 4.8: it drains the
// commit log's replay stream and, for each record, asks reconstruct to
// rebuild the node tree before driving it through ReplayCommit. Replay
// gives at-most-once commit per cid: a crash before flush leaves no
// record to replay, a crash after flush reconstructs and re-commits
// deterministically, so commit participants must tolerate being invoked
// twice for the same cid.
func (m *Manager) ReplayCommitLog(ctx context.Context, reconstruct Reconstructor) (recordsRead, recordsApplied int, err error) {
	return m.log.Replay(ctx, func(cid sop.UUID, payload []byte) error {
		n, tid, confirm, err := reconstruct(cid, payload)
		if err != nil {
			return err
		}
		_, err = m.ReplayCommit(ctx, n, tid, cid, payload, confirm)
		return err
	})
}

// ReplayCommit implements SPEC_FULL.md section 4.8 steps 1-4: it
// recursively overwrites tid and cid across the whole subtree, registers
// the root through the same per-source counter limit Start checks (the
// optional admission policy is not consulted here), forces Prepared
// (skipping prepare entirely), then invokes Commit. A replay that drives
// the root to Commited removes tid from the fatal ledger.
func (m *Manager) ReplayCommit(ctx context.Context, n node.Node, tid, cid sop.UUID, payload []byte, confirm bool) (any, error) {
	setTransactionUID(n, tid)
	setCommitUID(n, cid)

	admitted, live, limit := m.registry.CheckLimit(n.Source())
	if !admitted {
		n.SetStatus(sop.InitFailed)
		return nil, sop.NewTransactionError(sop.Normal, "replay_commit", sop.InitFailed,
			fmt.Errorf("admission rejected for source %q (live=%d, limit=%d)", n.Source(), live, limit)).WithIDs(tid, sop.UUID{}, cid)
	}
	m.registry.Admit(n.Source())
	m.registry.Insert(tid, n)

	n.SetStatus(sop.Prepared)
	result, err := m.Commit(ctx, n, payload, confirm)
	if err == nil && n.Status() == sop.Commited {
		m.registry.ClearFatal(tid)
	}
	return result, err
}

func setTransactionUID(n node.Node, tid sop.UUID) {
	n.SetTransactionUID(tid)
	for _, child := range n.Children() {
		setTransactionUID(child, tid)
	}
}

func setCommitUID(n node.Node, cid sop.UUID) {
	n.SetCommitUID(cid)
	for _, child := range n.Children() {
		setCommitUID(child, cid)
	}
}
