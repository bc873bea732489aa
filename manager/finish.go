package manager

import (
	"fmt"

	sop "github.com/SharedCode/sop"
	"github.com/SharedCode/sop/node"
)

// Finish implements SPEC_FULL.md section 4.7: synchronous, permitted only
// on the listed statuses, a silent no-op on any *ing or fatal failed
// status rather than an error, matching the source's "forbidden ==
// no-op" semantics.
func (m *Manager) Finish(tid sop.UUID, n node.Node) error {
	if !sop.IsFinishable(n.Status()) {
		return nil
	}
	m.registry.Remove(tid, n.Source())
	return nil
}

// FinishStrict is the same operation but reports an error instead of a
// silent no-op when n is not in a finishable status, for callers (such as
// the API surface) that want to surface the rejection rather than swallow
// it.
func (m *Manager) FinishStrict(tid sop.UUID, n node.Node) error {
	if !sop.IsFinishable(n.Status()) {
		return fmt.Errorf("finish: node in status %s is not finishable", n.Status())
	}
	m.registry.Remove(tid, n.Source())
	return nil
}
