package manager

import (
	"bytes"
	"context"
	"fmt"

	sop "github.com/SharedCode/sop"
	"github.com/SharedCode/sop/node"
	"github.com/SharedCode/sop/runtime"
)

// Prepare runs the vote phase described in SPEC_FULL.md section 4.4. A
// read-only node short-circuits to Prepared with a nil payload and never
// touches the prepare counters. A writable node fans its children out
// according to its own ConcurrentPrepare flag, then invokes its own
// Prepare; the emitted payload is its own payload followed by the
// children's payloads in document order (see the recorded design decision
// in SPEC_FULL.md section 9). A nil own payload suppresses emission
// regardless of children.
func (m *Manager) Prepare(ctx context.Context, n node.Node) ([]byte, error) {
	switch n.Status() {
	case sop.Inited, sop.Actioned, sop.Rollbacked:
	default:
		n.SetStatus(sop.PrepareFailed)
		return nil, invalidTransition("prepare", n.Status()).WithIDs(n.TransactionUID(), n.PrepareUID(), n.CommitUID())
	}

	if !n.IsWritable() {
		n.SetStatus(sop.Prepared)
		return nil, nil
	}

	m.registry.incPrepareProduced()
	n.SetStatus(sop.Prepareing)

	if n.RequiresPersistence() {
		n.SetPrepareUID(m.allocPrepareUID(n))
		n.SetCommitUID(m.allocCommitUID(n))
	}

	payload, err := m.preparePayload(ctx, n)
	if err != nil {
		n.SetStatus(sop.PrepareFailed)
		m.registry.incPrepareConsumed()
		return nil, err
	}
	n.SetStatus(sop.Prepared)
	m.registry.incPrepareConsumed()
	return payload, nil
}

func (m *Manager) preparePayload(ctx context.Context, n node.Node) ([]byte, error) {
	switch n.Kind() {
	case node.Unit:
		return n.Prepare(ctx)

	case node.Invalid:
		return nil, fmt.Errorf("prepare: %w", node.ErrInvalidNode)

	case node.Tree:
		children := n.Children()
		var childPayloads [][]byte

		if n.ConcurrentPrepare() {
			results, err := runtime.MapReduce(ctx, m.maxFanOut, children,
				func(ctx context.Context, idx int, child node.Node) ([]byte, error) {
					return m.Prepare(ctx, child)
				})
			if err != nil {
				return nil, err
			}
			childPayloads = results
		} else {
			childPayloads = make([][]byte, 0, len(children))
			for _, child := range children {
				p, err := m.Prepare(ctx, child)
				if err != nil {
					return nil, err
				}
				childPayloads = append(childPayloads, p)
			}
		}

		ownPayload, err := n.Prepare(ctx)
		if err != nil {
			return nil, err
		}
		if ownPayload == nil {
			return nil, nil
		}

		var buf bytes.Buffer
		buf.Write(ownPayload)
		for _, p := range childPayloads {
			buf.Write(p)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("prepare: unrecognized node kind %v", n.Kind())
	}
}
