// Package manager implements the 2PC core: the manager owns the registry,
// id service, and commit log, and drives Start/Prepare/Commit/Rollback/
// Finish plus crash-recovery replay over a node.Node tree, following the
// state machine and recursion structure in SPEC_FULL.md sections 4 and 8,
// itself a Go-idiomatic re-expression of original_source/async_transaction/
// src/manager_2pc.rs.
package manager

import (
	"context"
	"fmt"
	"sync/atomic"

	sop "github.com/SharedCode/sop"
	"github.com/SharedCode/sop/admission"
	"github.com/SharedCode/sop/commitlog"
	"github.com/SharedCode/sop/idgen"
	"github.com/SharedCode/sop/node"
)

// Manager is the 2PC core described in SPEC_FULL.md section 2.5/4.1.
type Manager struct {
	ids       idgen.IDService
	log       commitlog.CommitLog
	registry  *Registry
	policy    *admission.Policy
	maxFanOut int

	cidCounter atomic.Int64
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithAdmissionPolicy attaches an optional CEL-backed admission.Policy
// consulted after the hard per-source counter limit (SPEC_FULL.md section
// 4.10).
func WithAdmissionPolicy(p *admission.Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithMaxFanOut bounds the number of concurrent child tasks spawned for a
// concurrent_prepare/concurrent_commit/concurrent_rollback fan-out. 0 (the
// default) means unbounded.
func WithMaxFanOut(n int) Option {
	return func(m *Manager) { m.maxFanOut = n }
}

// New constructs a Manager over the given id service and commit log.
func New(ids idgen.IDService, log commitlog.CommitLog, opts ...Option) *Manager {
	m := &Manager{ids: ids, log: log, registry: NewRegistry()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry exposes the manager's bookkeeping for read-only inspection
// (API surface, tests).
func (m *Manager) Registry() *Registry { return m.registry }

// SetSourceLimit (re)configures the hard admission limit for source; a
// negative limit means unbounded.
func (m *Manager) SetSourceLimit(source sop.Source, limit int64) {
	m.registry.SetSourceLimit(source, limit)
}

// allocTransactionUID, allocPrepareUID and allocCommitUID allocate an id of
// their control code for n, honoring
// enable_inherit_uid (SPEC_FULL.md section 4.6): when set and n already
// carries an id of that kind, it is reused unchanged.
func (m *Manager) allocTransactionUID(n node.Node) sop.UUID {
	if n.EnableInheritUID() && !n.TransactionUID().IsNil() {
		return n.TransactionUID()
	}
	return m.ids.Gen(idgen.ControlTransaction)
}

func (m *Manager) allocPrepareUID(n node.Node) sop.UUID {
	if n.EnableInheritUID() && !n.PrepareUID().IsNil() {
		return n.PrepareUID()
	}
	return m.ids.Gen(idgen.ControlPrepare)
}

func (m *Manager) allocCommitUID(n node.Node) sop.UUID {
	if n.EnableInheritUID() && !n.CommitUID().IsNil() {
		return n.CommitUID()
	}
	return m.ids.Gen(idgen.ControlCommit)
}

func invalidTransition(op string, status sop.Status) *sop.TransactionError {
	return sop.NewTransactionError(sop.Normal, op, status,
		fmt.Errorf("invalid transition: %s called on node in status %s", op, status))
}
