package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	sop "github.com/SharedCode/sop"
	"github.com/SharedCode/sop/admission"
	"github.com/SharedCode/sop/commitlog"
	"github.com/SharedCode/sop/idgen"
	"github.com/SharedCode/sop/node"
)

// memCommitLog is an in-memory CommitLog test double recording every
// appended/flushed (cid, payload) pair in append order.
type memCommitLog struct {
	mu      sync.Mutex
	records []memRecord
	flushed map[int]bool
}

type memRecord struct {
	cid     sop.UUID
	payload []byte
}

func newMemCommitLog() *memCommitLog {
	return &memCommitLog{flushed: map[int]bool{}}
}

func (m *memCommitLog) Append(ctx context.Context, cid sop.UUID, payload []byte) (commitlog.Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, memRecord{cid: cid, payload: append([]byte(nil), payload...)})
	return len(m.records) - 1, nil
}

func (m *memCommitLog) Flush(ctx context.Context, handle commitlog.Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := handle.(int)
	m.flushed[idx] = true
	return nil
}

func (m *memCommitLog) Replay(ctx context.Context, callback func(cid sop.UUID, payload []byte) error) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	read, applied := 0, 0
	for i, r := range m.records {
		if !m.flushed[i] {
			continue
		}
		read++
		if err := callback(r.cid, r.payload); err == nil {
			applied++
		}
	}
	return read, applied, nil
}

func (m *memCommitLog) Close() error { return nil }

func (m *memCommitLog) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func newTestManager() (*Manager, *memCommitLog) {
	log := newMemCommitLog()
	return New(idgen.New(), log), log
}

// TestHappyUnitPath covers E1: start -> prepare -> commit on a writable
// persistent unit, checking the status observed after each step (Start,
// Inited, Prepared, Commited) and a single log record, then finish removes
// it.
func TestHappyUnitPath(t *testing.T) {
	mgr, log := newTestManager()

	var statuses []sop.Status
	n := node.NewUnitNode("orders", true, true)
	n.PrepareFunc = func(ctx context.Context) ([]byte, error) { return []byte("payload"), nil }
	n.CommitFunc = func(ctx context.Context, confirm bool) (any, error) { return nil, nil }

	record := func() { statuses = append(statuses, n.Status()) }

	record() // Start
	if err := mgr.Start(context.Background(), n); err != nil {
		t.Fatalf("Start: %v", err)
	}
	record() // Inited

	payload, err := mgr.Prepare(context.Background(), n)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	record() // Prepared
	if string(payload) != "payload" {
		t.Fatalf("payload = %q, want %q", payload, "payload")
	}

	if _, err := mgr.Commit(context.Background(), n, payload, true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	record() // Commited

	want := []sop.Status{sop.Start, sop.Inited, sop.Prepared, sop.Commited}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("statuses[%d] = %s, want %s", i, statuses[i], want[i])
		}
	}

	if log.recordCount() != 1 {
		t.Fatalf("log record count = %d, want 1", log.recordCount())
	}

	tid := n.TransactionUID()
	if err := mgr.Finish(tid, n); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, ok := mgr.Registry().Get(tid); ok {
		t.Fatalf("expected tid removed from registry after finish")
	}
}

// TestReadOnlyFastPath covers E2: a read-only unit's prepare/commit never
// touch the commit log or counters.
func TestReadOnlyFastPath(t *testing.T) {
	mgr, log := newTestManager()
	n := node.NewUnitNode("orders", false, false)

	if err := mgr.Start(context.Background(), n); err != nil {
		t.Fatalf("Start: %v", err)
	}
	payload, err := mgr.Prepare(context.Background(), n)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if payload != nil {
		t.Fatalf("expected nil payload for read-only prepare, got %v", payload)
	}
	if n.Status() != sop.Prepared {
		t.Fatalf("status = %s, want Prepared", n.Status())
	}

	if _, err := mgr.Commit(context.Background(), n, payload, true); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if n.Status() != sop.Commited {
		t.Fatalf("status = %s, want Commited", n.Status())
	}
	if log.recordCount() != 0 {
		t.Fatalf("expected no commit log records for a read-only node, got %d", log.recordCount())
	}
	snap := mgr.Registry().Snapshot()
	if snap.PrepareProduced != 0 || snap.CommitProduced != 0 {
		t.Fatalf("expected untouched counters, got %+v", snap)
	}
}

// TestSequentialTreePrepare covers E3: a root with three unit children and
// concurrent_prepare=false concatenates parent payload then each child's
// payload in document order.
func TestSequentialTreePrepare(t *testing.T) {
	mgr, _ := newTestManager()

	mk := func(label string) *node.UnitNode {
		u := node.NewUnitNode("orders", true, true)
		u.PrepareFunc = func(ctx context.Context) ([]byte, error) { return []byte(label), nil }
		u.CommitFunc = func(ctx context.Context, confirm bool) (any, error) { return nil, nil }
		return u
	}
	c0, c1, c2 := mk("child0"), mk("child1"), mk("child2")

	root := node.NewTreeNode("orders", true, true, c0, c1, c2)
	root.PrepareFunc = func(ctx context.Context) ([]byte, error) { return []byte("parent"), nil }
	root.CommitFunc = func(ctx context.Context, confirm bool) (any, error) { return nil, nil }

	if err := mgr.Start(context.Background(), root); err != nil {
		t.Fatalf("Start: %v", err)
	}
	payload, err := mgr.Prepare(context.Background(), root)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	want := "parentchild0child1child2"
	if string(payload) != want {
		t.Fatalf("payload = %q, want %q", payload, want)
	}
}

// TestConcurrentTreeCommitFailureAfterLog covers E4: concurrent_commit with
// one failing child drives the root to CommitFailed (Fatal) after the log
// append already succeeded, and marks it in the fatal ledger.
func TestConcurrentTreeCommitFailureAfterLog(t *testing.T) {
	mgr, log := newTestManager()

	ok1 := node.NewUnitNode("orders", true, false)
	ok1.CommitFunc = func(ctx context.Context, confirm bool) (any, error) { return nil, nil }

	failing := node.NewUnitNode("orders", true, false)
	failing.CommitFunc = func(ctx context.Context, confirm bool) (any, error) {
		return nil, errors.New("participant failure")
	}

	root := node.NewTreeNode("orders", true, true, ok1, failing)
	root.ConcurrentCommitOp = true
	root.PrepareFunc = func(ctx context.Context) ([]byte, error) { return []byte("root"), nil }
	root.CommitFunc = func(ctx context.Context, confirm bool) (any, error) { return nil, nil }

	if err := mgr.Start(context.Background(), root); err != nil {
		t.Fatalf("Start: %v", err)
	}
	payload, err := mgr.Prepare(context.Background(), root)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	_, err = mgr.Commit(context.Background(), root, payload, true)
	if err == nil {
		t.Fatalf("expected commit error from failing child")
	}
	if !sop.IsFatal(err) {
		t.Fatalf("expected Fatal error, got %v", err)
	}
	if root.Status() != sop.CommitFailed {
		t.Fatalf("status = %s, want CommitFailed", root.Status())
	}
	if log.recordCount() != 1 {
		t.Fatalf("expected log append to have already happened, got %d records", log.recordCount())
	}

	tid := root.TransactionUID()
	fatal := mgr.Registry().FatalTransactions()
	found := false
	for _, f := range fatal {
		if f == tid {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected tid %s in fatal ledger", tid)
	}

	if err := mgr.Finish(tid, root); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, ok := mgr.Registry().Get(tid); ok {
		t.Fatalf("finish on a CommitFailed node must be a no-op per section 4.7, but tid was removed")
	}
}

// TestAdmissionLimit covers E6: a third start over a source at its limit
// fails with a Normal error mentioning the current count, and does not
// register a new entry.
func TestAdmissionLimit(t *testing.T) {
	mgr, _ := newTestManager()
	mgr.SetSourceLimit("orders", 2)

	n1 := node.NewUnitNode("orders", false, false)
	n2 := node.NewUnitNode("orders", false, false)
	n3 := node.NewUnitNode("orders", false, false)

	if err := mgr.Start(context.Background(), n1); err != nil {
		t.Fatalf("Start n1: %v", err)
	}
	if err := mgr.Start(context.Background(), n2); err != nil {
		t.Fatalf("Start n2: %v", err)
	}

	err := mgr.Start(context.Background(), n3)
	if err == nil {
		t.Fatalf("expected the third start to be rejected")
	}
	if sop.IsFatal(err) {
		t.Fatalf("admission rejection must be Normal, got Fatal")
	}
	if !strings.Contains(err.Error(), "2") {
		t.Fatalf("expected error to mention the current count 2, got %q", err.Error())
	}
	if mgr.Registry().TransactionLen() != 2 {
		t.Fatalf("expected exactly 2 registered transactions, got %d", mgr.Registry().TransactionLen())
	}
}

// TestStartOnNonStartStatus covers boundary behavior 6.
func TestStartOnNonStartStatus(t *testing.T) {
	mgr, _ := newTestManager()
	n := node.NewUnitNode("orders", false, false)
	n.SetStatus(sop.Inited)

	err := mgr.Start(context.Background(), n)
	if err == nil {
		t.Fatalf("expected error starting a node not in Start status")
	}
	if n.Status() != sop.InitFailed {
		t.Fatalf("status = %s, want InitFailed", n.Status())
	}
}

// TestCommitFailureAfterLogCommitedIsFatal covers boundary behavior 9.
func TestCommitFailureAfterLogCommitedIsFatal(t *testing.T) {
	mgr, _ := newTestManager()
	n := node.NewUnitNode("orders", true, true)
	n.PrepareFunc = func(ctx context.Context) ([]byte, error) { return []byte("p"), nil }
	n.CommitFunc = func(ctx context.Context, confirm bool) (any, error) {
		return nil, errors.New("commit participant failure")
	}

	if err := mgr.Start(context.Background(), n); err != nil {
		t.Fatalf("Start: %v", err)
	}
	payload, err := mgr.Prepare(context.Background(), n)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	_, err = mgr.Commit(context.Background(), n, payload, true)
	if err == nil || !sop.IsFatal(err) {
		t.Fatalf("expected a Fatal commit error, got %v", err)
	}
	if n.Status() != sop.CommitFailed {
		t.Fatalf("status = %s, want CommitFailed", n.Status())
	}

	tid := n.TransactionUID()
	if err := mgr.Finish(tid, n); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, ok := mgr.Registry().Get(tid); !ok {
		t.Fatalf("finish on CommitFailed must be a no-op; tid should remain registered")
	}
}

// TestAdmissionPolicyRejectsIndependentlyOfLimit covers addition 11: a CEL
// policy can reject a start even when the counter-based limit would have
// allowed it, and leaves counters untouched.
func TestAdmissionPolicyRejectsIndependentlyOfLimit(t *testing.T) {
	log := newMemCommitLog()
	policy, err := admission.NewPolicy("always-reject", "false")
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	mgr := New(idgen.New(), log, WithAdmissionPolicy(policy))

	n := node.NewUnitNode("orders", false, false)
	err = mgr.Start(context.Background(), n)
	if err == nil {
		t.Fatalf("expected the policy to reject the start")
	}
	if sop.IsFatal(err) {
		t.Fatalf("admission rejection must be Normal, got Fatal")
	}
	started, ended, _ := mgr.Registry().SourceCounts("orders")
	if started != 0 || ended != 0 {
		t.Fatalf("expected untouched counters on policy rejection, got started=%d ended=%d", started, ended)
	}
}
