package manager

import (
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"

	sop "github.com/SharedCode/sop"
	"github.com/SharedCode/sop/node"
)

// sourceCounter holds the admission counters for one source: started ≥
// ended always; live count is started - ended; limit < 0 means unbounded.
type sourceCounter struct {
	started atomic.Int64
	ended   atomic.Int64
	limit   atomic.Int64
}

func newSourceCounter(limit int64) *sourceCounter {
	sc := &sourceCounter{}
	sc.limit.Store(limit)
	return sc
}

// Registry is the manager's bookkeeping: the live transaction table, the
// per-source admission counters, global produced/consumed statistics, and
// the fatal-transaction ledger (SPEC_FULL.md section 3).
type Registry struct {
	mu         sync.RWMutex
	transTable map[sop.UUID]node.Node

	countersMu sync.Mutex
	counters   map[sop.Source]*sourceCounter

	prepareProduced atomic.Int64
	prepareConsumed atomic.Int64
	commitProduced  atomic.Int64
	commitConsumed  atomic.Int64
	producedTotal   atomic.Int64
	consumedTotal   atomic.Int64

	fatalSet mapset.Set[sop.UUID]
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		transTable: make(map[sop.UUID]node.Node),
		counters:   make(map[sop.Source]*sourceCounter),
		fatalSet:   mapset.NewSet[sop.UUID](),
	}
}

// SetSourceLimit (re)configures the admission limit for source. A negative
// limit means unbounded, the default.
func (r *Registry) SetSourceLimit(source sop.Source, limit int64) {
	r.countersMu.Lock()
	defer r.countersMu.Unlock()
	sc, ok := r.counters[source]
	if !ok {
		sc = newSourceCounter(limit)
		r.counters[source] = sc
		return
	}
	sc.limit.Store(limit)
}

func (r *Registry) counterFor(source sop.Source) *sourceCounter {
	r.countersMu.Lock()
	defer r.countersMu.Unlock()
	sc, ok := r.counters[source]
	if !ok {
		sc = newSourceCounter(-1)
		r.counters[source] = sc
	}
	return sc
}

// CheckLimit reports whether source is currently under its hard admission
// limit, without mutating any counter. This is deliberately split from
// Admit so a caller can layer an additional (e.g. CEL) policy check in
// between the limit check and the counter increment, leaving counters
// untouched on any rejection (SPEC_FULL.md section 7, "Admission
// rejection"). Over-admission by concurrent racers is tolerated, bounded
// by the number of racing admitters (SPEC_FULL.md section 5), since the
// check-then-increment sequence is not a single atomic compare-and-swap.
func (r *Registry) CheckLimit(source sop.Source) (ok bool, live, limit int64) {
	sc := r.counterFor(source)
	limit = sc.limit.Load()
	live = sc.started.Load() - sc.ended.Load()
	if limit >= 0 && live >= limit {
		return false, live, limit
	}
	return true, live, limit
}

// Admit increments started and produced_total for source. Call only after
// every admission check (counter limit, optional policy) has passed.
func (r *Registry) Admit(source sop.Source) {
	r.counterFor(source).started.Add(1)
	r.producedTotal.Add(1)
}

// SourceCounts returns the (started, ended, limit) snapshot for source.
func (r *Registry) SourceCounts(source sop.Source) (started, ended, limit int64) {
	sc := r.counterFor(source)
	return sc.started.Load(), sc.ended.Load(), sc.limit.Load()
}

// Insert adds n to the live transaction table keyed by tid. Called once
// per successful Start or ReplayCommit.
func (r *Registry) Insert(tid sop.UUID, n node.Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transTable[tid] = n
}

// Get returns the node registered under tid, if any.
func (r *Registry) Get(tid sop.UUID) (node.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.transTable[tid]
	return n, ok
}

// Remove deletes tid from the table and increments ended/consumed_total
// for its source. Called only from Finish on a permitted status.
func (r *Registry) Remove(tid sop.UUID, source sop.Source) {
	r.mu.Lock()
	delete(r.transTable, tid)
	r.mu.Unlock()

	r.counterFor(source).ended.Add(1)
	r.consumedTotal.Add(1)
}

// TransactionLen returns the number of live (registered) transactions.
func (r *Registry) TransactionLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.transTable)
}

// Transactions returns a snapshot of every tid currently registered, for
// operator inspection via the API surface.
func (r *Registry) Transactions() []sop.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tids := make([]sop.UUID, 0, len(r.transTable))
	for tid := range r.transTable {
		tids = append(tids, tid)
	}
	return tids
}

// MarkFatal records tid as having reached CommitFailed/RollbackFailed.
func (r *Registry) MarkFatal(tid sop.UUID) {
	r.fatalSet.Add(tid)
}

// ClearFatal removes tid from the fatal ledger; ReplayCommit calls it when a
// replay-driven recommit drives tid to Commited.
func (r *Registry) ClearFatal(tid sop.UUID) {
	r.fatalSet.Remove(tid)
}

// FatalTransactions returns a snapshot of every tid currently marked
// fatal, for operator inspection via the API surface.
func (r *Registry) FatalTransactions() []sop.UUID {
	return r.fatalSet.ToSlice()
}

func (r *Registry) incPrepareProduced() { r.prepareProduced.Add(1) }
func (r *Registry) incPrepareConsumed() { r.prepareConsumed.Add(1) }
func (r *Registry) incCommitProduced()  { r.commitProduced.Add(1) }
func (r *Registry) incCommitConsumed()  { r.commitConsumed.Add(1) }

// Counters returns a snapshot of the manager's global atomics.
type Counters struct {
	PrepareProduced int64
	PrepareConsumed int64
	CommitProduced  int64
	CommitConsumed  int64
	ProducedTotal   int64
	ConsumedTotal   int64
}

// Snapshot returns the current global counters.
func (r *Registry) Snapshot() Counters {
	return Counters{
		PrepareProduced: r.prepareProduced.Load(),
		PrepareConsumed: r.prepareConsumed.Load(),
		CommitProduced:  r.commitProduced.Load(),
		CommitConsumed:  r.commitConsumed.Load(),
		ProducedTotal:   r.producedTotal.Load(),
		ConsumedTotal:   r.consumedTotal.Load(),
	}
}
