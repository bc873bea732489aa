// Package wheel implements the hierarchical timing wheel described in
// SPEC_FULL.md section 4.9, ported from the const-generic Rust
// Wheel<T, N0, N, L> in original_source/wheel/src/lib.rs. Go generics have
// no const type parameters, so N0/N/L become ordinary runtime fields set
// at construction instead of compile-time constants; the push/pop/roll
// arithmetic is otherwise a direct, line-for-line translation.
package wheel

// TimeoutItem is one scheduled entry: Timeout counts ticks until fire, and
// El carries the caller's payload.
type TimeoutItem[T any] struct {
	Timeout int
	El      T
}

// NewTimeoutItem constructs a TimeoutItem.
func NewTimeoutItem[T any](timeout int, el T) TimeoutItem[T] {
	return TimeoutItem[T]{Timeout: timeout, El: el}
}

// Wheel is a hierarchical timing wheel: a first layer of N0 slots and L
// further layers of N slots each. Slots are LIFO (pop returns the most
// recently pushed item in that slot) — callers that need FIFO ordering
// within a tick must provide it themselves; the wheel does not.
//
// A Wheel is single-threaded; concurrent access requires external
// synchronization (see Scheduler in this package).
type Wheel[T any] struct {
	n0 int
	n  int
	l  int

	layer0 [][]TimeoutItem[T]   // [n0]
	layers [][][]TimeoutItem[T] // [l][n]

	index  int
	indexs []int // [l]
}

// New constructs a Wheel with first-layer slot count n0, later-layer slot
// count n, and l later layers.
func New[T any](n0, n, l int) *Wheel[T] {
	w := &Wheel[T]{n0: n0, n: n, l: l}
	w.layer0 = make([][]TimeoutItem[T], n0)
	w.layers = make([][][]TimeoutItem[T], l)
	for i := range w.layers {
		w.layers[i] = make([][]TimeoutItem[T], n)
	}
	w.indexs = make([]int, l)
	return w
}

func ipow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}

// RollCount returns the cumulative number of ticks this wheel has rolled.
func (w *Wheel[T]) RollCount() int {
	c := w.index
	for i := 0; i < w.l; i++ {
		c += w.indexs[i] * (w.n0 * ipow(w.n, i))
	}
	return c
}

// IsCurOver reports whether the current first-layer slot is empty.
func (w *Wheel[T]) IsCurOver() bool {
	return len(w.layer0[w.index]) == 0
}

// MaxTime returns the largest timeout this wheel can schedule: N0 * N^L.
func (w *Wheel[T]) MaxTime() int {
	return w.n0 * ipow(w.n, w.l)
}

// Push inserts it into the appropriate slot. If it.Timeout is MaxTime() or
// more, Push returns the item unchanged and ok=false so the caller can
// handle the overflow (SPEC_FULL.md section 4.9); otherwise ok=true.
func (w *Wheel[T]) Push(it TimeoutItem[T]) (overflow TimeoutItem[T], ok bool) {
	if it.Timeout < w.n0 {
		slot := (it.Timeout + w.index) % w.n0
		w.layer0[slot] = append(w.layer0[slot], it)
		return TimeoutItem[T]{}, true
	}

	fix := w.index
	for i := 0; i < w.l; i++ {
		t := w.n0 * ipow(w.n, i)
		if it.Timeout < t*w.n {
			it.Timeout = (it.Timeout + fix + w.indexs[i]*t) % (t * w.n)
			slot := it.Timeout / t
			w.layers[i][slot] = append(w.layers[i][slot], it)
			return TimeoutItem[T]{}, true
		}
		fix += w.indexs[i] * t
	}
	return it, false
}

// Pop removes and returns the most recently pushed item in the current
// first-layer slot, or ok=false if that slot is empty.
func (w *Wheel[T]) Pop() (it TimeoutItem[T], ok bool) {
	slot := w.layer0[w.index]
	if len(slot) == 0 {
		return TimeoutItem[T]{}, false
	}
	last := len(slot) - 1
	it = slot[last]
	w.layer0[w.index] = slot[:last]
	return it, true
}

func popLast[T any](slots [][]TimeoutItem[T], idx int) (TimeoutItem[T], bool) {
	slot := slots[idx]
	if len(slot) == 0 {
		return TimeoutItem[T]{}, false
	}
	last := len(slot) - 1
	it := slot[last]
	slots[idx] = slot[:last]
	return it, true
}

// Roll advances the wheel by one tick, cascading carries into higher
// layers and re-inserting their contents into lower layers as needed. It
// returns true exactly when the highest layer wraps back to zero, i.e.
// the wheel has fully rolled over.
func (w *Wheel[T]) Roll() bool {
	if w.index < w.n0-1 {
		w.index++
		return false
	}
	w.index = 0

	w.indexs[0] = (w.indexs[0] + 1) % w.n
	for {
		it, ok := popLast(w.layers[0], w.indexs[0])
		if !ok {
			break
		}
		it.Timeout -= w.n0 * w.indexs[0]
		w.layer0[it.Timeout] = append(w.layer0[it.Timeout], it)
	}
	if w.indexs[0] > 0 {
		return false
	}

	for i := 1; i < w.l; i++ {
		w.indexs[i] = (w.indexs[i] + 1) % w.n
		for {
			it, ok := popLast(w.layers[i], w.indexs[i])
			if !ok {
				break
			}
			it.Timeout -= w.n0 * ipow(w.n, i) * w.indexs[i]
			w.Push(it)
		}
		if w.indexs[i] > 0 {
			return false
		}
	}
	return true
}
