package wheel

import (
	"sort"
	"testing"
)

// TestWheelOrdering reproduces the scenario embedded in the original Rust
// wheel's own test (original_source/wheel/src/lib.rs) and restated in
// SPEC_FULL.md section 8: a Wheel[int] with N0=10, N=3, L=2 (max_time=90)
// seeded with a fixed set of timeouts must pop items back out in
// non-decreasing timeout order (each item's payload equals its original
// timeout, so the assertion is that Pop()'s payload equals the current
// roll count), with mid-stream insertions at roll-count 18 landing at
// roll-counts 32 and 47.
func TestWheelOrdering(t *testing.T) {
	seed := []int{0, 1, 10, 6, 4, 4, 4, 5, 3, 7, 2, 15, 18, 21, 26, 31, 39, 41, 8, 79, 89}

	w := New[int](10, 3, 2)
	if got := w.MaxTime(); got != 90 {
		t.Fatalf("MaxTime() = %d, want 90", got)
	}

	for _, v := range seed {
		if _, ok := w.Push(NewTimeoutItem(v, v)); !ok {
			t.Fatalf("push(%d) unexpectedly overflowed", v)
		}
	}

	sorted := append([]int(nil), seed...)
	sort.Ints(sorted)

	c := 0
	for len(sorted) > 0 {
		if it, ok := w.Pop(); ok {
			want := sorted[0]
			sorted = sorted[1:]
			if it.El != want {
				t.Fatalf("Pop() = %d, want %d (roll count %d)", it.El, want, c)
			}
			if it.El != c {
				t.Fatalf("Pop() = %d, want roll count %d", it.El, c)
			}
			if it.El == 18 {
				sorted = append(sorted, 32, 47)
				sort.Ints(sorted)
				if _, ok := w.Push(NewTimeoutItem(14, 32)); !ok {
					t.Fatalf("push(14, 32) unexpectedly overflowed")
				}
				if _, ok := w.Push(NewTimeoutItem(29, 47)); !ok {
					t.Fatalf("push(29, 47) unexpectedly overflowed")
				}
			}
		} else {
			w.Roll()
			c++
			if c%10 == 0 && c < 60 {
				sorted = append(sorted, c*2+2)
				sort.Ints(sorted)
				if _, ok := w.Push(NewTimeoutItem(c+2, c*2+2)); !ok {
					t.Fatalf("push(%d, %d) unexpectedly overflowed", c+2, c*2+2)
				}
			}
		}
	}
}

// TestWheelOverflow checks that a timeout at exactly MaxTime() is handed
// back to the caller rather than silently truncated or wrapped.
func TestWheelOverflow(t *testing.T) {
	w := New[string](10, 3, 2)
	it, ok := w.Push(NewTimeoutItem(90, "overflow"))
	if ok {
		t.Fatalf("push(90) should overflow, got ok=true")
	}
	if it.El != "overflow" {
		t.Fatalf("overflowed item payload = %q, want %q", it.El, "overflow")
	}
}

// TestWheelLIFOWithinSlot documents that a slot's pop order is LIFO: the
// most recently pushed item for a given timeout comes back first.
func TestWheelLIFOWithinSlot(t *testing.T) {
	w := New[int](10, 3, 2)
	w.Push(NewTimeoutItem(5, 1))
	w.Push(NewTimeoutItem(5, 2))
	w.Push(NewTimeoutItem(5, 3))

	for i := 0; i < 5; i++ {
		w.Roll()
	}

	var got []int
	for {
		it, ok := w.Pop()
		if !ok {
			break
		}
		got = append(got, it.El)
	}
	want := []int{3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// TestRollCount sanity-checks roll_count's derivation against a simple
// multi-layer cascade.
func TestRollCount(t *testing.T) {
	w := New[int](10, 3, 2)
	if w.RollCount() != 0 {
		t.Fatalf("RollCount() = %d, want 0", w.RollCount())
	}
	for i := 0; i < 10; i++ {
		w.Roll()
	}
	if w.RollCount() != 10 {
		t.Fatalf("RollCount() after 10 rolls = %d, want 10", w.RollCount())
	}
}
