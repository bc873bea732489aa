package wheel

import (
	"context"
	"time"

	"github.com/viney-shih/go-lock"
)

// Fire is delivered to a Scheduler's callback when a scheduled item's
// timeout elapses.
type Fire[T any] struct {
	El T
}

// Scheduler drives a Wheel with a time.Ticker and external synchronization,
// since Wheel itself is single-threaded (SPEC_FULL.md section 4.9). The
// manager does not use a Scheduler itself; cmd/coordinator runs one whose
// callback, for each fired entry, injects the ActionFailed/PrepareFailed
// status described in SPEC_FULL.md section 5 ("Cancellation") and invokes
// Rollback. An item scheduled with a timeout of k ticks fires on
// the (k+1)th tick after Schedule, because each tick drains the current
// slot before rolling.
type Scheduler[T any] struct {
	mu    lock.Mutex
	wheel *Wheel[T]
	tick  time.Duration
	onFire func(Fire[T])
}

// NewScheduler constructs a Scheduler over a fresh Wheel(n0, n, l), firing
// onFire for every item whose timeout elapses.
func NewScheduler[T any](n0, n, l int, tick time.Duration, onFire func(Fire[T])) *Scheduler[T] {
	return &Scheduler[T]{
		mu:     lock.NewCASMutex(),
		wheel:  New[T](n0, n, l),
		tick:   tick,
		onFire: onFire,
	}
}

// Schedule places el on the wheel to fire after the given number of ticks.
// It reports whether the timeout was within the wheel's max_time; on
// overflow the caller must pick a coarser-grained wheel or split the wait.
func (s *Scheduler[T]) Schedule(ticks int, el T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.wheel.Push(NewTimeoutItem(ticks, el))
	return ok
}

// Run drives the scheduler until ctx is done, rolling the wheel once per
// tick and draining the current slot into onFire before each roll.
func (s *Scheduler[T]) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.advance()
		}
	}
}

func (s *Scheduler[T]) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		it, ok := s.wheel.Pop()
		if !ok {
			break
		}
		if s.onFire != nil {
			s.onFire(Fire[T]{El: it.El})
		}
	}
	s.wheel.Roll()
}
