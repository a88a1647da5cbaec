package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/orchestratord/oj/internal/clock"
)

// Scheduler is an in-memory, single-process timer heap. All methods are
// safe for concurrent use, but the engine only ever calls them from the
// event loop goroutine per the single-writer contract in internal/loop.
type Scheduler struct {
	mu    sync.Mutex
	clock clock.Clock
	byID  map[ID]*entry
	heap  timerHeap
}

// New builds a Scheduler that reads the current time from c.
func New(c clock.Clock) *Scheduler {
	return &Scheduler{
		clock: c,
		byID:  make(map[ID]*entry),
	}
}

// Set arms (or re-arms) the timer named id to fire at deadline. Set is
// idempotent: calling it again with the same id simply replaces the
// previous deadline rather than creating a second timer.
func (s *Scheduler) Set(id ID, deadline time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byID[id]; ok {
		e.deadline = deadline
		heap.Fix(&s.heap, e.index)
		return
	}
	e := &entry{id: id, deadline: deadline}
	s.byID[id] = e
	heap.Push(&s.heap, e)
}

// After is sugar for Set(id, now+d).
func (s *Scheduler) After(id ID, d time.Duration) {
	s.Set(id, s.clock.Now().Add(d))
}

// Cancel removes the timer named id, if armed. Canceling an unknown id is
// a no-op.
func (s *Scheduler) Cancel(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.byID[id]
	if !ok {
		return
	}
	heap.Remove(&s.heap, e.index)
	delete(s.byID, id)
}

// Pending reports whether id is currently armed.
func (s *Scheduler) Pending(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[id]
	return ok
}

// Drain pops every timer whose deadline has passed as of now and returns
// their ids in deadline order, removing them from the heap. The loop
// calls this once per tick and emits a timer:start event per id.
func (s *Scheduler) Drain(now time.Time) []ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fired []ID
	for s.heap.Len() > 0 && !s.heap[0].deadline.After(now) {
		e := heap.Pop(&s.heap).(*entry)
		delete(s.byID, e.id)
		fired = append(fired, e.id)
	}
	return fired
}

// Len reports the number of armed timers, mostly for tests.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heap.Len()
}

// Run ticks every DefaultTick, calling fire with the ids that drained at
// each tick, until ctx (passed via stop) is closed. The loop typically
// drives Drain itself off its own select statement instead; Run exists
// for callers that want a standalone ticker.
func (s *Scheduler) Run(stop <-chan struct{}, fire func([]ID)) {
	t := time.NewTicker(DefaultTick)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			if ids := s.Drain(now); len(ids) > 0 {
				fire(ids)
			}
		case <-stop:
			return
		}
	}
}
