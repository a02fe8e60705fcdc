package timers

import (
	"cmp"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler owns every pending timer of a session. It never starts goroutines:
// due timers run inside Fire, which the owning loop calls on each tick. It is
// not safe for concurrent use.
type Scheduler struct {
	clock   clockwork.Clock
	entries map[uint64]*entry
	nextID  uint64
	root    *Scope
}

type entry struct {
	id    uint64
	scope *Scope
	due   time.Time
	every time.Duration
	fn    func(now time.Time)
}

func NewScheduler(clock clockwork.Clock) *Scheduler {
	s := &Scheduler{
		clock:   clock,
		entries: make(map[uint64]*entry),
	}
	s.root = newScope(s, nil, "root")
	return s
}

func (s *Scheduler) Clock() clockwork.Clock { return s.clock }
func (s *Scheduler) Now() time.Time         { return s.clock.Now() }
func (s *Scheduler) Root() *Scope           { return s.root }
func (s *Scheduler) Pending() int           { return len(s.entries) }

// NextDue reports the earliest pending deadline.
func (s *Scheduler) NextDue() (time.Time, bool) {
	var (
		next  time.Time
		found bool
	)
	for _, e := range s.entries {
		if !found || e.due.Before(next) {
			next, found = e.due, true
		}
	}
	return next, found
}

// Fire runs every timer due at or before now in deadline order and returns
// how many ran. Timers armed by a callback are not run in the same call.
func (s *Scheduler) Fire(now time.Time) int {
	due := make([]*entry, 0)
	for _, e := range s.entries {
		if !e.due.After(now) {
			due = append(due, e)
		}
	}
	slices.SortFunc(due, func(a, b *entry) int {
		if c := a.due.Compare(b.due); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	fired := 0
	for _, e := range due {
		// an earlier callback may have cancelled it
		if _, ok := s.entries[e.id]; !ok {
			continue
		}
		if e.every > 0 {
			for !e.due.After(now) {
				e.due = e.due.Add(e.every)
			}
		} else {
			s.remove(e)
		}
		e.fn(now)
		fired++
	}
	return fired
}

func (s *Scheduler) add(sc *Scope, d, every time.Duration, fn func(time.Time)) Handle {
	s.nextID++
	e := &entry{
		id:    s.nextID,
		scope: sc,
		due:   s.clock.Now().Add(d),
		every: every,
		fn:    fn,
	}
	s.entries[e.id] = e
	sc.timers[e.id] = struct{}{}
	return Handle{id: e.id, sched: s}
}

func (s *Scheduler) remove(e *entry) {
	delete(s.entries, e.id)
	delete(e.scope.timers, e.id)
}

// Handle cancels a single timer. The zero Handle is valid and inert.
type Handle struct {
	id    uint64
	sched *Scheduler
}

// Stop cancels the timer and reports whether it was still pending.
func (h Handle) Stop() bool {
	if h.sched == nil {
		return false
	}
	e, ok := h.sched.entries[h.id]
	if !ok {
		return false
	}
	h.sched.remove(e)
	return true
}

func (h Handle) Active() bool {
	if h.sched == nil {
		return false
	}
	_, ok := h.sched.entries[h.id]
	return ok
}
