package timers

import "time"

// Scope groups timers with the resource that owns them (a room, a pending
// negotiation, a call). Closing a scope cancels its timers and those of every
// child scope; a closed scope arms nothing.
type Scope struct {
	name     string
	sched    *Scheduler
	parent   *Scope
	children map[*Scope]struct{}
	timers   map[uint64]struct{}
	closed   bool
}

func newScope(s *Scheduler, parent *Scope, name string) *Scope {
	return &Scope{
		name:     name,
		sched:    s,
		parent:   parent,
		children: make(map[*Scope]struct{}),
		timers:   make(map[uint64]struct{}),
	}
}

func (sc *Scope) Name() string { return sc.name }
func (sc *Scope) Closed() bool { return sc.closed }
func (sc *Scope) Pending() int { return len(sc.timers) }

// Child opens a nested scope. Children of a closed scope start closed.
func (sc *Scope) Child(name string) *Scope {
	c := newScope(sc.sched, sc, name)
	if sc.closed {
		c.closed = true
		return c
	}
	sc.children[c] = struct{}{}
	return c
}

// After runs fn once, d from now.
func (sc *Scope) After(d time.Duration, fn func(now time.Time)) Handle {
	if sc.closed {
		return Handle{}
	}
	return sc.sched.add(sc, d, 0, fn)
}

// Every runs fn each interval until cancelled.
func (sc *Scope) Every(interval time.Duration, fn func(now time.Time)) Handle {
	if sc.closed || interval <= 0 {
		return Handle{}
	}
	return sc.sched.add(sc, interval, interval, fn)
}

// Reset cancels everything armed in the scope and its children but keeps the
// scope open.
func (sc *Scope) Reset() {
	for c := range sc.children {
		c.Close()
	}
	for id := range sc.timers {
		if e, ok := sc.sched.entries[id]; ok {
			sc.sched.remove(e)
		}
	}
}

func (sc *Scope) Close() {
	if sc.closed {
		return
	}
	sc.Reset()
	sc.closed = true
	if sc.parent != nil {
		delete(sc.parent.children, sc)
	}
}
