package negotiation

import (
	"time"

	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/timers"
	"github.com/jonboulle/clockwork"
)

type env struct {
	clock   *clockwork.FakeClock
	sched   *timers.Scheduler
	emitted []domain.Outcome
}

func newEnv() *env {
	e := &env{clock: clockwork.NewFakeClockAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))}
	e.sched = timers.NewScheduler(e.clock)
	return e
}

func (e *env) emit(o domain.Outcome) { e.emitted = append(e.emitted, o) }

func (e *env) advance(d time.Duration) {
	e.clock.Advance(d)
	e.sched.Fire(e.clock.Now())
}

func commandNames(cmds []domain.Command) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Name)
	}
	return out
}

type fakeStream struct {
	id       string
	released int
}

func (s *fakeStream) ID() string { return s.id }
func (s *fakeStream) Release()   { s.released++ }
