package timers

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler() (*Scheduler, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewScheduler(clock), clock
}

func TestAfter_FiresOnceWhenDue(t *testing.T) {
	s, clock := newTestScheduler()
	calls := 0
	s.Root().After(time.Second, func(time.Time) { calls++ })

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 0, s.Fire(clock.Now()))

	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, s.Fire(clock.Now()))

	clock.Advance(time.Hour)
	assert.Equal(t, 0, s.Fire(clock.Now()))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, s.Pending())
}

func TestFire_RunsInDeadlineOrder(t *testing.T) {
	s, clock := newTestScheduler()
	var order []string
	s.Root().After(3*time.Second, func(time.Time) { order = append(order, "c") })
	s.Root().After(time.Second, func(time.Time) { order = append(order, "a") })
	s.Root().After(2*time.Second, func(time.Time) { order = append(order, "b") })

	clock.Advance(5 * time.Second)
	s.Fire(clock.Now())
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestEvery_SkipsMissedTicks(t *testing.T) {
	s, clock := newTestScheduler()
	calls := 0
	h := s.Root().Every(time.Second, func(time.Time) { calls++ })

	clock.Advance(3500 * time.Millisecond)
	s.Fire(clock.Now())
	assert.Equal(t, 1, calls)

	clock.Advance(500 * time.Millisecond)
	s.Fire(clock.Now())
	assert.Equal(t, 2, calls)

	assert.True(t, h.Stop())
	clock.Advance(10 * time.Second)
	s.Fire(clock.Now())
	assert.Equal(t, 2, calls)
}

func TestScopeClose_CancelsChildren(t *testing.T) {
	s, clock := newTestScheduler()
	room := s.Root().Child("room")
	game := room.Child("game")

	fired := 0
	room.After(time.Second, func(time.Time) { fired++ })
	game.Every(time.Second, func(time.Time) { fired++ })
	s.Root().After(time.Second, func(time.Time) { fired += 10 })
	require.Equal(t, 3, s.Pending())

	room.Close()
	assert.True(t, game.Closed())
	assert.Equal(t, 1, s.Pending())

	clock.Advance(2 * time.Second)
	s.Fire(clock.Now())
	assert.Equal(t, 10, fired)

	// closed scopes arm nothing
	h := room.After(time.Second, func(time.Time) { fired++ })
	assert.False(t, h.Active())
	assert.True(t, room.Child("late").Closed())
}

func TestFire_CallbackCancellingLaterTimer(t *testing.T) {
	s, clock := newTestScheduler()
	sc := s.Root().Child("negotiation")
	ran := false

	s.Root().After(time.Second, func(time.Time) { sc.Close() })
	sc.After(2*time.Second, func(time.Time) { ran = true })

	clock.Advance(3 * time.Second)
	assert.Equal(t, 1, s.Fire(clock.Now()))
	assert.False(t, ran)
}

func TestScopeReset_KeepsScopeOpen(t *testing.T) {
	s, clock := newTestScheduler()
	sc := s.Root().Child("typing")
	sc.After(time.Second, func(time.Time) {})
	sc.Reset()
	assert.Equal(t, 0, s.Pending())
	assert.False(t, sc.Closed())

	fired := false
	sc.After(time.Second, func(time.Time) { fired = true })
	clock.Advance(time.Second)
	s.Fire(clock.Now())
	assert.True(t, fired)
}

func TestNextDue(t *testing.T) {
	s, clock := newTestScheduler()
	_, ok := s.NextDue()
	assert.False(t, ok)

	s.Root().After(5*time.Second, func(time.Time) {})
	s.Root().After(2*time.Second, func(time.Time) {})
	next, ok := s.NextDue()
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(2*time.Second), next)
}
