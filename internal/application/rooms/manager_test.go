package rooms

import (
	"testing"
	"time"

	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/hilthontt/lounge/internal/infrastructure/timers"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures the calls the manager makes into its collaborators in the
// order they happen, interleaved with the commands it returns.
type recorder struct {
	steps []string
	scope *timers.Scope
}

func (r *recorder) Enter(room domain.Room, scope *timers.Scope) {
	r.steps = append(r.steps, "enter:"+room.ID)
	r.scope = scope
}

func (r *recorder) Teardown() { r.steps = append(r.steps, "teardown") }

func (r *recorder) ResetRoom() domain.Outcome {
	r.steps = append(r.steps, "reset")
	return domain.Outcome{}
}

func newManager(t *testing.T) (*Manager, *recorder, *timers.Scheduler, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	sched := timers.NewScheduler(clock)
	rec := &recorder{}
	return NewManager(sched.Root(), rec, rec, 10, logging.NewNopLogger()), rec, sched, clock
}

func cmdNames(cmds []domain.Command) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Name+"@"+c.RoomID)
	}
	return out
}

func TestSwitchTo_SameRoomIsNoop(t *testing.T) {
	m, rec, _, _ := newManager(t)
	out := m.SwitchTo(domain.PublicRoom())
	assert.Equal(t, domain.OutcomeIgnored, out.Kind)
	assert.Empty(t, out.Commands)
	assert.Empty(t, rec.steps)
}

func TestSwitchTo_IntoGameRoom(t *testing.T) {
	m, rec, _, _ := newManager(t)
	game := domain.GameRoom("g1", "game-1", domain.VariantDoodle, "")

	out := m.SwitchTo(game)
	require.True(t, out.IsApplied())
	assert.Equal(t, []string{"join room@g1", "game:request_state@g1"}, cmdNames(out.Commands))
	assert.Equal(t, []string{"reset", "enter:g1"}, rec.steps)
	assert.Equal(t, "g1", m.Current().ID)
}

func TestSwitchTo_OutOfGameRoomLeavesFirst(t *testing.T) {
	m, rec, _, _ := newManager(t)
	m.SwitchTo(domain.GameRoom("g1", "game-1", domain.VariantHangman, ""))
	rec.steps = nil

	out := m.SwitchTo(domain.PublicRoom())
	assert.Equal(t, []string{"game:leave@g1", "join room@public"}, cmdNames(out.Commands))
	assert.Equal(t, []string{"teardown", "reset"}, rec.steps)
}

func TestEvict_DoesNotLeaveGame(t *testing.T) {
	m, rec, _, _ := newManager(t)
	m.SwitchTo(domain.GameRoom("g1", "game-1", domain.VariantDoodle, ""))
	rec.steps = nil

	out := m.Evict(domain.PublicRoom())
	assert.Equal(t, []string{"join room@public"}, cmdNames(out.Commands))
	assert.Equal(t, []string{"teardown", "reset"}, rec.steps)

	again := m.Evict(domain.PublicRoom())
	assert.Equal(t, domain.OutcomeIgnored, again.Kind)
}

func TestSwitchTo_CancelsRoomTimers(t *testing.T) {
	m, rec, sched, clock := newManager(t)
	m.SwitchTo(domain.GameRoom("g1", "game-1", domain.VariantDoodle, ""))

	updates := 0
	m.Scope().Every(time.Second, func(time.Time) { updates++ })
	rec.scope.Every(time.Second, func(time.Time) { updates++ })
	clock.Advance(time.Second)
	sched.Fire(clock.Now())
	require.Equal(t, 2, updates)

	m.SwitchTo(domain.PublicRoom())
	assert.Equal(t, 0, sched.Pending())

	clock.Advance(10 * time.Second)
	sched.Fire(clock.Now())
	assert.Equal(t, 2, updates)
}

func TestSwitchTo_ClearsLog(t *testing.T) {
	m, _, _, _ := newManager(t)
	m.Append(domain.Message{ID: "m1", RoomID: "public", Text: "hi"})
	require.Len(t, m.Messages(), 1)

	m.SwitchTo(domain.PrivateRoom("a", domain.Peer{ID: "b"}))
	assert.Empty(t, m.Messages())
}

func TestRejoin(t *testing.T) {
	m, _, _, _ := newManager(t)
	assert.Equal(t, []string{"join room@public"}, cmdNames(m.Rejoin().Commands))

	m.SwitchTo(domain.GameRoom("g1", "game-1", domain.VariantDoodle, ""))
	assert.Equal(t, []string{"join room@g1", "game:request_state@g1"}, cmdNames(m.Rejoin().Commands))
}

func TestReset_ReturnsToPublicSilently(t *testing.T) {
	m, rec, sched, _ := newManager(t)
	m.SwitchTo(domain.GameRoom("g1", "game-1", domain.VariantDoodle, ""))
	m.Scope().After(time.Second, func(time.Time) {})

	m.Reset()
	assert.True(t, m.Current().IsPublic())
	assert.Contains(t, rec.steps, "teardown")
	assert.Equal(t, 0, sched.Pending())

	m.Reset()
	assert.True(t, m.Current().IsPublic())
}
