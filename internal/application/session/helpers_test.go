package session

import (
	"testing"
	"time"

	"github.com/hilthontt/lounge/internal/application/game"
	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/hilthontt/lounge/internal/infrastructure/timers"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var (
	alice = domain.Peer{ID: "alice", Name: "Alice", Gender: domain.GenderFemale, Age: 30}
	bob   = domain.Peer{ID: "bob", Name: "Bob", Gender: domain.GenderMale, Age: 31}
	carol = domain.Peer{ID: "carol", Name: "Carol", Gender: domain.GenderFemale, Age: 25}
)

type recordingSink struct {
	sent []domain.Command
	fail map[string]error
}

func (s *recordingSink) Send(cmd domain.Command) error {
	if err := s.fail[cmd.Name]; err != nil {
		return err
	}
	s.sent = append(s.sent, cmd)
	return nil
}

func (s *recordingSink) names() []string {
	out := make([]string, 0, len(s.sent))
	for _, c := range s.sent {
		out = append(out, c.Name)
	}
	return out
}

func (s *recordingSink) last() domain.Command {
	if len(s.sent) == 0 {
		return domain.Command{}
	}
	return s.sent[len(s.sent)-1]
}

func (s *recordingSink) reset() { s.sent = nil }

type memoryStore struct {
	id    *domain.Identity
	saves int
}

func (m *memoryStore) Load() (domain.Identity, bool, error) {
	if m.id == nil {
		return domain.Identity{}, false, nil
	}
	return *m.id, true, nil
}

func (m *memoryStore) Save(id domain.Identity) error {
	m.id = &id
	m.saves++
	return nil
}

func (m *memoryStore) Clear() error {
	m.id = nil
	return nil
}

type harness struct {
	clock *clockwork.FakeClock
	sched *timers.Scheduler
	sink  *recordingSink
	c     *Coordinator
}

func testConfig() Config {
	return Config{
		TypingIdle:     1500 * time.Millisecond,
		NoticeTTL:      3 * time.Second,
		RequestTimeout: 30 * time.Second,
		Cooldown:       5 * time.Minute,
		CallTimeout:    45 * time.Second,
		LogCapacity:    50,
		Game:           game.Config{StrokeRate: 60, StrokeBurst: 20},
	}
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		clock: clockwork.NewFakeClockAt(time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)),
		sink:  &recordingSink{fail: map[string]error{}},
	}
	h.sched = timers.NewScheduler(h.clock)
	h.c = NewCoordinator(testConfig(), h.sched, h.sink, logging.NewNopLogger(), opts...)
	return h
}

// login connects as alice, submits her profile and loads a user list.
func (h *harness) login(t *testing.T) {
	t.Helper()
	h.c.Dispatch(domain.Connected{SelfID: alice.ID})
	out := h.c.Submit(domain.SubmitIdentity{Nickname: alice.Name, Gender: alice.Gender, Age: alice.Age})
	require.True(t, out.IsApplied())
	h.c.Dispatch(domain.UserList{Peers: []domain.Peer{alice, bob, carol}})
	h.sink.reset()
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.c.Tick(h.clock.Now())
}

// openPrivateWith establishes a private room with peer through an accepted
// incoming request.
func (h *harness) openPrivateWith(t *testing.T, peer domain.Peer) {
	t.Helper()
	h.c.Dispatch(domain.PrivateRequestIncoming{From: domain.Peer{ID: peer.ID}})
	out := h.c.Submit(domain.AcceptPrivate{PeerID: peer.ID})
	require.True(t, out.IsApplied())
	require.True(t, h.c.State().Room.IsPrivate())
	h.sink.reset()
}

// stateOf drops the version so snapshots taken around a no-op compare equal.
func stateOf(c *Coordinator) State {
	st := c.State()
	st.Version = 0
	return st
}

type fakeStream struct {
	id       string
	released int
}

func (s *fakeStream) ID() string { return s.id }
func (s *fakeStream) Release()   { s.released++ }
