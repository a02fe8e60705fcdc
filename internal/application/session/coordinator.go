package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/hilthontt/lounge/internal/application/activity"
	"github.com/hilthontt/lounge/internal/application/game"
	"github.com/hilthontt/lounge/internal/application/negotiation"
	"github.com/hilthontt/lounge/internal/application/presence"
	"github.com/hilthontt/lounge/internal/application/rooms"
	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/hilthontt/lounge/internal/infrastructure/timers"
)

var ErrNotConnected = errors.New("transport not connected")

// CommandSink delivers commands to the server. Send must not block for long;
// the coordinator calls it from its own loop.
type CommandSink interface {
	Send(cmd domain.Command) error
}

// IdentityStore keeps the profile between runs so a quick restart does not ask
// for it again.
type IdentityStore interface {
	Load() (domain.Identity, bool, error)
	Save(id domain.Identity) error
	Clear() error
}

// Metrics observes what the coordinator handled and sent.
type Metrics interface {
	Handled(kind, name string, outcome domain.OutcomeKind)
	Sent(command string, err error)
	MediaTask(kind string, err error, took time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) Handled(string, string, domain.OutcomeKind) {}
func (nopMetrics) Sent(string, error)                         {}
func (nopMetrics) MediaTask(string, error, time.Duration)     {}

type Config struct {
	TypingIdle     time.Duration
	NoticeTTL      time.Duration
	RequestTimeout time.Duration
	Cooldown       time.Duration
	CallTimeout    time.Duration
	LogCapacity    int
	Game           game.Config
}

type Option func(*Coordinator)

func WithIdentityStore(s IdentityStore) Option { return func(c *Coordinator) { c.store = s } }
func WithMetrics(m Metrics) Option             { return func(c *Coordinator) { c.metrics = m } }

// Coordinator is the single owner of session state. Transport events, user
// intents and timer expiries all enter through it, one at a time, and every
// one of them yields an Outcome. It is not safe for concurrent use; Runner
// serializes access to it.
type Coordinator struct {
	cfg     Config
	logger  logging.Logger
	sched   *timers.Scheduler
	sink    CommandSink
	store   IdentityStore
	metrics Metrics

	identity  *domain.Identity
	selfID    string
	connected bool

	roster   *presence.Roster
	rooms    *rooms.Manager
	game     *game.Machine
	activity *activity.Tracker
	private  *negotiation.PrivateChat
	calls    *negotiation.Calls

	notice      *domain.Notice
	noticeScope *timers.Scope
	joinScope   *timers.Scope

	tasks        []domain.MediaTask
	observers    map[int]func(State)
	nextObserver int
	dirty        bool
	version      uint64
}

func NewCoordinator(cfg Config, sched *timers.Scheduler, sink CommandSink, logger logging.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:       cfg,
		logger:    logger,
		sched:     sched,
		sink:      sink,
		metrics:   nopMetrics{},
		observers: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}

	root := sched.Root()
	c.roster = presence.NewRoster()
	c.game = game.NewMachine(cfg.Game, c.absorb, logger)
	c.activity = activity.NewTracker(cfg.TypingIdle, c.absorb, logger)
	c.rooms = rooms.NewManager(root, c.game, c.activity, cfg.LogCapacity, logger)
	c.private = negotiation.NewPrivateChat(root, c.absorb, cfg.RequestTimeout, cfg.Cooldown, logger)
	c.calls = negotiation.NewCalls(root, c.absorb, cfg.CallTimeout, logger)
	c.noticeScope = root.Child("notice")
	c.joinScope = root.Child("game-request")

	c.restoreIdentity()
	return c
}

func (c *Coordinator) restoreIdentity() {
	if c.store == nil {
		return
	}
	id, ok, err := c.store.Load()
	if err != nil {
		c.logger.Warn(logging.IO, logging.IdentityGate, "could not load cached identity", map[logging.ExtraKey]any{logging.ErrorMessage: err.Error()})
		return
	}
	if ok {
		c.identity = &id
		c.logger.Info(logging.Session, logging.IdentityGate, "restored cached identity", nil)
	}
}

func (c *Coordinator) now() time.Time { return c.sched.Now() }

// Dispatch applies one inbound event.
func (c *Coordinator) Dispatch(ev domain.Event) domain.Outcome {
	out := c.route(ev)
	c.metrics.Handled("event", ev.EventName(), out.Kind)
	if out.Kind == domain.OutcomeStale {
		c.logger.Debug(logging.Session, logging.StaleEvent, "dropped stale event", map[logging.ExtraKey]any{
			logging.EventName: ev.EventName(),
			logging.RoomID:    c.rooms.Current().ID,
		})
	}
	c.apply(out)
	c.notify()
	return out
}

// Submit applies one user intent.
func (c *Coordinator) Submit(in domain.Intent) domain.Outcome {
	out := c.handleIntent(in)
	c.metrics.Handled("intent", in.IntentName(), out.Kind)
	if out.IsRejected() {
		c.logger.Debug(logging.Session, logging.Intent, "intent rejected", map[logging.ExtraKey]any{
			logging.IntentName: in.IntentName(),
			logging.Reason:     out.Reason,
		})
	}
	c.apply(out)
	c.notify()
	return out
}

// Tick fires the timers due at now.
func (c *Coordinator) Tick(now time.Time) int {
	n := c.sched.Fire(now)
	c.notify()
	return n
}

// absorb is handed to components for outcomes produced by their timers.
func (c *Coordinator) absorb(out domain.Outcome) {
	c.apply(out)
}

func (c *Coordinator) apply(out domain.Outcome) {
	for _, cmd := range out.Commands {
		_ = c.send(cmd)
	}
	if n := len(out.Notices); n > 0 {
		c.showNotice(out.Notices[n-1])
	}
	if len(out.Tasks) > 0 {
		c.tasks = append(c.tasks, out.Tasks...)
	}
	if out.Changed || len(out.Notices) > 0 {
		c.dirty = true
	}
}

func (c *Coordinator) send(cmd domain.Command) error {
	var err error
	if c.sink == nil {
		err = ErrNotConnected
	} else {
		err = c.sink.Send(cmd)
	}
	c.metrics.Sent(cmd.Name, err)
	if err != nil {
		c.logger.Warn(logging.Transport, logging.Send, "command not delivered", map[logging.ExtraKey]any{
			logging.CommandName:  cmd.Name,
			logging.RoomID:       cmd.RoomID,
			logging.ErrorMessage: err.Error(),
		})
	}
	return err
}

func (c *Coordinator) showNotice(n domain.Notice) {
	c.noticeScope.Reset()
	c.notice = &n
	c.dirty = true
	if c.cfg.NoticeTTL <= 0 {
		return
	}
	c.noticeScope.After(c.cfg.NoticeTTL, func(time.Time) {
		c.notice = nil
		c.dirty = true
	})
}

// TakeTasks hands over the media work requested since the last call.
func (c *Coordinator) TakeTasks() []domain.MediaTask {
	tasks := c.tasks
	c.tasks = nil
	return tasks
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned func removes it.
func (c *Coordinator) Subscribe(fn func(State)) func() {
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = fn
	return func() { delete(c.observers, id) }
}

func (c *Coordinator) notify() {
	if !c.dirty {
		return
	}
	c.dirty = false
	c.version++
	if len(c.observers) == 0 {
		return
	}
	st := c.State()
	for _, fn := range c.observers {
		fn(st)
	}
}

// Reset returns the session to its initial state: no identity, public room,
// nothing pending. Held media is released. Calling it again changes nothing.
func (c *Coordinator) Reset() {
	c.tasks = append(c.tasks, c.calls.Reset().Tasks...)
	c.private.Reset()
	c.rooms.Reset()
	c.game.Teardown()
	c.settleGameRequest()
	c.activity.Reset()
	c.roster.Reset()
	c.noticeScope.Reset()
	c.notice = nil
	c.identity = nil
	c.selfID = ""
	c.connected = false
	c.dirty = true
	c.notify()
}

func (c *Coordinator) peer(id string) domain.Peer {
	if p, ok := c.roster.Get(id); ok {
		return p
	}
	return domain.Peer{ID: id}
}

func (c *Coordinator) route(ev domain.Event) domain.Outcome {
	if rs, ok := ev.(domain.RoomScoped); ok && rs.Room() != "" && !c.rooms.IsCurrent(rs.Room()) {
		return c.offRoom(rs)
	}

	switch e := ev.(type) {
	case domain.Connected:
		return c.onConnected(e)
	case domain.Disconnected:
		return c.onDisconnected(e)
	case domain.UserList:
		return c.onUserList(e)
	case domain.RoomHistory:
		return c.rooms.ReplaceHistory(e.Messages)
	case domain.ChatMessage:
		return c.onChatMessage(e)
	case domain.TypingStarted:
		if e.PeerID == c.selfID {
			return domain.Ignored()
		}
		return c.activity.ShowTyping(e.PeerID, e.Name)
	case domain.TypingStopped:
		return c.activity.HideTyping(e.PeerID)
	case domain.RateLimited:
		return c.onRateLimited(e)
	case domain.MessageWasRead:
		return c.rooms.MarkRead(e.MessageID)

	case domain.GameStateChanged:
		return c.game.ApplySnapshot(e.State, c.now())
	case domain.GameJoined:
		return c.onGameJoined(e)
	case domain.GameWordPrompt:
		return c.game.WordPrompt(e.Word)
	case domain.GameCorrectGuess:
		return c.systemMessage(fmt.Sprintf("%s guessed the word!", c.displayName(e.PeerID, e.Name)))
	case domain.GameNewRound:
		return c.game.NewRound()
	case domain.GameRoundEnded:
		out := c.game.RoundEnded()
		if out.IsApplied() && e.Word != "" {
			out.Merge(c.systemMessage("The word was: " + e.Word))
		}
		return out
	case domain.GameOver:
		return c.onGameOver(e)
	case domain.GameTerminated:
		return c.onGameTerminated(e)
	case domain.GameDrawn:
		return c.game.Drawn(e.Stroke)
	case domain.GameCanvasCleared:
		return c.game.CanvasCleared()
	case domain.GameSystemMessage:
		return c.systemMessage(e.Text)
	case domain.GameErrored:
		out := domain.Ignored()
		if c.settleGameRequest() {
			out = domain.Applied()
			out.Reason = domain.ReasonServerError
		}
		return out.WithNotice(domain.NoticeRefusal, textOr(e.Text, "Game error."))
	case domain.GameJoinFailed:
		c.settleGameRequest()
		out := domain.Applied().WithNotice(domain.NoticeRefusal, textOr(e.Text, "Could not join the game."))
		out.Reason = domain.ReasonServerError
		return out

	case domain.PrivateRequestIncoming:
		return c.onPrivateIncoming(e)
	case domain.PrivateRequestAccepted:
		out, established := c.private.Accepted(e.PeerID, c.now())
		if established && out.IsApplied() {
			out.Merge(c.enterPrivate(c.peer(e.PeerID)))
		}
		return out
	case domain.PrivateRequestDeclined:
		return c.private.Declined(c.peer(e.PeerID), e.Reason, c.now())
	case domain.PrivateRequestFailed:
		return c.private.Failed(e.PeerID, e.Text)
	case domain.PrivatePartnerLeft:
		return c.onPartnerLeft(e.PeerID, c.private.PartnerLeft(c.peer(e.PeerID)))

	case domain.CallIncoming:
		from := e.From
		if p, ok := c.roster.Get(from.ID); ok && from.Name == "" {
			from = p
		}
		return c.calls.Incoming(c.selfID, from, e.CallID, e.Offer, c.now())
	case domain.CallAnswerReceived:
		return c.calls.AnswerReceived(e.PeerID, e.CallID, e.Answer, c.now())
	case domain.CallCandidateReceived:
		return c.calls.RemoteCandidate(e.PeerID, e.CallID, e.Candidate)
	case domain.CallDeclined:
		return c.calls.Declined(c.peer(e.PeerID), e.CallID, e.Reason, c.now())
	case domain.CallEnded:
		return c.calls.Ended(c.peer(e.PeerID), e.CallID)

	case domain.MediaOfferReady:
		return c.calls.OfferReady(e)
	case domain.MediaAnswerReady:
		return c.onAnswerReady(e)
	case domain.MediaFailed:
		return c.calls.MediaFailed(e.CallID, e.Err)
	case domain.MediaCandidate:
		return c.calls.LocalCandidate(e.CallID, e.Candidate)
	case domain.MediaRemoteStream:
		return c.calls.RemoteStream(e)
	}
	return domain.Ignored()
}

// offRoom handles a room-scoped event for a room that is not current. Such
// events are stale, except a private message, which marks its author unread.
func (c *Coordinator) offRoom(ev domain.RoomScoped) domain.Outcome {
	msg, ok := ev.(domain.ChatMessage)
	if !ok {
		return domain.Stale()
	}
	peerID, ok := domain.PrivateRoomPeer(msg.RoomID, c.selfID)
	if !ok || msg.Message.AuthorID == c.selfID {
		return domain.Stale()
	}
	out := c.activity.MarkUnread(peerID)
	if out.Kind == domain.OutcomeIgnored {
		out.Kind = domain.OutcomeApplied
	}
	return out
}

func (c *Coordinator) onConnected(e domain.Connected) domain.Outcome {
	out := domain.Applied()
	reconnect := c.selfID != "" && c.selfID != e.SelfID

	if reconnect {
		out.Merge(c.dropConnectionScoped())
		out.Reason = domain.ReasonReconnected
	}
	c.selfID = e.SelfID
	c.connected = true

	c.logger.Info(logging.Transport, logging.Reconnect, "connected", map[logging.ExtraKey]any{
		logging.PeerID: e.SelfID,
		"Reconnect":    reconnect,
	})

	if c.identity == nil {
		return out
	}
	c.identity.SelfID = e.SelfID
	out.Commands = append(out.Commands, domain.UserInfo(*c.identity))
	out.Merge(c.rooms.Rejoin())
	return out
}

// dropConnectionScoped forgets what only made sense for the previous socket
// id. Nothing is sent: the peers saw the old id leave. Media is released.
func (c *Coordinator) dropConnectionScoped() domain.Outcome {
	hadPrivate := c.private.Established().Cardinality() > 0 || len(c.private.Pending()) > 0
	c.private.Reset()
	c.settleGameRequest()
	calls := c.calls.Reset()

	if c.rooms.Current().IsPrivate() {
		c.rooms.Reset()
	}
	c.activity.Reset()

	out := domain.Outcome{Kind: domain.OutcomeApplied, Tasks: calls.Tasks, Changed: true}
	if hadPrivate || calls.IsApplied() {
		out = out.WithNotice(domain.NoticeReset, "Reconnected. Private chats and calls were closed.")
	}
	return out
}

func (c *Coordinator) onDisconnected(e domain.Disconnected) domain.Outcome {
	c.settleGameRequest()
	if !c.connected {
		return domain.Ignored()
	}
	c.connected = false
	extra := map[logging.ExtraKey]any{}
	if e.Err != nil {
		extra[logging.ErrorMessage] = e.Err.Error()
	}
	c.logger.Warn(logging.Transport, logging.Reconnect, "disconnected", extra)
	return domain.Applied().WithNotice(domain.NoticeInfo, "Connection lost. Reconnecting...")
}

func (c *Coordinator) onUserList(e domain.UserList) domain.Outcome {
	departed := c.roster.Replace(e.Peers)
	out := domain.Applied()
	for _, id := range departed {
		out.Merge(c.private.PeerGone(id))
		out.Merge(c.calls.PeerGone(id))
		out.Merge(c.activity.ClearUnread(id))
		if cur := c.rooms.Current(); cur.IsPrivate() && cur.PeerID == id {
			out.Merge(c.rooms.SwitchTo(domain.PublicRoom()))
		}
	}
	return out
}

func (c *Coordinator) onChatMessage(e domain.ChatMessage) domain.Outcome {
	msg := e.Message
	if msg.RoomID == "" {
		msg.RoomID = e.RoomID
	}
	out := c.rooms.Append(msg)
	out.Merge(c.activity.HideTyping(msg.AuthorID))

	cur := c.rooms.Current()
	if out.IsApplied() && cur.IsPrivate() && !msg.System && msg.AuthorID != c.selfID && msg.ID != "" {
		out.Commands = append(out.Commands, domain.MessageRead(cur.ID, msg.ID))
	}
	return out
}

func (c *Coordinator) onRateLimited(e domain.RateLimited) domain.Outcome {
	out := domain.Applied()
	out.Reason = domain.ReasonRateLimited
	out.Merge(c.rooms.RollbackPending(c.selfID))
	return out.WithNotice(domain.NoticeRefusal, textOr(e.Text, "You are sending messages too quickly."))
}

func (c *Coordinator) systemMessage(text string) domain.Outcome {
	if text == "" {
		return domain.Ignored()
	}
	return c.rooms.Append(domain.NewSystemMessage(c.rooms.Current().ID, text, c.now()))
}

func (c *Coordinator) displayName(id, name string) string {
	if name != "" {
		return name
	}
	return c.peer(id).DisplayName()
}

func (c *Coordinator) onGameJoined(e domain.GameJoined) domain.Outcome {
	c.settleGameRequest()
	variant, err := domain.ParseVariant(string(e.Variant))
	if err != nil || e.RoomID == "" {
		return domain.Rejected(domain.ReasonInvalid, "")
	}
	return c.rooms.SwitchTo(domain.GameRoom(e.RoomID, e.GameID, variant, e.Title))
}

func (c *Coordinator) onGameOver(e domain.GameOver) domain.Outcome {
	out := c.game.Over(domain.GameResult{
		WinnerID: e.WinnerID,
		Winner:   e.Winner,
		Scores:   e.Scores,
		Word:     e.Word,
	})
	if !out.IsApplied() {
		return out
	}
	text := "Game over!"
	if e.Winner != "" {
		text = fmt.Sprintf("Game over! %s wins.", e.Winner)
	}
	out.Merge(c.systemMessage(text))
	return out
}

// onGameTerminated moves back to the public room once. A repeat, or one for a
// room already left, changes nothing.
func (c *Coordinator) onGameTerminated(e domain.GameTerminated) domain.Outcome {
	if !c.rooms.Current().IsGame() {
		return domain.Ignored()
	}
	out := c.rooms.Evict(domain.PublicRoom())
	return out.WithNotice(domain.NoticeReset, textOr(e.Text, "The game was closed."))
}

func (c *Coordinator) onPrivateIncoming(e domain.PrivateRequestIncoming) domain.Outcome {
	from := e.From
	if p, ok := c.roster.Get(from.ID); ok && from.Name == "" {
		from = p
	}
	out, established := c.private.Incoming(c.selfID, from, c.now())
	if established && out.IsApplied() {
		out.Merge(c.enterPrivate(from))
	}
	return out
}

func (c *Coordinator) enterPrivate(peer domain.Peer) domain.Outcome {
	out := c.rooms.SwitchTo(domain.PrivateRoom(c.selfID, peer))
	out.Merge(c.activity.ClearUnread(peer.ID))
	return out
}

func (c *Coordinator) onPartnerLeft(peerID string, out domain.Outcome) domain.Outcome {
	if !out.IsApplied() {
		return out
	}
	out.Merge(c.activity.ClearUnread(peerID))
	if cur := c.rooms.Current(); cur.IsPrivate() && cur.PeerID == peerID {
		out.Merge(c.rooms.SwitchTo(domain.PublicRoom()))
	}
	return out
}

// onAnswerReady sends call:answer itself: the answering side only counts as
// connected once the transport accepted it.
func (c *Coordinator) onAnswerReady(e domain.MediaAnswerReady) domain.Outcome {
	out := c.calls.AnswerReady(e)
	if !out.IsApplied() {
		return out
	}
	cmds := out.Commands
	out.Commands = nil
	c.apply(out)

	for _, cmd := range cmds {
		if err := c.send(cmd); err != nil {
			return c.calls.Abort(e.CallID, domain.ReasonSendFailed)
		}
	}
	return c.calls.AnswerTransmitted(e.CallID)
}

// sendGameRequest sends a game:create or game:join. The pending marker is
// held until the server answers, and dropped when the send fails or no answer
// arrives within the request timeout.
func (c *Coordinator) sendGameRequest(out domain.Outcome) domain.Outcome {
	if !out.IsApplied() {
		return out
	}
	cmds := out.Commands
	out.Commands = nil
	for _, cmd := range cmds {
		if err := c.send(cmd); err != nil {
			c.settleGameRequest()
			return domain.Rejected(domain.ReasonSendFailed, "Could not reach the server.")
		}
	}
	c.joinScope.Reset()
	if c.cfg.RequestTimeout > 0 {
		c.joinScope.After(c.cfg.RequestTimeout, func(time.Time) {
			if c.game.JoinSettled() {
				c.apply(domain.Ignored().WithNotice(domain.NoticeRefusal, "The game server did not answer."))
			}
		})
	}
	return out
}

func (c *Coordinator) settleGameRequest() bool {
	c.joinScope.Reset()
	return c.game.JoinSettled()
}

func textOr(text, fallback string) string {
	if text == "" {
		return fallback
	}
	return text
}
