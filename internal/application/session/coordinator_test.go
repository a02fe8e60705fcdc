package session

import (
	"errors"
	"testing"
	"time"

	"github.com/hilthontt/lounge/internal/domain"
	"github.com/pion/webrtc/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityGate(t *testing.T) {
	store := &memoryStore{}
	h := newHarness(t, WithIdentityStore(store))
	h.c.Dispatch(domain.Connected{SelfID: alice.ID})

	out := h.c.Submit(domain.SendChat{Text: "hello"})
	assert.Equal(t, domain.OutcomeRejected, out.Kind)
	assert.Equal(t, domain.ReasonNoIdentity, out.Reason)
	assert.Empty(t, h.sink.sent)

	out = h.c.Submit(domain.SubmitIdentity{Nickname: "Alice", Gender: domain.GenderFemale, Age: 17})
	assert.Equal(t, domain.ReasonInvalid, out.Reason)
	require.Len(t, out.Notices, 1)
	assert.Equal(t, domain.NoticeValidation, out.Notices[0].Kind)
	assert.Equal(t, "age must be between 18 and 99", out.Notices[0].Text)
	assert.Nil(t, h.c.State().Identity)

	out = h.c.Submit(domain.SubmitIdentity{Nickname: " Alice ", Gender: "Female", Age: 30})
	require.True(t, out.IsApplied())
	assert.Equal(t, []string{domain.CmdUserInfo, domain.CmdJoinRoom}, h.sink.names())
	require.NotNil(t, h.c.State().Identity)
	assert.Equal(t, "Alice", h.c.State().Identity.Nickname)
	assert.Equal(t, alice.ID, h.c.State().Identity.SelfID)
	assert.Equal(t, 1, store.saves)
}

func TestCachedIdentityIsReusedOnConnect(t *testing.T) {
	cached := domain.Identity{Nickname: "Alice", Gender: domain.GenderFemale, Age: 30}
	store := &memoryStore{id: &cached}
	h := newHarness(t, WithIdentityStore(store))

	h.c.Dispatch(domain.Connected{SelfID: alice.ID})
	assert.Equal(t, []string{domain.CmdUserInfo, domain.CmdJoinRoom}, h.sink.names())

	h.c.Submit(domain.Logout{})
	assert.Nil(t, store.id)
	assert.Nil(t, h.c.State().Identity)
	assert.True(t, h.c.State().Connected)

	out := h.c.Submit(domain.SendChat{Text: "still here?"})
	assert.Equal(t, domain.ReasonNoIdentity, out.Reason)
}

func TestSendChat_OptimisticThenConfirmed(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out := h.c.Submit(domain.SendChat{Text: "  hi there "})
	require.True(t, out.IsApplied())
	msgs := h.c.State().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi there", msgs[0].Text)
	assert.False(t, msgs[0].Confirmed())

	cmd := h.sink.last()
	assert.Equal(t, domain.CmdChatMessage, cmd.Name)
	assert.Equal(t, domain.PublicRoomID, cmd.RoomID)
	assert.Equal(t, msgs[0].ID, cmd.Payload.(domain.ChatPayload).ClientID)

	echo := msgs[0]
	echo.ReadStatus = domain.ReadStatusSent
	h.c.Dispatch(domain.ChatMessage{RoomTag: domain.RoomTag{RoomID: domain.PublicRoomID}, Message: echo})

	msgs = h.c.State().Messages
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Confirmed())

	assert.Equal(t, domain.ReasonInvalid, h.c.Submit(domain.SendChat{Text: "   "}).Reason)
}

func TestRateLimitRollsBackNewestPendingMessage(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.c.Submit(domain.SendChat{Text: "one"})
	first := h.c.State().Messages[0]
	first.ReadStatus = domain.ReadStatusSent
	h.c.Dispatch(domain.ChatMessage{RoomTag: domain.RoomTag{RoomID: domain.PublicRoomID}, Message: first})
	h.c.Submit(domain.SendChat{Text: "two"})
	require.Len(t, h.c.State().Messages, 2)

	out := h.c.Dispatch(domain.RateLimited{Text: "Slow down."})
	assert.Equal(t, domain.ReasonRateLimited, out.Reason)

	st := h.c.State()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "one", st.Messages[0].Text)
	require.NotNil(t, st.Notice)
	assert.Equal(t, "Slow down.", st.Notice.Text)
}

func TestRoomScopedEventsForOtherRoomsAreStale(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.c.Submit(domain.SendChat{Text: "keep me"})
	h.sink.reset()

	other := domain.RoomTag{RoomID: "elsewhere"}
	now := h.clock.Now()
	events := []domain.Event{
		domain.RoomHistory{RoomTag: other, Messages: []domain.Message{{ID: "x", Text: "old"}}},
		domain.ChatMessage{RoomTag: other, Message: domain.Message{ID: "m1", AuthorID: bob.ID, Text: "hey"}},
		domain.TypingStarted{RoomTag: other, PeerID: bob.ID, Name: bob.Name},
		domain.TypingStopped{RoomTag: other, PeerID: bob.ID},
		domain.MessageWasRead{RoomTag: other, MessageID: "m1"},
		domain.GameStateChanged{RoomTag: other, State: &domain.DoodleState{RoundActive: true, RoundEndTime: now.Add(time.Minute)}},
		domain.GameWordPrompt{RoomTag: other, Word: "apple"},
		domain.GameCorrectGuess{RoomTag: other, PeerID: bob.ID, Name: bob.Name},
		domain.GameNewRound{RoomTag: other, DrawerID: bob.ID},
		domain.GameRoundEnded{RoomTag: other, Word: "apple"},
		domain.GameOver{RoomTag: other, Winner: "Bob"},
		domain.GameTerminated{RoomTag: other, Text: "closed"},
		domain.GameDrawn{RoomTag: other, Stroke: domain.Stroke{X1: 1, Y1: 1}},
		domain.GameCanvasCleared{RoomTag: other},
		domain.GameSystemMessage{RoomTag: other, Text: "hello"},
	}

	for _, ev := range events {
		t.Run(ev.EventName(), func(t *testing.T) {
			before := stateOf(h.c)
			out := h.c.Dispatch(ev)
			assert.Equal(t, domain.OutcomeStale, out.Kind)
			assert.Empty(t, out.Commands)
			assert.Equal(t, before, stateOf(h.c))
			assert.Empty(t, h.sink.sent)
		})
	}
}

func TestPrivateMessageElsewhereMarksUnread(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.openPrivateWith(t, bob)
	h.c.Submit(domain.OpenPublic{})
	h.sink.reset()

	roomID := domain.DerivePrivateRoomID(alice.ID, bob.ID)
	out := h.c.Dispatch(domain.ChatMessage{
		RoomTag: domain.RoomTag{RoomID: roomID},
		Message: domain.Message{ID: "m1", RoomID: roomID, AuthorID: bob.ID, Text: "psst"},
	})
	assert.True(t, out.IsApplied())
	assert.Empty(t, h.c.State().Messages)
	assert.Equal(t, []string{bob.ID}, h.c.State().Unread)
	require.Len(t, h.c.State().PrivateRooms, 1)
	assert.True(t, h.c.State().PrivateRooms[0].Unread)
	assert.Empty(t, h.sink.sent)

	h.c.Submit(domain.OpenPrivate{PeerID: bob.ID})
	assert.Empty(t, h.c.State().Unread)
	assert.Equal(t, roomID, h.c.State().Room.ID)
	assert.Equal(t, []string{domain.CmdJoinRoom}, h.sink.names())
}

func TestPrivateMessageInCurrentRoomIsMarkedRead(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.openPrivateWith(t, bob)

	roomID := domain.DerivePrivateRoomID(alice.ID, bob.ID)
	h.c.Dispatch(domain.ChatMessage{
		RoomTag: domain.RoomTag{RoomID: roomID},
		Message: domain.Message{ID: "m1", RoomID: roomID, AuthorID: bob.ID, Text: "hi", ReadStatus: domain.ReadStatusSent},
	})
	require.Equal(t, []string{domain.CmdMessageRead}, h.sink.names())
	assert.Equal(t, roomID, h.sink.last().RoomID)

	h.c.Dispatch(domain.MessageWasRead{RoomTag: domain.RoomTag{RoomID: roomID}, MessageID: "m1"})
	assert.Equal(t, domain.ReadStatusRead, h.c.State().Messages[0].ReadStatus)
}

func TestOpenPrivateRequiresEstablishedRoom(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	out := h.c.Submit(domain.OpenPrivate{PeerID: bob.ID})
	assert.Equal(t, domain.ReasonNotAllowed, out.Reason)
	assert.True(t, h.c.State().Room.IsPublic())
}

func TestDeclineCooldown(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out := h.c.Submit(domain.RequestPrivate{PeerID: bob.ID})
	require.True(t, out.IsApplied())
	assert.Equal(t, []string{domain.CmdPrivateInitiate}, h.sink.names())
	require.Len(t, h.c.State().Pending, 1)

	h.c.Dispatch(domain.PrivateRequestDeclined{PeerID: bob.ID, Reason: domain.ReasonDeclined})
	st := h.c.State()
	assert.Empty(t, st.Pending)
	assert.Equal(t, []string{bob.ID}, st.Cooldowns)
	require.NotNil(t, st.Notice)
	assert.Equal(t, "Bob declined your chat request.", st.Notice.Text)

	h.sink.reset()
	out = h.c.Submit(domain.RequestPrivate{PeerID: bob.ID})
	assert.Equal(t, domain.ReasonCooldown, out.Reason)
	assert.Empty(t, h.sink.sent)

	h.advance(5*time.Minute + time.Second)
	out = h.c.Submit(domain.RequestPrivate{PeerID: bob.ID})
	assert.True(t, out.IsApplied())
	assert.Equal(t, []string{domain.CmdPrivateInitiate}, h.sink.names())
}

func TestBusyDeclineDoesNotStartCooldown(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.c.Submit(domain.RequestPrivate{PeerID: bob.ID})
	h.c.Dispatch(domain.PrivateRequestDeclined{PeerID: bob.ID, Reason: domain.ReasonBusy})
	assert.Equal(t, "Bob is busy right now.", h.c.State().Notice.Text)
	assert.Empty(t, h.c.State().Cooldowns)
	assert.True(t, h.c.Submit(domain.RequestPrivate{PeerID: bob.ID}).IsApplied())
}

func TestPeerRequestLiftsCooldown(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.c.Submit(domain.RequestPrivate{PeerID: bob.ID})
	h.c.Dispatch(domain.PrivateRequestDeclined{PeerID: bob.ID, Reason: domain.ReasonDeclined})
	require.Equal(t, []string{bob.ID}, h.c.State().Cooldowns)

	h.c.Dispatch(domain.PrivateRequestIncoming{From: domain.Peer{ID: bob.ID}})
	st := h.c.State()
	assert.Empty(t, st.Cooldowns)
	require.Len(t, st.Pending, 1)
	assert.Equal(t, domain.Incoming, st.Pending[0].Direction)
}

func TestPrivateRequestTimesOut(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.c.Submit(domain.RequestPrivate{PeerID: bob.ID})
	h.sink.reset()

	h.advance(29 * time.Second)
	assert.Empty(t, h.sink.sent)

	h.advance(time.Second)
	assert.Equal(t, []string{domain.CmdPrivateCancel}, h.sink.names())
	assert.Empty(t, h.c.State().Pending)
	assert.Equal(t, "Your chat request expired.", h.c.State().Notice.Text)
}

func TestCrossedPrivateRequestsEstablish(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.c.Submit(domain.RequestPrivate{PeerID: bob.ID})
	h.sink.reset()

	h.c.Dispatch(domain.PrivateRequestIncoming{From: domain.Peer{ID: bob.ID}})
	assert.Equal(t, []string{domain.CmdPrivateAccept, domain.CmdJoinRoom}, h.sink.names())
	assert.Equal(t, domain.DerivePrivateRoomID(alice.ID, bob.ID), h.c.State().Room.ID)
}

func TestAcceptedRequestOpensRoom(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.c.Submit(domain.RequestPrivate{PeerID: carol.ID})
	h.sink.reset()

	h.c.Dispatch(domain.PrivateRequestAccepted{PeerID: carol.ID})
	st := h.c.State()
	assert.Equal(t, domain.DerivePrivateRoomID(alice.ID, carol.ID), st.Room.ID)
	assert.Equal(t, "Chat with Carol", st.Room.Title)
	assert.Equal(t, []string{domain.CmdJoinRoom}, h.sink.names())

	var candidates []string
	for _, p := range st.ChatCandidates {
		candidates = append(candidates, p.ID)
	}
	assert.Equal(t, []string{bob.ID}, candidates)
}

func TestPartnerLeftReturnsToPublic(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.openPrivateWith(t, bob)

	h.c.Dispatch(domain.PrivatePartnerLeft{PeerID: bob.ID})
	st := h.c.State()
	assert.True(t, st.Room.IsPublic())
	assert.Empty(t, st.PrivateRooms)
	assert.Equal(t, "Bob left the private chat.", st.Notice.Text)
	assert.Equal(t, []string{domain.CmdJoinRoom}, h.sink.names())
}

func TestLeavePrivate(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.openPrivateWith(t, bob)

	out := h.c.Submit(domain.LeavePrivate{PeerID: bob.ID})
	require.True(t, out.IsApplied())
	assert.Equal(t, []string{domain.CmdPrivateLeave, domain.CmdJoinRoom}, h.sink.names())
	assert.True(t, h.c.State().Room.IsPublic())

	assert.Equal(t, domain.ReasonNotAllowed, h.c.Submit(domain.LeavePrivate{PeerID: bob.ID}).Reason)
}

func TestDepartedPeerClosesPrivateRoom(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.openPrivateWith(t, bob)

	h.c.Dispatch(domain.UserList{Peers: []domain.Peer{alice, carol}})
	st := h.c.State()
	assert.True(t, st.Room.IsPublic())
	assert.Empty(t, st.PrivateRooms)
	assert.Equal(t, []string{domain.CmdJoinRoom}, h.sink.names())

	out := h.c.Submit(domain.RequestPrivate{PeerID: bob.ID})
	assert.Equal(t, domain.ReasonUnknownPeer, out.Reason)
}

func TestTyping(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.c.Submit(domain.InputActivity{})
	h.c.Submit(domain.InputActivity{})
	assert.Equal(t, []string{domain.CmdTyping}, h.sink.names())

	h.advance(time.Second)
	h.c.Submit(domain.InputActivity{})
	h.advance(time.Second)
	assert.Equal(t, []string{domain.CmdTyping}, h.sink.names())

	h.advance(500 * time.Millisecond)
	assert.Equal(t, []string{domain.CmdTyping, domain.CmdStopTyping}, h.sink.names())

	h.sink.reset()
	h.c.Submit(domain.InputActivity{})
	h.c.Submit(domain.SendChat{Text: "done"})
	assert.Equal(t, []string{domain.CmdTyping, domain.CmdChatMessage, domain.CmdStopTyping}, h.sink.names())
}

func TestRemoteTypingIndicators(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	public := domain.RoomTag{RoomID: domain.PublicRoomID}

	h.c.Dispatch(domain.TypingStarted{RoomTag: public, PeerID: bob.ID, Name: bob.Name})
	h.c.Dispatch(domain.TypingStarted{RoomTag: public, PeerID: alice.ID, Name: alice.Name})
	assert.Equal(t, []string{"Bob"}, h.c.State().Typing)

	h.c.Dispatch(domain.ChatMessage{RoomTag: public, Message: domain.Message{ID: "m1", AuthorID: bob.ID, Text: "hi"}})
	assert.Empty(t, h.c.State().Typing)

	h.c.Dispatch(domain.TypingStarted{RoomTag: public, PeerID: carol.ID, Name: carol.Name})
	h.openPrivateWith(t, bob)
	assert.Empty(t, h.c.State().Typing)
}

func TestNoticeHidesAfterTTL(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	var seen []State
	unsubscribe := h.c.Subscribe(func(st State) { seen = append(seen, st) })

	h.c.Submit(domain.RequestPrivate{PeerID: "nobody"})
	require.NotNil(t, h.c.State().Notice)
	require.Len(t, seen, 1)
	assert.NotNil(t, seen[0].Notice)

	h.advance(3 * time.Second)
	assert.Nil(t, h.c.State().Notice)
	require.Len(t, seen, 2)
	assert.Greater(t, seen[1].Version, seen[0].Version)

	unsubscribe()
	h.c.Submit(domain.RequestPrivate{PeerID: "nobody"})
	assert.Len(t, seen, 2)

	assert.True(t, h.c.Submit(domain.DismissNotice{}).IsApplied())
	assert.Nil(t, h.c.State().Notice)
}

func TestGameJoinedAndChatGuess(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	out := h.c.Submit(domain.CreateGame{Variant: domain.VariantDoodle})
	require.True(t, out.IsApplied())
	assert.Equal(t, []string{domain.CmdGameCreate}, h.sink.names())
	h.sink.reset()

	h.c.Dispatch(domain.GameJoined{RoomID: "g1", GameID: "game-1", Variant: domain.VariantDoodle, Title: "Doodle Dash"})
	assert.Equal(t, []string{domain.CmdJoinRoom, domain.CmdGameRequestState}, h.sink.names())
	require.NotNil(t, h.c.State().Game)
	assert.False(t, h.c.State().Game.PendingJoin)

	h.c.Dispatch(domain.GameStateChanged{
		RoomTag: domain.RoomTag{RoomID: "g1"},
		State: &domain.DoodleState{
			RoundActive:  true,
			DrawerID:     bob.ID,
			RoundEndTime: h.clock.Now().Add(60 * time.Second),
			CreatorID:    bob.ID,
			Players:      []domain.Peer{alice, bob},
		},
	})
	view := h.c.State().Game
	assert.Equal(t, 60, view.SecondsRemaining)
	assert.True(t, view.CanGuess)

	h.sink.reset()
	h.c.Submit(domain.SendChat{Text: "apple"})
	payload := h.sink.last().Payload.(domain.ChatPayload)
	assert.True(t, payload.Guess)

	h.advance(10 * time.Second)
	assert.Equal(t, 50, h.c.State().Game.SecondsRemaining)

	h.sink.reset()
	h.c.Submit(domain.LeaveGame{})
	assert.Equal(t, []string{domain.CmdGameLeave, domain.CmdJoinRoom}, h.sink.names())
	assert.Nil(t, h.c.State().Game)
}

func TestGameTerminatedIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.c.Dispatch(domain.GameJoined{RoomID: "g1", GameID: "game-1", Variant: domain.VariantHangman})
	h.sink.reset()

	out := h.c.Dispatch(domain.GameTerminated{RoomTag: domain.RoomTag{RoomID: "g1"}, Text: "The host left."})
	require.True(t, out.IsApplied())
	st := h.c.State()
	assert.True(t, st.Room.IsPublic())
	assert.Nil(t, st.Game)
	require.NotNil(t, st.Notice)
	assert.Equal(t, domain.NoticeReset, st.Notice.Kind)
	assert.Equal(t, []string{domain.CmdJoinRoom}, h.sink.names())

	before := stateOf(h.c)
	h.sink.reset()
	again := h.c.Dispatch(domain.GameTerminated{RoomTag: domain.RoomTag{RoomID: "g1"}, Text: "The host left."})
	assert.NotEqual(t, domain.OutcomeApplied, again.Kind)
	assert.Equal(t, before, stateOf(h.c))
	assert.Empty(t, h.sink.sent)

	unscoped := h.c.Dispatch(domain.GameTerminated{})
	assert.Equal(t, domain.OutcomeIgnored, unscoped.Kind)
}

func TestGameOverAppendsResult(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.c.Dispatch(domain.GameJoined{RoomID: "g1", GameID: "game-1", Variant: domain.VariantDoodle})
	g1 := domain.RoomTag{RoomID: "g1"}

	h.c.Dispatch(domain.GameCorrectGuess{RoomTag: g1, PeerID: bob.ID})
	h.c.Dispatch(domain.GameOver{RoomTag: g1, WinnerID: bob.ID, Winner: "Bob", Scores: map[string]int{bob.ID: 3}})

	st := h.c.State()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, "Bob guessed the word!", st.Messages[0].Text)
	assert.Equal(t, "Game over! Bob wins.", st.Messages[1].Text)
	require.NotNil(t, st.Game)
	assert.Equal(t, "over", string(st.Game.Phase))
	assert.Equal(t, "Bob", st.Game.Result.Winner)
}

func TestGameJoinFailedSettlesPendingJoin(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	require.True(t, h.c.Submit(domain.JoinGame{RoomID: "g1", GameID: "game-1"}).IsApplied())
	assert.Equal(t, domain.ReasonDuplicate, h.c.Submit(domain.JoinGame{RoomID: "g2", GameID: "game-2"}).Reason)

	h.c.Dispatch(domain.GameJoinFailed{RoomID: "g1", Text: "Game is full."})
	assert.Equal(t, "Game is full.", h.c.State().Notice.Text)
	assert.True(t, h.c.Submit(domain.JoinGame{RoomID: "g2", GameID: "game-2"}).IsApplied())
}

func incomingCall(h *harness) {
	h.c.Dispatch(domain.CallIncoming{
		From:   domain.Peer{ID: bob.ID},
		CallID: "c1",
		Offer:  webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"},
	})
}

func TestAnsweringCallConnectsOnlyAfterSend(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	incomingCall(h)
	require.Equal(t, domain.CallPhaseRinging, h.c.State().Call.Phase)

	require.True(t, h.c.Submit(domain.AcceptCall{}).IsApplied())
	tasks := h.c.TakeTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.MediaCreateAnswer, tasks[0].Kind)
	assert.Equal(t, domain.CallPhaseRinging, h.c.State().Call.Phase)
	assert.Empty(t, h.sink.sent)

	stream := &fakeStream{id: "local"}
	out := h.c.Dispatch(domain.MediaAnswerReady{
		CallID: "c1",
		Stream: stream,
		Answer: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"},
	})
	require.True(t, out.IsApplied())
	assert.Equal(t, []string{domain.CmdCallAnswer}, h.sink.names())
	assert.Equal(t, domain.CallPhaseConnected, h.c.State().Call.Phase)

	h.sink.reset()
	h.c.Submit(domain.EndCall{})
	assert.Equal(t, []string{domain.CmdCallEnd}, h.sink.names())
	assert.Nil(t, h.c.State().Call)
	release := h.c.TakeTasks()
	require.Len(t, release, 1)
	assert.Equal(t, domain.MediaRelease, release[0].Kind)
	assert.Equal(t, []domain.MediaStream{stream}, release[0].Streams)
}

func TestAnsweringCallAbortsWhenAnswerCannotBeSent(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	incomingCall(h)
	h.c.Submit(domain.AcceptCall{})
	h.c.TakeTasks()
	h.sink.fail[domain.CmdCallAnswer] = errors.New("socket closed")

	stream := &fakeStream{id: "local"}
	out := h.c.Dispatch(domain.MediaAnswerReady{CallID: "c1", Stream: stream})
	assert.Equal(t, domain.ReasonSendFailed, out.Reason)

	st := h.c.State()
	assert.Nil(t, st.Call)
	require.NotNil(t, st.Notice)
	assert.Equal(t, domain.NoticeMedia, st.Notice.Kind)

	tasks := h.c.TakeTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.MediaRelease, tasks[0].Kind)
	assert.Equal(t, []domain.MediaStream{stream}, tasks[0].Streams)

	late := h.c.Dispatch(domain.MediaRemoteStream{CallID: "c1", Stream: &fakeStream{id: "remote"}})
	assert.Equal(t, domain.OutcomeStale, late.Kind)
}

func TestSecondIncomingCallIsDeclinedBusy(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	incomingCall(h)

	h.c.Dispatch(domain.CallIncoming{From: domain.Peer{ID: carol.ID}, CallID: "c2"})
	require.Equal(t, []string{domain.CmdCallDecline}, h.sink.names())
	assert.Equal(t, domain.ReasonBusy, h.sink.last().Payload.(domain.CallSignalPayload).Reason)
	assert.Equal(t, "c1", h.c.State().Call.ID)
}

func TestOutgoingCall(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	require.True(t, h.c.Submit(domain.StartCall{PeerID: bob.ID}).IsApplied())
	tasks := h.c.TakeTasks()
	require.Len(t, tasks, 1)
	require.Equal(t, domain.MediaCreateOffer, tasks[0].Kind)
	callID := tasks[0].CallID

	h.c.Dispatch(domain.MediaCandidate{CallID: callID, Candidate: webrtc.ICECandidateInit{Candidate: "candidate:1"}})
	assert.Empty(t, h.sink.sent)

	h.c.Dispatch(domain.MediaOfferReady{CallID: callID, Stream: &fakeStream{id: "local"}, Offer: webrtc.SessionDescription{Type: webrtc.SDPTypeOffer}})
	assert.Equal(t, []string{domain.CmdCallOffer, domain.CmdCallICECandidate}, h.sink.names())

	h.c.Dispatch(domain.CallAnswerReceived{PeerID: bob.ID, CallID: callID, Answer: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer}})
	assert.Equal(t, domain.CallPhaseConnected, h.c.State().Call.Phase)
	applied := h.c.TakeTasks()
	require.Len(t, applied, 1)
	assert.Equal(t, domain.MediaApplyAnswer, applied[0].Kind)

	h.c.Dispatch(domain.CallEnded{PeerID: bob.ID, CallID: callID})
	assert.Nil(t, h.c.State().Call)
	assert.Equal(t, "Call ended.", h.c.State().Notice.Text)
}

func TestReconnectDropsConnectionScopedState(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.openPrivateWith(t, bob)

	h.c.Dispatch(domain.Disconnected{Err: errors.New("EOF")})
	assert.False(t, h.c.State().Connected)

	out := h.c.Dispatch(domain.Connected{SelfID: "alice-2"})
	assert.Equal(t, domain.ReasonReconnected, out.Reason)

	st := h.c.State()
	assert.True(t, st.Connected)
	assert.Equal(t, "alice-2", st.SelfID)
	assert.Equal(t, "alice-2", st.Identity.SelfID)
	assert.True(t, st.Room.IsPublic())
	assert.Empty(t, st.PrivateRooms)
	assert.Equal(t, domain.NoticeReset, st.Notice.Kind)
	assert.Equal(t, []string{domain.CmdUserInfo, domain.CmdJoinRoom}, h.sink.names())
}

func TestReconnectRejoinsGameRoom(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.c.Dispatch(domain.GameJoined{RoomID: "g1", GameID: "game-1", Variant: domain.VariantDoodle})
	h.sink.reset()

	h.c.Dispatch(domain.Connected{SelfID: "alice-2"})
	assert.Equal(t, "g1", h.c.State().Room.ID)
	assert.Equal(t, []string{domain.CmdUserInfo, domain.CmdJoinRoom, domain.CmdGameRequestState}, h.sink.names())
}

func TestResetIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.openPrivateWith(t, bob)
	h.c.Submit(domain.RequestPrivate{PeerID: carol.ID})
	h.c.Submit(domain.InputActivity{})
	incomingCall(h)
	h.c.Submit(domain.AcceptCall{})
	h.c.TakeTasks()

	h.c.Reset()
	once := stateOf(h.c)
	tasks := h.c.TakeTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.MediaRelease, tasks[0].Kind)

	h.c.Reset()
	assert.Equal(t, once, stateOf(h.c))
	assert.Empty(t, h.c.TakeTasks())

	assert.Nil(t, once.Identity)
	assert.True(t, once.Room.IsPublic())
	assert.Empty(t, once.Pending)
	assert.Empty(t, once.PrivateRooms)
	assert.Nil(t, once.Call)
	assert.Nil(t, once.Notice)
	assert.Equal(t, 0, h.sched.Pending())
}

func TestGameErrorSettlesPendingCreate(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	require.True(t, h.c.Submit(domain.CreateGame{Variant: domain.VariantDoodle}).IsApplied())
	assert.Equal(t, domain.ReasonDuplicate, h.c.Submit(domain.CreateGame{Variant: domain.VariantDoodle}).Reason)

	out := h.c.Dispatch(domain.GameErrored{Text: "Could not create game."})
	assert.True(t, out.IsApplied())
	assert.Equal(t, "Could not create game.", h.c.State().Notice.Text)
	assert.True(t, h.c.Submit(domain.CreateGame{Variant: domain.VariantDoodle}).IsApplied())
}

func TestGameRequestSendFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.sink.fail[domain.CmdGameCreate] = errors.New("socket closed")

	out := h.c.Submit(domain.CreateGame{Variant: domain.VariantHangman})
	assert.Equal(t, domain.OutcomeRejected, out.Kind)
	assert.Equal(t, domain.ReasonSendFailed, out.Reason)

	delete(h.sink.fail, domain.CmdGameCreate)
	require.True(t, h.c.Submit(domain.CreateGame{Variant: domain.VariantHangman}).IsApplied())
	assert.Equal(t, []string{domain.CmdGameCreate}, h.sink.names())
}

func TestPendingGameJoinTimesOut(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	require.True(t, h.c.Submit(domain.JoinGame{RoomID: "g1", GameID: "game-1"}).IsApplied())

	h.advance(29 * time.Second)
	assert.Equal(t, domain.ReasonDuplicate, h.c.Submit(domain.JoinGame{RoomID: "g1", GameID: "game-1"}).Reason)

	h.advance(time.Second)
	require.NotNil(t, h.c.State().Notice)
	assert.Equal(t, "The game server did not answer.", h.c.State().Notice.Text)
	assert.True(t, h.c.Submit(domain.JoinGame{RoomID: "g1", GameID: "game-1"}).IsApplied())
}

func TestDisconnectSettlesPendingJoin(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	require.True(t, h.c.Submit(domain.JoinGame{RoomID: "g1", GameID: "game-1"}).IsApplied())

	h.c.Dispatch(domain.Disconnected{})
	h.c.Dispatch(domain.Connected{SelfID: "alice-2"})
	assert.True(t, h.c.Submit(domain.JoinGame{RoomID: "g1", GameID: "game-1"}).IsApplied())
}

func TestMessagesWithoutIDFromOneAuthorAreAllShown(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	public := domain.RoomTag{RoomID: domain.PublicRoomID}
	before := len(h.c.State().Messages)

	for _, text := range []string{"hi", "hi", "anyone?"} {
		h.c.Dispatch(domain.ChatMessage{RoomTag: public, Message: domain.Message{
			AuthorID: bob.ID, AuthorName: bob.Name, Text: text, ReadStatus: domain.ReadStatusSent,
		}})
	}
	msgs := h.c.State().Messages
	require.Len(t, msgs, before+3)
	assert.Equal(t, "anyone?", msgs[len(msgs)-1].Text)
}

func TestLogoutLeavesEveryPrivateRoom(t *testing.T) {
	h := newHarness(t)
	h.login(t)
	h.openPrivateWith(t, bob)
	h.openPrivateWith(t, carol)

	require.True(t, h.c.Submit(domain.Logout{}).IsApplied())

	var left []string
	for _, cmd := range h.sink.sent {
		if cmd.Name == domain.CmdPrivateLeave {
			left = append(left, cmd.RoomID)
		}
	}
	assert.ElementsMatch(t, []string{
		domain.DerivePrivateRoomID(alice.ID, bob.ID),
		domain.DerivePrivateRoomID(alice.ID, carol.ID),
	}, left)
	assert.Empty(t, h.c.State().PrivateRooms)
	assert.Equal(t, domain.PublicRoomID, h.c.State().Room.ID)
}
