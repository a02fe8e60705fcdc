package domain

import (
	"time"

	"github.com/pion/webrtc/v3"
)

const (
	EvtConnect               = "connect"
	EvtDisconnect            = "disconnect"
	EvtUserList              = "user list"
	EvtRoomHistory           = "room history"
	EvtChatMessage           = "chat message"
	EvtTyping                = "typing"
	EvtStopTyping            = "stop typing"
	EvtRateLimit             = "rate limit"
	EvtMessageRead           = "message was read"
	EvtGameState             = "game:state"
	EvtGameJoined            = "game:joined"
	EvtGameWordPrompt        = "game:word_prompt"
	EvtGameCorrectGuess      = "game:correct_guess"
	EvtGameNewRound          = "game:new_round"
	EvtGameEnd               = "game:end"
	EvtGameOver              = "game:over"
	EvtGameTerminated        = "game:terminated"
	EvtGameDraw              = "game:draw"
	EvtGameClearCanvas       = "game:clear_canvas"
	EvtGameMessage           = "game:message"
	EvtGameError             = "game:error"
	EvtGameJoinError         = "game:join_error"
	EvtPrivateIncoming       = "private:request_incoming"
	EvtPrivateAccepted       = "private:request_accepted"
	EvtPrivateDeclined       = "private:request_declined"
	EvtPrivateError          = "private:request_error"
	EvtPrivatePartnerLeft    = "private:partner_left"
	EvtCallIncoming          = "call:incoming"
	EvtCallAnswerReceived    = "call:answer_received"
	EvtCallCandidateReceived = "call:ice_candidate_received"
	EvtCallDeclined          = "call:declined"
	EvtCallEnded             = "call:ended"
)

// Event is the closed set of inputs the coordinator dispatches on. Transport
// events are decoded into these; media results are produced locally.
type Event interface {
	EventName() string
	sealedEvent()
}

// RoomScoped events are only live while their room is the current room.
type RoomScoped interface {
	Event
	Room() string
}

type event struct{}

func (event) sealedEvent() {}

type RoomTag struct {
	RoomID string `json:"room"`
}

func (t RoomTag) Room() string { return t.RoomID }

type Connected struct {
	event
	SelfID string `json:"id"`
}

type Disconnected struct {
	event
	Err error `json:"-"`
}

type UserList struct {
	event
	Peers []Peer `json:"users"`
}

type RoomHistory struct {
	event
	RoomTag
	Messages []Message `json:"messages"`
}

type ChatMessage struct {
	event
	RoomTag
	Message Message `json:"message"`
}

type TypingStarted struct {
	event
	RoomTag
	PeerID string `json:"id"`
	Name   string `json:"name"`
}

type TypingStopped struct {
	event
	RoomTag
	PeerID string `json:"id"`
}

type RateLimited struct {
	event
	Text string `json:"message"`
}

type MessageWasRead struct {
	event
	RoomTag
	MessageID string `json:"messageId"`
}

type GameStateChanged struct {
	event
	RoomTag
	State GameState `json:"-"`
}

// GameJoined is how a game room is entered, so it is never stale.
type GameJoined struct {
	event
	RoomID  string      `json:"room"`
	GameID  string      `json:"gameId"`
	Variant GameVariant `json:"variant"`
	Title   string      `json:"title"`
}

type GameWordPrompt struct {
	event
	RoomTag
	Word string `json:"word"`
}

type GameCorrectGuess struct {
	event
	RoomTag
	PeerID string `json:"id"`
	Name   string `json:"name"`
	Word   string `json:"word,omitempty"`
}

type GameNewRound struct {
	event
	RoomTag
	DrawerID     string    `json:"drawerId"`
	RoundEndTime time.Time `json:"roundEndTime"`
}

type GameRoundEnded struct {
	event
	RoomTag
	Word string `json:"word"`
}

type GameOver struct {
	event
	RoomTag
	WinnerID string         `json:"winnerId"`
	Winner   string         `json:"winner"`
	Scores   map[string]int `json:"scores"`
	Word     string         `json:"word"`
}

type GameTerminated struct {
	event
	RoomTag
	Text string `json:"message"`
}

type GameDrawn struct {
	event
	RoomTag
	Stroke Stroke `json:"stroke"`
}

type GameCanvasCleared struct {
	event
	RoomTag
}

type GameSystemMessage struct {
	event
	RoomTag
	Text string `json:"message"`
}

// GameErrored and GameJoinFailed only surface a notice and may refer to a room
// that was never entered.
type GameErrored struct {
	event
	RoomID string `json:"room"`
	Text   string `json:"message"`
}

type GameJoinFailed struct {
	event
	RoomID string `json:"room"`
	Text   string `json:"message"`
}

type PrivateRequestIncoming struct {
	event
	From Peer `json:"from"`
}

type PrivateRequestAccepted struct {
	event
	PeerID string `json:"id"`
}

type PrivateRequestDeclined struct {
	event
	PeerID string `json:"id"`
	Reason Reason `json:"reason"`
}

type PrivateRequestFailed struct {
	event
	PeerID string `json:"id"`
	Text   string `json:"message"`
}

type PrivatePartnerLeft struct {
	event
	PeerID string `json:"id"`
}

type CallIncoming struct {
	event
	From   Peer                      `json:"from"`
	CallID string                    `json:"callId"`
	Offer  webrtc.SessionDescription `json:"sdp"`
}

type CallAnswerReceived struct {
	event
	PeerID string                    `json:"from"`
	CallID string                    `json:"callId"`
	Answer webrtc.SessionDescription `json:"sdp"`
}

type CallCandidateReceived struct {
	event
	PeerID    string                  `json:"from"`
	CallID    string                  `json:"callId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type CallDeclined struct {
	event
	PeerID string `json:"from"`
	CallID string `json:"callId"`
	Reason Reason `json:"reason"`
}

type CallEnded struct {
	event
	PeerID string `json:"from"`
	CallID string `json:"callId"`
}

// Media results re-enter the controller as events stamped with the call they
// were started for.

type MediaOfferReady struct {
	event
	CallID string
	Stream MediaStream
	Offer  webrtc.SessionDescription
}

type MediaAnswerReady struct {
	event
	CallID string
	Stream MediaStream
	Answer webrtc.SessionDescription
}

type MediaFailed struct {
	event
	CallID string
	Err    error
}

type MediaCandidate struct {
	event
	CallID    string
	Candidate webrtc.ICECandidateInit
}

type MediaRemoteStream struct {
	event
	CallID string
	Stream MediaStream
}

func (Connected) EventName() string              { return EvtConnect }
func (Disconnected) EventName() string           { return EvtDisconnect }
func (UserList) EventName() string               { return EvtUserList }
func (RoomHistory) EventName() string            { return EvtRoomHistory }
func (ChatMessage) EventName() string            { return EvtChatMessage }
func (TypingStarted) EventName() string          { return EvtTyping }
func (TypingStopped) EventName() string          { return EvtStopTyping }
func (RateLimited) EventName() string            { return EvtRateLimit }
func (MessageWasRead) EventName() string         { return EvtMessageRead }
func (GameStateChanged) EventName() string       { return EvtGameState }
func (GameJoined) EventName() string             { return EvtGameJoined }
func (GameWordPrompt) EventName() string         { return EvtGameWordPrompt }
func (GameCorrectGuess) EventName() string       { return EvtGameCorrectGuess }
func (GameNewRound) EventName() string           { return EvtGameNewRound }
func (GameRoundEnded) EventName() string         { return EvtGameEnd }
func (GameOver) EventName() string               { return EvtGameOver }
func (GameTerminated) EventName() string         { return EvtGameTerminated }
func (GameDrawn) EventName() string              { return EvtGameDraw }
func (GameCanvasCleared) EventName() string      { return EvtGameClearCanvas }
func (GameSystemMessage) EventName() string      { return EvtGameMessage }
func (GameErrored) EventName() string            { return EvtGameError }
func (GameJoinFailed) EventName() string         { return EvtGameJoinError }
func (PrivateRequestIncoming) EventName() string { return EvtPrivateIncoming }
func (PrivateRequestAccepted) EventName() string { return EvtPrivateAccepted }
func (PrivateRequestDeclined) EventName() string { return EvtPrivateDeclined }
func (PrivateRequestFailed) EventName() string   { return EvtPrivateError }
func (PrivatePartnerLeft) EventName() string     { return EvtPrivatePartnerLeft }
func (CallIncoming) EventName() string           { return EvtCallIncoming }
func (CallAnswerReceived) EventName() string     { return EvtCallAnswerReceived }
func (CallCandidateReceived) EventName() string  { return EvtCallCandidateReceived }
func (CallDeclined) EventName() string           { return EvtCallDeclined }
func (CallEnded) EventName() string              { return EvtCallEnded }
func (MediaOfferReady) EventName() string        { return "media:offer_ready" }
func (MediaAnswerReady) EventName() string       { return "media:answer_ready" }
func (MediaFailed) EventName() string            { return "media:failed" }
func (MediaCandidate) EventName() string         { return "media:candidate" }
func (MediaRemoteStream) EventName() string      { return "media:remote_stream" }
