package domain

import "github.com/pion/webrtc/v3"

const (
	CmdUserInfo         = "user info"
	CmdJoinRoom         = "join room"
	CmdChatMessage      = "chat message"
	CmdTyping           = "typing"
	CmdStopTyping       = "stop typing"
	CmdMessageRead      = "message read"
	CmdGameCreate       = "game:create"
	CmdGameJoin         = "game:join"
	CmdGameStart        = "game:start"
	CmdGameStop         = "game:stop"
	CmdGameLeave        = "game:leave"
	CmdGameRequestState = "game:request_state"
	CmdGameDraw         = "game:draw"
	CmdGameClearCanvas  = "game:clear_canvas"
	CmdGameGuess        = "game:guess"
	CmdPrivateInitiate  = "private:initiate"
	CmdPrivateAccept    = "private:accept"
	CmdPrivateDecline   = "private:decline"
	CmdPrivateCancel    = "private:cancel"
	CmdPrivateLeave     = "private:leave"
	CmdCallOffer        = "call:offer"
	CmdCallAnswer       = "call:answer"
	CmdCallICECandidate = "call:ice_candidate"
	CmdCallDecline      = "call:decline"
	CmdCallEnd          = "call:end"
)

// Command is an outbound message. RoomID is set on every room-scoped command.
type Command struct {
	Name    string
	RoomID  string
	Payload any
}

type UserInfoPayload struct {
	Nickname string `json:"nickname"`
	Gender   Gender `json:"gender"`
	Age      int    `json:"age"`
}

type ChatPayload struct {
	ClientID string `json:"clientId"`
	Text     string `json:"text"`
	Guess    bool   `json:"guess"`
}

type MessageReadPayload struct {
	MessageID string `json:"messageId"`
}

type GameCreatePayload struct {
	Variant GameVariant `json:"variant"`
}

type GameJoinPayload struct {
	GameID string `json:"gameId,omitempty"`
}

type DrawPayload struct {
	Stroke Stroke `json:"stroke"`
}

type GuessPayload struct {
	Letter string `json:"letter"`
}

type PeerPayload struct {
	To     string `json:"to"`
	Reason Reason `json:"reason,omitempty"`
}

type SDPPayload struct {
	To     string                    `json:"to"`
	CallID string                    `json:"callId"`
	SDP    webrtc.SessionDescription `json:"sdp"`
}

type CandidatePayload struct {
	To        string                  `json:"to"`
	CallID    string                  `json:"callId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type CallSignalPayload struct {
	To     string `json:"to"`
	CallID string `json:"callId"`
	Reason Reason `json:"reason,omitempty"`
}

func UserInfo(id Identity) Command {
	return Command{Name: CmdUserInfo, Payload: UserInfoPayload{Nickname: id.Nickname, Gender: id.Gender, Age: id.Age}}
}

func JoinRoom(roomID string) Command {
	return Command{Name: CmdJoinRoom, RoomID: roomID}
}

func ChatMessageCmd(roomID, clientID, text string, guess bool) Command {
	return Command{Name: CmdChatMessage, RoomID: roomID, Payload: ChatPayload{ClientID: clientID, Text: text, Guess: guess}}
}

func Typing(roomID string) Command {
	return Command{Name: CmdTyping, RoomID: roomID}
}

func StopTyping(roomID string) Command {
	return Command{Name: CmdStopTyping, RoomID: roomID}
}

func MessageRead(roomID, messageID string) Command {
	return Command{Name: CmdMessageRead, RoomID: roomID, Payload: MessageReadPayload{MessageID: messageID}}
}

func GameCreate(roomID string, v GameVariant) Command {
	return Command{Name: CmdGameCreate, RoomID: roomID, Payload: GameCreatePayload{Variant: v}}
}

func GameJoin(roomID, gameID string) Command {
	return Command{Name: CmdGameJoin, RoomID: roomID, Payload: GameJoinPayload{GameID: gameID}}
}

func GameStart(roomID string) Command {
	return Command{Name: CmdGameStart, RoomID: roomID}
}

func GameStop(roomID string) Command {
	return Command{Name: CmdGameStop, RoomID: roomID}
}

func GameLeave(roomID string) Command {
	return Command{Name: CmdGameLeave, RoomID: roomID}
}

func GameRequestState(roomID string) Command {
	return Command{Name: CmdGameRequestState, RoomID: roomID}
}

func GameDraw(roomID string, s Stroke) Command {
	return Command{Name: CmdGameDraw, RoomID: roomID, Payload: DrawPayload{Stroke: s}}
}

func GameClearCanvas(roomID string) Command {
	return Command{Name: CmdGameClearCanvas, RoomID: roomID}
}

func GameGuess(roomID, letter string) Command {
	return Command{Name: CmdGameGuess, RoomID: roomID, Payload: GuessPayload{Letter: letter}}
}

func PrivateInitiate(to string) Command {
	return Command{Name: CmdPrivateInitiate, Payload: PeerPayload{To: to}}
}

func PrivateAccept(to string) Command {
	return Command{Name: CmdPrivateAccept, Payload: PeerPayload{To: to}}
}

func PrivateDecline(to string, reason Reason) Command {
	return Command{Name: CmdPrivateDecline, Payload: PeerPayload{To: to, Reason: reason}}
}

func PrivateCancel(to string) Command {
	return Command{Name: CmdPrivateCancel, Payload: PeerPayload{To: to}}
}

func PrivateLeave(roomID, to string) Command {
	return Command{Name: CmdPrivateLeave, RoomID: roomID, Payload: PeerPayload{To: to}}
}

func CallOffer(to, callID string, sdp webrtc.SessionDescription) Command {
	return Command{Name: CmdCallOffer, Payload: SDPPayload{To: to, CallID: callID, SDP: sdp}}
}

func CallAnswer(to, callID string, sdp webrtc.SessionDescription) Command {
	return Command{Name: CmdCallAnswer, Payload: SDPPayload{To: to, CallID: callID, SDP: sdp}}
}

func CallICECandidate(to, callID string, c webrtc.ICECandidateInit) Command {
	return Command{Name: CmdCallICECandidate, Payload: CandidatePayload{To: to, CallID: callID, Candidate: c}}
}

func CallDecline(to, callID string, reason Reason) Command {
	return Command{Name: CmdCallDecline, Payload: CallSignalPayload{To: to, CallID: callID, Reason: reason}}
}

func CallEnd(to, callID string) Command {
	return Command{Name: CmdCallEnd, Payload: CallSignalPayload{To: to, CallID: callID}}
}
