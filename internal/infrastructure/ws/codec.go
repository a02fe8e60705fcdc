package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hilthontt/lounge/internal/domain"
	"github.com/pion/webrtc/v3"
	"github.com/tidwall/gjson"
)

type decoder func(room string, data gjson.Result) (domain.Event, error)

var decoders = map[string]decoder{
	domain.EvtConnect:               decodeConnected,
	domain.EvtUserList:              decodeUserList,
	domain.EvtRoomHistory:           decodeRoomHistory,
	domain.EvtChatMessage:           decodeChatMessage,
	domain.EvtTyping:                decodeTyping,
	domain.EvtStopTyping:            decodeStopTyping,
	domain.EvtRateLimit:             decodeRateLimit,
	domain.EvtMessageRead:           decodeMessageRead,
	domain.EvtGameState:             decodeGameState,
	domain.EvtGameJoined:            decodeGameJoined,
	domain.EvtGameWordPrompt:        decodeWordPrompt,
	domain.EvtGameCorrectGuess:      decodeCorrectGuess,
	domain.EvtGameNewRound:          decodeNewRound,
	domain.EvtGameEnd:               decodeRoundEnded,
	domain.EvtGameOver:              decodeGameOver,
	domain.EvtGameTerminated:        decodeTerminated,
	domain.EvtGameDraw:              decodeDraw,
	domain.EvtGameClearCanvas:       decodeClearCanvas,
	domain.EvtGameMessage:           decodeGameMessage,
	domain.EvtGameError:             decodeGameError,
	domain.EvtGameJoinError:         decodeGameJoinError,
	domain.EvtPrivateIncoming:       decodePrivateIncoming,
	domain.EvtPrivateAccepted:       decodePrivateAccepted,
	domain.EvtPrivateDeclined:       decodePrivateDeclined,
	domain.EvtPrivateError:          decodePrivateError,
	domain.EvtPrivatePartnerLeft:    decodePartnerLeft,
	domain.EvtCallIncoming:          decodeCallIncoming,
	domain.EvtCallAnswerReceived:    decodeCallAnswer,
	domain.EvtCallCandidateReceived: decodeCallCandidate,
	domain.EvtCallDeclined:          decodeCallDeclined,
	domain.EvtCallEnded:             decodeCallEnded,
}

// Decode turns one server frame into a domain event. Only the envelope type
// and room are peeked before the payload decoder for that type runs.
func Decode(raw []byte) (domain.Event, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformed
	}
	env := gjson.ParseBytes(raw)
	typ := env.Get("type").String()
	if typ == "" {
		return nil, ErrMalformed
	}
	if canonical, ok := aliases[typ]; ok {
		typ = canonical
	}
	dec, ok := decoders[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	ev, err := dec(env.Get("roomId").String(), env.Get("data"))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return ev, nil
}

// Encode frames an outbound command.
func Encode(cmd domain.Command) ([]byte, error) {
	return json.Marshal(outbound{Type: cmd.Name, RoomID: cmd.RoomID, Data: cmd.Payload})
}

// text reads payloads the server sends either as a bare string or as an
// object with the string under key.
func text(data gjson.Result, key string) string {
	if data.Type == gjson.String {
		return data.String()
	}
	return data.Get(key).String()
}

// millis accepts epoch milliseconds or an RFC 3339 string.
func millis(r gjson.Result) time.Time {
	switch r.Type {
	case gjson.Number:
		return time.UnixMilli(r.Int()).UTC()
	case gjson.String:
		t, err := time.Parse(time.RFC3339Nano, r.String())
		if err == nil {
			return t
		}
	}
	return time.Time{}
}

func unmarshal(r gjson.Result, v any) error {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	return json.Unmarshal([]byte(r.Raw), v)
}

func peer(r gjson.Result) domain.Peer {
	name := r.Get("name").String()
	if name == "" {
		name = r.Get("nickname").String()
	}
	return domain.Peer{
		ID:     r.Get("id").String(),
		Name:   name,
		Gender: domain.Gender(r.Get("gender").String()),
		Age:    int(r.Get("age").Int()),
	}
}

func peers(r gjson.Result) []domain.Peer {
	arr := r.Array()
	out := make([]domain.Peer, 0, len(arr))
	for _, p := range arr {
		out = append(out, peer(p))
	}
	return out
}

func scores(r gjson.Result) map[string]int {
	out := make(map[string]int)
	r.ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = int(v.Int())
		return true
	})
	return out
}

func stringList(r gjson.Result) []string {
	arr := r.Array()
	out := make([]string, 0, len(arr))
	for _, s := range arr {
		out = append(out, s.String())
	}
	return out
}

// message maps a server message. Echoes of our own messages carry the client
// id they were sent with, which becomes the id so the optimistic copy is
// confirmed in place. A bare "id" is the author's socket id, not a message id;
// messages without one are left for the log to number.
func message(room string, r gjson.Result) domain.Message {
	id := r.Get("clientId").String()
	if id == "" {
		id = r.Get("messageId").String()
	}
	author := r.Get("authorId").String()
	if author == "" {
		author = r.Get("id").String()
	}
	if room == "" {
		room = r.Get("room").String()
	}
	status := domain.ReadStatus(r.Get("readStatus").String())
	if status == domain.ReadStatusPending {
		status = domain.ReadStatusSent
	}
	name := r.Get("authorName").String()
	if name == "" {
		name = r.Get("name").String()
	}
	return domain.Message{
		ID:         id,
		RoomID:     room,
		AuthorID:   author,
		AuthorName: name,
		Gender:     domain.Gender(r.Get("gender").String()),
		Text:       r.Get("text").String(),
		ReadStatus: status,
		System:     r.Get("system").Bool(),
		CreatedAt:  millis(r.Get("createdAt")),
	}
}

func stroke(r gjson.Result) (domain.Stroke, error) {
	if s := r.Get("stroke"); s.Exists() {
		r = s
	}
	var st domain.Stroke
	err := unmarshal(r, &st)
	return st, err
}

func decodeConnected(_ string, data gjson.Result) (domain.Event, error) {
	id := data.Get("id").String()
	if id == "" {
		return nil, ErrMalformed
	}
	return domain.Connected{SelfID: id}, nil
}

func decodeUserList(_ string, data gjson.Result) (domain.Event, error) {
	if u := data.Get("users"); u.Exists() {
		data = u
	}
	if !data.IsArray() {
		return nil, ErrMalformed
	}
	return domain.UserList{Peers: peers(data)}, nil
}

func decodeRoomHistory(room string, data gjson.Result) (domain.Event, error) {
	if m := data.Get("messages"); m.Exists() {
		data = m
	}
	arr := data.Array()
	msgs := make([]domain.Message, 0, len(arr))
	for _, m := range arr {
		msgs = append(msgs, message(room, m))
	}
	return domain.RoomHistory{RoomTag: domain.RoomTag{RoomID: room}, Messages: msgs}, nil
}

func decodeChatMessage(room string, data gjson.Result) (domain.Event, error) {
	if !data.IsObject() {
		return nil, ErrMalformed
	}
	msg := message(room, data)
	return domain.ChatMessage{RoomTag: domain.RoomTag{RoomID: msg.RoomID}, Message: msg}, nil
}

func decodeTyping(room string, data gjson.Result) (domain.Event, error) {
	return domain.TypingStarted{
		RoomTag: domain.RoomTag{RoomID: room},
		PeerID:  data.Get("id").String(),
		Name:    data.Get("name").String(),
	}, nil
}

func decodeStopTyping(room string, data gjson.Result) (domain.Event, error) {
	return domain.TypingStopped{RoomTag: domain.RoomTag{RoomID: room}, PeerID: data.Get("id").String()}, nil
}

func decodeRateLimit(_ string, data gjson.Result) (domain.Event, error) {
	return domain.RateLimited{Text: text(data, "message")}, nil
}

func decodeMessageRead(room string, data gjson.Result) (domain.Event, error) {
	id := text(data, "messageId")
	if id == "" {
		return nil, ErrMalformed
	}
	return domain.MessageWasRead{RoomTag: domain.RoomTag{RoomID: room}, MessageID: id}, nil
}

func decodeGameState(room string, data gjson.Result) (domain.Event, error) {
	variant, err := domain.ParseVariant(data.Get("variant").String())
	if err != nil {
		return nil, err
	}

	var state domain.GameState
	switch variant {
	case domain.VariantDoodle:
		s := &domain.DoodleState{
			RoundActive:  data.Get("roundActive").Bool(),
			DrawerID:     data.Get("drawerId").String(),
			RoundEndTime: millis(data.Get("roundEndTime")),
			Scores:       scores(data.Get("scores")),
			CreatorID:    data.Get("creatorId").String(),
			Players:      peers(data.Get("players")),
		}
		if err := unmarshal(data.Get("drawingHistory"), &s.DrawingHistory); err != nil {
			return nil, err
		}
		state = s
	case domain.VariantHangman:
		state = &domain.HangmanState{
			RoundActive:      data.Get("roundActive").Bool(),
			CurrentTurnID:    data.Get("currentTurnId").String(),
			TurnEndTime:      millis(data.Get("turnEndTime")),
			DisplayWord:      stringList(data.Get("displayWord")),
			IncorrectGuesses: stringList(data.Get("incorrectGuesses")),
			IsGameOver:       data.Get("isGameOver").Bool(),
			WinnerID:         data.Get("winnerId").String(),
			CreatorID:        data.Get("creatorId").String(),
			Players:          peers(data.Get("players")),
		}
	}
	return domain.GameStateChanged{RoomTag: domain.RoomTag{RoomID: room}, State: state}, nil
}

func decodeGameJoined(room string, data gjson.Result) (domain.Event, error) {
	variant, err := domain.ParseVariant(data.Get("variant").String())
	if err != nil {
		return nil, err
	}
	if r := data.Get("room").String(); r != "" {
		room = r
	}
	if room == "" {
		return nil, ErrMalformed
	}
	title := data.Get("title").String()
	if title == "" {
		title = variant.Title()
	}
	return domain.GameJoined{RoomID: room, GameID: data.Get("gameId").String(), Variant: variant, Title: title}, nil
}

func decodeWordPrompt(room string, data gjson.Result) (domain.Event, error) {
	return domain.GameWordPrompt{RoomTag: domain.RoomTag{RoomID: room}, Word: text(data, "word")}, nil
}

func decodeCorrectGuess(room string, data gjson.Result) (domain.Event, error) {
	name := data.Get("guesser").String()
	if name == "" {
		name = data.Get("name").String()
	}
	return domain.GameCorrectGuess{
		RoomTag: domain.RoomTag{RoomID: room},
		PeerID:  data.Get("id").String(),
		Name:    name,
		Word:    data.Get("word").String(),
	}, nil
}

func decodeNewRound(room string, data gjson.Result) (domain.Event, error) {
	return domain.GameNewRound{
		RoomTag:      domain.RoomTag{RoomID: room},
		DrawerID:     data.Get("drawerId").String(),
		RoundEndTime: millis(data.Get("roundEndTime")),
	}, nil
}

func decodeRoundEnded(room string, data gjson.Result) (domain.Event, error) {
	return domain.GameRoundEnded{RoomTag: domain.RoomTag{RoomID: room}, Word: text(data, "word")}, nil
}

func decodeGameOver(room string, data gjson.Result) (domain.Event, error) {
	return domain.GameOver{
		RoomTag:  domain.RoomTag{RoomID: room},
		WinnerID: data.Get("winnerId").String(),
		Winner:   data.Get("winner").String(),
		Scores:   scores(data.Get("scores")),
		Word:     data.Get("word").String(),
	}, nil
}

func decodeTerminated(room string, data gjson.Result) (domain.Event, error) {
	return domain.GameTerminated{RoomTag: domain.RoomTag{RoomID: room}, Text: text(data, "message")}, nil
}

func decodeDraw(room string, data gjson.Result) (domain.Event, error) {
	s, err := stroke(data)
	if err != nil {
		return nil, err
	}
	return domain.GameDrawn{RoomTag: domain.RoomTag{RoomID: room}, Stroke: s}, nil
}

func decodeClearCanvas(room string, _ gjson.Result) (domain.Event, error) {
	return domain.GameCanvasCleared{RoomTag: domain.RoomTag{RoomID: room}}, nil
}

func decodeGameMessage(room string, data gjson.Result) (domain.Event, error) {
	return domain.GameSystemMessage{RoomTag: domain.RoomTag{RoomID: room}, Text: text(data, "text")}, nil
}

func decodeGameError(room string, data gjson.Result) (domain.Event, error) {
	return domain.GameErrored{RoomID: room, Text: text(data, "message")}, nil
}

func decodeGameJoinError(room string, data gjson.Result) (domain.Event, error) {
	return domain.GameJoinFailed{RoomID: room, Text: text(data, "message")}, nil
}

func decodePrivateIncoming(_ string, data gjson.Result) (domain.Event, error) {
	from := peer(data.Get("from"))
	if from.ID == "" {
		return nil, ErrMalformed
	}
	return domain.PrivateRequestIncoming{From: from}, nil
}

func decodePrivateAccepted(_ string, data gjson.Result) (domain.Event, error) {
	return domain.PrivateRequestAccepted{PeerID: data.Get("id").String()}, nil
}

func decodePrivateDeclined(_ string, data gjson.Result) (domain.Event, error) {
	reason := domain.Reason(data.Get("reason").String())
	if reason == "" {
		reason = domain.ReasonDeclined
	}
	return domain.PrivateRequestDeclined{PeerID: data.Get("id").String(), Reason: reason}, nil
}

func decodePrivateError(_ string, data gjson.Result) (domain.Event, error) {
	return domain.PrivateRequestFailed{PeerID: data.Get("id").String(), Text: text(data, "message")}, nil
}

func decodePartnerLeft(_ string, data gjson.Result) (domain.Event, error) {
	return domain.PrivatePartnerLeft{PeerID: data.Get("id").String()}, nil
}

func sdp(r gjson.Result) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	err := unmarshal(r, &desc)
	return desc, err
}

func decodeCallIncoming(_ string, data gjson.Result) (domain.Event, error) {
	from := data.Get("from")
	p := domain.Peer{ID: from.String()}
	if from.IsObject() {
		p = peer(from)
	}
	offer, err := sdp(data.Get("sdp"))
	if err != nil {
		return nil, err
	}
	return domain.CallIncoming{From: p, CallID: data.Get("callId").String(), Offer: offer}, nil
}

func decodeCallAnswer(_ string, data gjson.Result) (domain.Event, error) {
	answer, err := sdp(data.Get("sdp"))
	if err != nil {
		return nil, err
	}
	return domain.CallAnswerReceived{
		PeerID: data.Get("from").String(),
		CallID: data.Get("callId").String(),
		Answer: answer,
	}, nil
}

func decodeCallCandidate(_ string, data gjson.Result) (domain.Event, error) {
	var cand webrtc.ICECandidateInit
	if err := unmarshal(data.Get("candidate"), &cand); err != nil {
		return nil, err
	}
	return domain.CallCandidateReceived{
		PeerID:    data.Get("from").String(),
		CallID:    data.Get("callId").String(),
		Candidate: cand,
	}, nil
}

func decodeCallDeclined(_ string, data gjson.Result) (domain.Event, error) {
	reason := domain.Reason(data.Get("reason").String())
	if reason == "" {
		reason = domain.ReasonDeclined
	}
	return domain.CallDeclined{
		PeerID: data.Get("from").String(),
		CallID: data.Get("callId").String(),
		Reason: reason,
	}, nil
}

func decodeCallEnded(_ string, data gjson.Result) (domain.Event, error) {
	return domain.CallEnded{PeerID: data.Get("from").String(), CallID: data.Get("callId").String()}, nil
}
