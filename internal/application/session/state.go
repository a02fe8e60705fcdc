package session

import (
	"slices"

	"github.com/hilthontt/lounge/internal/application/game"
	"github.com/hilthontt/lounge/internal/domain"
)

// PrivateRoomView is an established private room as listed in the sidebar.
type PrivateRoomView struct {
	RoomID string      `json:"roomId"`
	Peer   domain.Peer `json:"peer"`
	Unread bool        `json:"unread"`
}

// State is an immutable snapshot of the session for the renderer.
type State struct {
	Version        uint64                      `json:"version"`
	Connected      bool                        `json:"connected"`
	SelfID         string                      `json:"selfId"`
	Identity       *domain.Identity            `json:"identity,omitempty"`
	Room           domain.Room                 `json:"room"`
	Messages       []domain.Message            `json:"messages"`
	Peers          []domain.Peer               `json:"peers"`
	ChatCandidates []domain.Peer               `json:"chatCandidates"`
	PrivateRooms   []PrivateRoomView           `json:"privateRooms"`
	Unread         []string                    `json:"unread"`
	Typing         []string                    `json:"typing"`
	Pending        []domain.NegotiationRequest `json:"pending"`
	Cooldowns      []string                    `json:"cooldowns"`
	Call           *domain.CallSession         `json:"call,omitempty"`
	Game           *game.View                  `json:"game,omitempty"`
	Notice         *domain.Notice              `json:"notice,omitempty"`
}

func (c *Coordinator) State() State {
	now := c.now()
	established := c.private.Established()

	st := State{
		Version:        c.version,
		Connected:      c.connected,
		SelfID:         c.selfID,
		Room:           c.rooms.Current(),
		Messages:       c.rooms.Messages(),
		Peers:          c.roster.Visible(c.selfID),
		ChatCandidates: c.roster.ChatCandidates(c.selfID, established),
		Unread:         c.activity.Unread(),
		Typing:         c.activity.Typists(),
		Cooldowns:      c.private.Cooldowns(now),
		Call:           c.calls.Session(),
		Game:           c.game.View(c.selfID),
	}
	if c.identity != nil {
		id := *c.identity
		st.Identity = &id
	}
	if c.notice != nil {
		n := *c.notice
		st.Notice = &n
	}

	st.Pending = c.private.Pending()
	ids := established.ToSlice()
	slices.Sort(ids)
	for _, id := range ids {
		st.PrivateRooms = append(st.PrivateRooms, PrivateRoomView{
			RoomID: domain.DerivePrivateRoomID(c.selfID, id),
			Peer:   c.peer(id),
			Unread: c.activity.HasUnread(id),
		})
	}
	return st
}
