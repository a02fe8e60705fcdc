package domain

import (
	"errors"
	"slices"
	"strings"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotPrivateRoom  = errors.New("room is not a private room")
	ErrSelfPrivateRoom = errors.New("cannot open a private room with yourself")
)

const PublicRoomID = "public"

type RoomKind int

const (
	RoomPublic RoomKind = iota
	RoomPrivate
	RoomGame
)

func (k RoomKind) String() string {
	switch k {
	case RoomPublic:
		return "public"
	case RoomPrivate:
		return "private"
	case RoomGame:
		return "game"
	default:
		return "unknown"
	}
}

// Room identifies where the local user currently is. PeerID is set for
// private rooms, GameID and Variant for game rooms.
type Room struct {
	ID      string      `json:"id"`
	Kind    RoomKind    `json:"kind"`
	Title   string      `json:"title"`
	PeerID  string      `json:"peerId,omitempty"`
	GameID  string      `json:"gameId,omitempty"`
	Variant GameVariant `json:"variant,omitempty"`
}

func PublicRoom() Room {
	return Room{ID: PublicRoomID, Kind: RoomPublic, Title: "Public Chat"}
}

func PrivateRoom(selfID string, peer Peer) Room {
	return Room{
		ID:     DerivePrivateRoomID(selfID, peer.ID),
		Kind:   RoomPrivate,
		Title:  "Chat with " + peer.DisplayName(),
		PeerID: peer.ID,
	}
}

func GameRoom(roomID, gameID string, variant GameVariant, title string) Room {
	if title == "" {
		title = variant.Title()
	}
	return Room{ID: roomID, Kind: RoomGame, Title: title, GameID: gameID, Variant: variant}
}

// DerivePrivateRoomID returns the id both participants compute for their
// shared room: the two ids in lexicographic order joined with "-".
func DerivePrivateRoomID(a, b string) string {
	ids := []string{a, b}
	slices.Sort(ids)
	return strings.Join(ids, "-")
}

// PrivateRoomPeer returns the id of the other participant of a private room
// id derived with DerivePrivateRoomID.
func PrivateRoomPeer(roomID, selfID string) (string, bool) {
	if roomID == PublicRoomID || selfID == "" {
		return "", false
	}
	if rest, ok := strings.CutPrefix(roomID, selfID+"-"); ok && rest != "" {
		return rest, true
	}
	if rest, ok := strings.CutSuffix(roomID, "-"+selfID); ok && rest != "" {
		return rest, true
	}
	return "", false
}

func (r Room) IsPublic() bool  { return r.Kind == RoomPublic }
func (r Room) IsPrivate() bool { return r.Kind == RoomPrivate }
func (r Room) IsGame() bool    { return r.Kind == RoomGame }
