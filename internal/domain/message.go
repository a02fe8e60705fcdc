package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReadStatus string

const (
	ReadStatusPending ReadStatus = ""
	ReadStatusSent    ReadStatus = "sent"
	ReadStatusRead    ReadStatus = "read"
)

type Message struct {
	ID         string     `json:"id"`
	RoomID     string     `json:"roomId"`
	AuthorID   string     `json:"authorId"`
	AuthorName string     `json:"authorName"`
	Gender     Gender     `json:"gender,omitempty"`
	Text       string     `json:"text"`
	ReadStatus ReadStatus `json:"readStatus,omitempty"`
	System     bool       `json:"system,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// NewOutgoingMessage builds the optimistic copy of a message the local user is
// about to send. The id travels with the command so the server echo can be
// matched back to it.
func NewOutgoingMessage(roomID string, author Identity, text string, now time.Time) Message {
	return Message{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		AuthorID:   author.SelfID,
		AuthorName: author.Nickname,
		Gender:     author.Gender,
		Text:       text,
		ReadStatus: ReadStatusPending,
		CreatedAt:  now,
	}
}

func NewSystemMessage(roomID, text string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Text:      text,
		System:    true,
		CreatedAt: now,
	}
}

func (m Message) Confirmed() bool {
	return m.ReadStatus != ReadStatusPending
}
