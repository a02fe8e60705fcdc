package rooms

import (
	"slices"

	"github.com/google/uuid"
	"github.com/hilthontt/lounge/internal/domain"
)

const defaultLogCapacity = 200

// MessageLog holds the messages of the current room. Oldest messages are
// evicted when capacity is exceeded.
type MessageLog struct {
	messages []domain.Message
	capacity int
}

func NewMessageLog(capacity int) *MessageLog {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &MessageLog{
		messages: make([]domain.Message, 0, capacity),
		capacity: capacity,
	}
}

func (l *MessageLog) indexOf(id string) int {
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].ID == id {
			return i
		}
	}
	return -1
}

// Append adds msg or, when a message with the same id is already present,
// replaces it. Server copies confirm the optimistic local one. A message
// without an id is numbered locally and never merged.
func (l *MessageLog) Append(msg domain.Message) bool {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	} else if i := l.indexOf(msg.ID); i >= 0 {
		prev := l.messages[i]
		if msg.ReadStatus == domain.ReadStatusPending {
			msg.ReadStatus = prev.ReadStatus
		}
		if prev.ReadStatus == domain.ReadStatusRead {
			msg.ReadStatus = domain.ReadStatusRead
		}
		if msg == prev {
			return false
		}
		l.messages[i] = msg
		return true
	}

	l.messages = append(l.messages, msg)
	if excess := len(l.messages) - l.capacity; excess > 0 {
		l.messages = l.messages[excess:]
	}
	return true
}

func (l *MessageLog) Replace(msgs []domain.Message) {
	l.messages = l.messages[:0]
	for _, m := range msgs {
		l.Append(m)
	}
}

func (l *MessageLog) MarkRead(id string) bool {
	i := l.indexOf(id)
	if i < 0 || l.messages[i].ReadStatus == domain.ReadStatusRead {
		return false
	}
	l.messages[i].ReadStatus = domain.ReadStatusRead
	return true
}

// RollbackPending removes the newest message authored by authorID that the
// server has not confirmed yet.
func (l *MessageLog) RollbackPending(authorID string) (domain.Message, bool) {
	for i := len(l.messages) - 1; i >= 0; i-- {
		m := l.messages[i]
		if m.AuthorID == authorID && !m.System && !m.Confirmed() {
			l.messages = slices.Delete(l.messages, i, i+1)
			return m, true
		}
	}
	return domain.Message{}, false
}

func (l *MessageLog) Messages() []domain.Message {
	return slices.Clone(l.messages)
}

func (l *MessageLog) Len() int { return len(l.messages) }

func (l *MessageLog) Reset() { l.messages = l.messages[:0] }
