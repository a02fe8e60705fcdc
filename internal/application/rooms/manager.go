package rooms

import (
	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/hilthontt/lounge/internal/infrastructure/timers"
)

// GameSession is the part of the game machine the manager drives when the
// current room is a game room.
type GameSession interface {
	Enter(room domain.Room, scope *timers.Scope)
	Teardown()
}

// RoomActivity is the room-owned transient state (typing) cleared on switch.
type RoomActivity interface {
	ResetRoom() domain.Outcome
}

// Manager owns the current room, its message log and its timer scope. Every
// room change goes through SwitchTo.
type Manager struct {
	root     *timers.Scope
	scope    *timers.Scope
	current  domain.Room
	log      *MessageLog
	game     GameSession
	activity RoomActivity
	logger   logging.Logger
}

func NewManager(root *timers.Scope, game GameSession, activity RoomActivity, logCapacity int, logger logging.Logger) *Manager {
	public := domain.PublicRoom()
	return &Manager{
		root:     root,
		scope:    root.Child("room:" + public.ID),
		current:  public,
		log:      NewMessageLog(logCapacity),
		game:     game,
		activity: activity,
		logger:   logger,
	}
}

func (m *Manager) Current() domain.Room     { return m.current }
func (m *Manager) Scope() *timers.Scope     { return m.scope }
func (m *Manager) IsCurrent(id string) bool { return m.current.ID == id }

// SwitchTo makes room the current room. The steps run in a fixed order: leave
// and tear down a game room, swap the current room, clear room-owned state,
// join the new room, then ask for a game snapshot if it is a game room.
// Switching to the current room does nothing.
func (m *Manager) SwitchTo(room domain.Room) domain.Outcome {
	return m.switchTo(room, true)
}

// Evict moves to room after the server closed the current one. No game:leave
// is sent for a game that no longer exists.
func (m *Manager) Evict(room domain.Room) domain.Outcome {
	return m.switchTo(room, false)
}

func (m *Manager) switchTo(room domain.Room, announceLeave bool) domain.Outcome {
	if room.ID == m.current.ID {
		return domain.Outcome{Kind: domain.OutcomeIgnored, Reason: domain.ReasonAlreadyThere}
	}

	out := domain.Applied()
	prev := m.current

	if prev.IsGame() {
		if announceLeave {
			out.Commands = append(out.Commands, domain.GameLeave(prev.ID))
		}
		m.game.Teardown()
	}
	m.scope.Close()

	m.current = room

	m.log.Reset()
	out.Merge(m.activity.ResetRoom())

	m.scope = m.root.Child("room:" + room.ID)
	out.Commands = append(out.Commands, domain.JoinRoom(room.ID))

	if room.IsGame() {
		m.game.Enter(room, m.scope.Child("game"))
		out.Commands = append(out.Commands, domain.GameRequestState(room.ID))
	}

	m.logger.Info(logging.Session, logging.RoomSwitch, "switched room", map[logging.ExtraKey]any{
		logging.RoomID: room.ID,
		"From":         prev.ID,
		"Kind":         room.Kind.String(),
	})
	return out
}

// Rejoin re-announces the current room after the transport reconnected.
func (m *Manager) Rejoin() domain.Outcome {
	out := domain.Applied(domain.JoinRoom(m.current.ID))
	if m.current.IsGame() {
		out.Commands = append(out.Commands, domain.GameRequestState(m.current.ID))
	}
	return out
}

// Reset returns to the public room without sending anything.
func (m *Manager) Reset() {
	if m.current.IsGame() {
		m.game.Teardown()
	}
	m.scope.Close()
	m.current = domain.PublicRoom()
	m.scope = m.root.Child("room:" + m.current.ID)
	m.log.Reset()
	m.activity.ResetRoom()
}

func (m *Manager) Messages() []domain.Message { return m.log.Messages() }

func (m *Manager) ReplaceHistory(msgs []domain.Message) domain.Outcome {
	m.log.Replace(msgs)
	return domain.Applied()
}

func (m *Manager) Append(msg domain.Message) domain.Outcome {
	if !m.log.Append(msg) {
		return domain.Ignored()
	}
	return domain.Applied()
}

func (m *Manager) MarkRead(messageID string) domain.Outcome {
	if !m.log.MarkRead(messageID) {
		return domain.Ignored()
	}
	return domain.Applied()
}

func (m *Manager) RollbackPending(authorID string) domain.Outcome {
	if _, ok := m.log.RollbackPending(authorID); !ok {
		return domain.Ignored()
	}
	return domain.Applied()
}
