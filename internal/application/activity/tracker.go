package activity

import (
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/hilthontt/lounge/internal/infrastructure/timers"
)

// Tracker owns the local typing announcement, the typing indicators of other
// peers in the current room, and the set of peers with unread private messages.
type Tracker struct {
	idle   time.Duration
	emit   func(domain.Outcome)
	logger logging.Logger

	typingRoom string
	idleTimer  timers.Handle
	typists    map[string]string
	unread     mapset.Set[string]
}

// NewTracker returns a tracker that sends "stop typing" after idle of silence.
// emit receives outcomes produced by timers.
func NewTracker(idle time.Duration, emit func(domain.Outcome), logger logging.Logger) *Tracker {
	return &Tracker{
		idle:    idle,
		emit:    emit,
		logger:  logger,
		typists: make(map[string]string),
		unread:  mapset.NewThreadUnsafeSet[string](),
	}
}

// Input registers a keystroke in roomID. The first one announces typing, every
// one pushes the idle deadline back.
func (t *Tracker) Input(scope *timers.Scope, roomID string) domain.Outcome {
	out := domain.Outcome{Kind: domain.OutcomeApplied}
	if t.typingRoom != roomID {
		if t.typingRoom != "" {
			out.Commands = append(out.Commands, domain.StopTyping(t.typingRoom))
		}
		t.typingRoom = roomID
		out.Commands = append(out.Commands, domain.Typing(roomID))
	}

	t.idleTimer.Stop()
	t.idleTimer = scope.After(t.idle, func(time.Time) {
		if t.typingRoom != roomID {
			return
		}
		t.typingRoom = ""
		t.emit(domain.Outcome{Kind: domain.OutcomeApplied, Commands: []domain.Command{domain.StopTyping(roomID)}})
	})
	return out
}

// Submitted ends the typing announcement right away.
func (t *Tracker) Submitted() domain.Outcome {
	return domain.Outcome{Kind: domain.OutcomeApplied, Commands: t.stopTyping()}
}

func (t *Tracker) stopTyping() []domain.Command {
	t.idleTimer.Stop()
	t.idleTimer = timers.Handle{}
	if t.typingRoom == "" {
		return nil
	}
	room := t.typingRoom
	t.typingRoom = ""
	return []domain.Command{domain.StopTyping(room)}
}

func (t *Tracker) TypingIn() string { return t.typingRoom }

func (t *Tracker) ShowTyping(peerID, name string) domain.Outcome {
	if t.typists[peerID] == name {
		return domain.Ignored()
	}
	t.typists[peerID] = name
	return domain.Outcome{Kind: domain.OutcomeApplied, Changed: true}
}

func (t *Tracker) HideTyping(peerID string) domain.Outcome {
	if _, ok := t.typists[peerID]; !ok {
		return domain.Ignored()
	}
	delete(t.typists, peerID)
	return domain.Outcome{Kind: domain.OutcomeApplied, Changed: true}
}

// Typists returns the display names currently shown as typing.
func (t *Tracker) Typists() []string {
	names := make([]string, 0, len(t.typists))
	for _, n := range t.typists {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// ResetRoom clears the room-owned part of the tracker when the current room
// changes. A pending typing announcement is closed in the room it was made in.
func (t *Tracker) ResetRoom() domain.Outcome {
	cmds := t.stopTyping()
	changed := len(t.typists) > 0
	clear(t.typists)
	return domain.Outcome{Kind: domain.OutcomeApplied, Commands: cmds, Changed: changed}
}

func (t *Tracker) MarkUnread(peerID string) domain.Outcome {
	if !t.unread.Add(peerID) {
		return domain.Ignored()
	}
	t.logger.Debug(logging.Session, logging.Dispatch, "unread private message", map[logging.ExtraKey]any{logging.PeerID: peerID})
	return domain.Outcome{Kind: domain.OutcomeApplied, Changed: true}
}

func (t *Tracker) ClearUnread(peerID string) domain.Outcome {
	if !t.unread.Contains(peerID) {
		return domain.Ignored()
	}
	t.unread.Remove(peerID)
	return domain.Outcome{Kind: domain.OutcomeApplied, Changed: true}
}

func (t *Tracker) HasUnread(peerID string) bool { return t.unread.Contains(peerID) }

func (t *Tracker) Unread() []string {
	ids := t.unread.ToSlice()
	slices.Sort(ids)
	return ids
}

// Reset forgets everything without emitting commands.
func (t *Tracker) Reset() {
	t.idleTimer.Stop()
	t.idleTimer = timers.Handle{}
	t.typingRoom = ""
	clear(t.typists)
	t.unread.Clear()
}
