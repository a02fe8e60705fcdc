package session

import (
	"errors"
	"slices"
	"strings"

	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
)

func (c *Coordinator) handleIntent(in domain.Intent) domain.Outcome {
	switch e := in.(type) {
	case domain.SubmitIdentity:
		return c.submitIdentity(e)
	case domain.Logout:
		return c.logout()
	case domain.DismissNotice:
		if c.notice == nil {
			return domain.Ignored()
		}
		c.noticeScope.Reset()
		c.notice = nil
		return domain.Applied()
	}

	if c.identity == nil {
		return domain.Rejected(domain.ReasonNoIdentity, "Set up your profile first.")
	}

	switch e := in.(type) {
	case domain.OpenPublic:
		return c.rooms.SwitchTo(domain.PublicRoom())
	case domain.OpenPrivate:
		if !c.private.IsEstablished(e.PeerID) {
			return domain.Rejected(domain.ReasonNotAllowed, "")
		}
		return c.enterPrivate(c.peer(e.PeerID))
	case domain.SendChat:
		return c.sendChat(e.Text)
	case domain.InputActivity:
		return c.activity.Input(c.rooms.Scope(), c.rooms.Current().ID)

	case domain.CreateGame:
		return c.sendGameRequest(c.game.Create(c.rooms.Current(), e.Variant))
	case domain.JoinGame:
		return c.sendGameRequest(c.game.Join(e.RoomID, e.GameID))
	case domain.StartGame:
		if !c.game.Bound() {
			return domain.Rejected(domain.ReasonNoGame, "")
		}
		return c.game.Start(c.selfID)
	case domain.StopGame:
		if !c.game.Bound() {
			return domain.Rejected(domain.ReasonNoGame, "")
		}
		return c.game.Stop(c.selfID)
	case domain.LeaveGame:
		if !c.rooms.Current().IsGame() {
			return domain.Rejected(domain.ReasonNoGame, "")
		}
		return c.rooms.SwitchTo(domain.PublicRoom())
	case domain.DrawStroke:
		return c.game.SubmitStroke(c.selfID, e.Stroke, e.CanvasWidth, e.CanvasHeight, c.now())
	case domain.ResizeCanvas:
		return c.game.Resize(e.Width, e.Height)
	case domain.ClearCanvas:
		return c.game.SubmitClear(c.selfID)
	case domain.GuessLetter:
		return c.game.Guess(c.selfID, e.Letter)

	case domain.RequestPrivate:
		peer, ok := c.roster.Get(e.PeerID)
		if !ok {
			return domain.Rejected(domain.ReasonUnknownPeer, "That user is no longer online.")
		}
		return c.private.Request(c.selfID, peer, c.now())
	case domain.AcceptPrivate:
		out, established := c.private.Accept(e.PeerID)
		if established {
			out.Merge(c.enterPrivate(c.peer(e.PeerID)))
		}
		return out
	case domain.DeclinePrivate:
		return c.private.Decline(e.PeerID)
	case domain.CancelPrivate:
		return c.private.Cancel(e.PeerID)
	case domain.LeavePrivate:
		roomID := domain.DerivePrivateRoomID(c.selfID, e.PeerID)
		return c.onPartnerLeft(e.PeerID, c.private.Leave(roomID, e.PeerID))

	case domain.StartCall:
		peer, ok := c.roster.Get(e.PeerID)
		if !ok {
			return domain.Rejected(domain.ReasonUnknownPeer, "That user is no longer online.")
		}
		return c.calls.Start(c.selfID, peer, c.now())
	case domain.AcceptCall:
		return c.calls.Accept()
	case domain.DeclineCall:
		return c.calls.Decline()
	case domain.EndCall:
		return c.calls.End()
	}
	return domain.Ignored()
}

func (c *Coordinator) submitIdentity(e domain.SubmitIdentity) domain.Outcome {
	id, err := domain.NewIdentity(e.Nickname, e.Gender, e.Age)
	if err != nil {
		text := strings.TrimPrefix(err.Error(), domain.ErrInvalidIdentity.Error()+": ")
		if !errors.Is(err, domain.ErrInvalidIdentity) {
			text = "Invalid profile."
		}
		return domain.Rejected(domain.ReasonInvalid, text)
	}
	id.SelfID = c.selfID
	c.identity = &id

	if c.store != nil {
		if err := c.store.Save(id); err != nil {
			c.logger.Warn(logging.IO, logging.IdentityGate, "could not cache identity", map[logging.ExtraKey]any{logging.ErrorMessage: err.Error()})
		}
	}
	c.logger.Info(logging.Session, logging.IdentityGate, "identity set", map[logging.ExtraKey]any{"Nickname": id.Nickname})

	if !c.connected {
		return domain.Applied()
	}
	out := domain.Applied(domain.UserInfo(id))
	out.Merge(c.rooms.Rejoin())
	return out
}

func (c *Coordinator) logout() domain.Outcome {
	if c.store != nil {
		if err := c.store.Clear(); err != nil {
			c.logger.Warn(logging.IO, logging.IdentityGate, "could not clear cached identity", map[logging.ExtraKey]any{logging.ErrorMessage: err.Error()})
		}
	}
	out := domain.Applied()
	if cur := c.rooms.Current(); cur.IsGame() {
		out.Commands = append(out.Commands, domain.GameLeave(cur.ID))
	}
	out.Merge(c.calls.Reset())
	partners := c.private.Established().ToSlice()
	slices.Sort(partners)
	for _, id := range partners {
		out.Merge(c.private.Leave(domain.DerivePrivateRoomID(c.selfID, id), id))
	}
	out.Merge(c.private.Reset())

	connected, selfID := c.connected, c.selfID
	c.Reset()
	c.connected, c.selfID = connected, selfID
	return out
}

// sendChat shows the message right away and sends it. Its read status stays
// pending until the server echoes it back.
func (c *Coordinator) sendChat(text string) domain.Outcome {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Rejected(domain.ReasonInvalid, "")
	}
	room := c.rooms.Current()
	guess := room.IsGame() && c.game.ChatIsGuess(c.selfID)

	msg := domain.NewOutgoingMessage(room.ID, *c.identity, text, c.now())
	out := c.rooms.Append(msg)
	out.Commands = append(out.Commands, domain.ChatMessageCmd(room.ID, msg.ID, text, guess))
	out.Merge(c.activity.Submitted())
	return out
}
