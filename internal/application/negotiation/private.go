package negotiation

import (
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/hilthontt/lounge/internal/infrastructure/timers"
)

// PrivateChat negotiates 1:1 rooms. An accepted request establishes the room
// whose id both sides derive from their own ids.
type PrivateChat struct {
	hs     *Handshake
	logger logging.Logger
}

func NewPrivateChat(root *timers.Scope, emit func(domain.Outcome), requestTimeout, cooldown time.Duration, logger logging.Logger) *PrivateChat {
	policy := Policy{
		Protocol:          domain.ProtocolPrivateChat,
		CooldownOnDecline: true,
		RequestTimeout:    requestTimeout,
		Cooldown:          cooldown,
	}
	p := &PrivateChat{logger: logger}
	p.hs = NewHandshake(policy, root.Child("private"), emit, p.timedOut, logger)
	return p
}

func (p *PrivateChat) timedOut(req domain.NegotiationRequest) domain.Outcome {
	return domain.Outcome{
		Kind:     domain.OutcomeApplied,
		Commands: []domain.Command{domain.PrivateCancel(req.TargetID)},
		Notices:  []domain.Notice{{Kind: domain.NoticeInfo, Text: "Your chat request expired."}},
		Changed:  true,
	}
}

func (p *PrivateChat) Request(selfID string, peer domain.Peer, now time.Time) domain.Outcome {
	if _, out := p.hs.Request(selfID, peer.ID, now); !out.IsApplied() {
		return out
	}
	return domain.Applied(domain.PrivateInitiate(peer.ID))
}

// Incoming handles private:request_incoming. It reports true when the
// negotiation is established as a result, which happens when both sides
// requested each other.
func (p *PrivateChat) Incoming(selfID string, from domain.Peer, now time.Time) (domain.Outcome, bool) {
	arrival, _ := p.hs.Arrive(selfID, from.ID, now)
	switch arrival {
	case ArrivalPrompt:
		return domain.Applied(), false
	case ArrivalBusy:
		p.logger.Info(logging.Negotiation, logging.Handshake, "auto-declined busy", map[logging.ExtraKey]any{logging.PeerID: from.ID})
		return domain.Outcome{
			Kind:     domain.OutcomeApplied,
			Reason:   domain.ReasonBusy,
			Commands: []domain.Command{domain.PrivateDecline(from.ID, domain.ReasonBusy)},
		}, false
	case ArrivalCrossed, ArrivalEstablished:
		return domain.Applied(domain.PrivateAccept(from.ID)), true
	default:
		return domain.Ignored(), false
	}
}

func (p *PrivateChat) Accept(peerID string) (domain.Outcome, bool) {
	if _, ok := p.hs.Accept(peerID); !ok {
		return domain.Rejected(domain.ReasonNoRequest, ""), false
	}
	return domain.Applied(domain.PrivateAccept(peerID)), true
}

func (p *PrivateChat) Decline(peerID string) domain.Outcome {
	if _, ok := p.hs.Decline(peerID); !ok {
		return domain.Rejected(domain.ReasonNoRequest, "")
	}
	return domain.Applied(domain.PrivateDecline(peerID, domain.ReasonDeclined))
}

func (p *PrivateChat) Cancel(peerID string) domain.Outcome {
	if _, ok := p.hs.Cancel(peerID); !ok {
		return domain.Rejected(domain.ReasonNoRequest, "")
	}
	return domain.Applied(domain.PrivateCancel(peerID))
}

// Accepted handles private:request_accepted for our outgoing request.
func (p *PrivateChat) Accepted(peerID string, now time.Time) (domain.Outcome, bool) {
	if _, ok := p.hs.Resolve(peerID, true, "", now); !ok {
		if p.hs.IsEstablished(peerID) {
			return domain.Ignored(), true
		}
		return domain.Ignored(), false
	}
	return domain.Applied(), true
}

func (p *PrivateChat) Declined(peer domain.Peer, reason domain.Reason, now time.Time) domain.Outcome {
	if _, ok := p.hs.Resolve(peer.ID, false, reason, now); !ok {
		return domain.Ignored()
	}
	text := fmt.Sprintf("%s declined your chat request.", peer.DisplayName())
	if reason == domain.ReasonBusy {
		text = fmt.Sprintf("%s is busy right now.", peer.DisplayName())
	}
	out := domain.Applied()
	out.Reason = reason
	return out.WithNotice(domain.NoticeRefusal, text)
}

func (p *PrivateChat) Failed(peerID, text string) domain.Outcome {
	if text == "" {
		text = "Could not start a private chat."
	}
	if !p.hs.Fail(peerID) {
		return domain.Ignored().WithNotice(domain.NoticeRefusal, text)
	}
	return domain.Applied().WithNotice(domain.NoticeRefusal, text)
}

func (p *PrivateChat) PartnerLeft(peer domain.Peer) domain.Outcome {
	if !p.hs.End(peer.ID) {
		return domain.Ignored()
	}
	return domain.Applied().WithNotice(domain.NoticeInfo, peer.DisplayName()+" left the private chat.")
}

// Leave closes an established private room from our side.
func (p *PrivateChat) Leave(roomID, peerID string) domain.Outcome {
	if !p.hs.End(peerID) {
		return domain.Rejected(domain.ReasonNotAllowed, "")
	}
	return domain.Applied(domain.PrivateLeave(roomID, peerID))
}

// PeerGone forgets a peer that dropped off the user list.
func (p *PrivateChat) PeerGone(peerID string) domain.Outcome {
	if !p.hs.Forget(peerID) {
		return domain.Ignored()
	}
	return domain.Applied()
}

// Reset cancels pending requests and forgets every established room. It
// returns cancel commands for outgoing requests still pending.
func (p *PrivateChat) Reset() domain.Outcome {
	out := domain.Applied()
	for _, req := range p.hs.Pending() {
		if req.Direction == domain.Outgoing {
			out.Commands = append(out.Commands, domain.PrivateCancel(req.TargetID))
		}
	}
	p.hs.Reset()
	return out
}

func (p *PrivateChat) IsEstablished(peerID string) bool             { return p.hs.IsEstablished(peerID) }
func (p *PrivateChat) Established() mapset.Set[string]              { return p.hs.Established() }
func (p *PrivateChat) Pending() []domain.NegotiationRequest         { return p.hs.Pending() }
func (p *PrivateChat) Cooldowns(now time.Time) []string             { return p.hs.Cooldowns(now) }
func (p *PrivateChat) InCooldown(peerID string, now time.Time) bool { return p.hs.InCooldown(peerID, now) }
