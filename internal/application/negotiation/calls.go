package negotiation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/hilthontt/lounge/internal/infrastructure/timers"
	"github.com/pion/webrtc/v3"
)

// Calls negotiates peer to peer audio calls. SDP and ICE payloads are opaque
// here; media work is requested as MediaTasks and its results come back as
// Media* events stamped with the call id.
type Calls struct {
	hs          *Handshake
	root        *timers.Scope
	emit        func(domain.Outcome)
	ringTimeout time.Duration
	logger      logging.Logger

	session     *domain.CallSession
	scope       *timers.Scope
	remoteOffer *webrtc.SessionDescription
	answering   bool
	signalOpen  bool
	remoteSet   bool
	localQueue  []webrtc.ICECandidateInit
	remoteQueue []webrtc.ICECandidateInit
}

func NewCalls(root *timers.Scope, emit func(domain.Outcome), ringTimeout time.Duration, logger logging.Logger) *Calls {
	c := &Calls{root: root.Child("calls"), emit: emit, ringTimeout: ringTimeout, logger: logger}
	policy := Policy{
		Protocol:            domain.ProtocolCall,
		BusyWhenEstablished: true,
		RequestTimeout:      ringTimeout,
	}
	c.hs = NewHandshake(policy, c.root, emit, c.unanswered, logger)
	return c
}

// Session returns a copy of the active call, or nil.
func (c *Calls) Session() *domain.CallSession {
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Calls) Active() bool { return c.session != nil }

func (c *Calls) current(callID string) bool {
	return c.session != nil && c.session.ID == callID
}

func (c *Calls) logExtra() map[logging.ExtraKey]any {
	if c.session == nil {
		return nil
	}
	return map[logging.ExtraKey]any{
		logging.CallID: c.session.ID,
		logging.PeerID: c.session.PartnerID,
		"Phase":        c.session.Phase,
	}
}

// Start places a call. The offer is sent once the media engine produced it.
func (c *Calls) Start(selfID string, peer domain.Peer, now time.Time) domain.Outcome {
	if c.session != nil {
		return domain.Rejected(domain.ReasonBusy, "You are already in a call.")
	}
	if _, out := c.hs.Request(selfID, peer.ID, now); !out.IsApplied() {
		return out
	}

	c.open(&domain.CallSession{
		ID:        uuid.NewString(),
		PartnerID: peer.ID,
		Phase:     domain.CallPhaseOffering,
		Outgoing:  true,
		StartedAt: now,
	})
	c.logger.Info(logging.Media, logging.Signaling, "placing call", c.logExtra())
	return domain.Applied().WithTasks(domain.MediaTask{Kind: domain.MediaCreateOffer, CallID: c.session.ID})
}

func (c *Calls) open(s *domain.CallSession) {
	c.session = s
	c.scope = c.root.Child("call:" + s.ID)
}

// OfferReady sends the local offer and any candidates gathered before it.
func (c *Calls) OfferReady(ev domain.MediaOfferReady) domain.Outcome {
	if !c.current(ev.CallID) || c.session.Phase != domain.CallPhaseOffering || c.session.Local != nil {
		return releaseStale(ev.CallID, ev.Stream)
	}
	c.session.Local = ev.Stream
	c.signalOpen = true

	out := domain.Applied(domain.CallOffer(c.session.PartnerID, c.session.ID, ev.Offer))
	out.Commands = append(out.Commands, c.flushLocal()...)
	return out
}

func releaseStale(callID string, streams ...domain.MediaStream) domain.Outcome {
	out := domain.Stale()
	var held []domain.MediaStream
	for _, s := range streams {
		if s != nil {
			held = append(held, s)
		}
	}
	if len(held) > 0 {
		out.Tasks = []domain.MediaTask{{Kind: domain.MediaRelease, CallID: callID, Streams: held}}
	}
	return out
}

// Incoming handles call:incoming. A second call while one is active, or
// while another call negotiation is pending, is declined as busy without
// prompting.
func (c *Calls) Incoming(selfID string, from domain.Peer, callID string, offer webrtc.SessionDescription, now time.Time) domain.Outcome {
	if c.current(callID) {
		return domain.Ignored()
	}
	busy := domain.Outcome{
		Kind:     domain.OutcomeApplied,
		Reason:   domain.ReasonBusy,
		Commands: []domain.Command{domain.CallDecline(from.ID, callID, domain.ReasonBusy)},
	}
	if c.session != nil {
		c.logger.Info(logging.Media, logging.Signaling, "auto-declined busy call", map[logging.ExtraKey]any{logging.PeerID: from.ID, logging.CallID: callID})
		return busy
	}
	arrival, _ := c.hs.Arrive(selfID, from.ID, now)
	if arrival != ArrivalPrompt {
		return busy
	}

	c.open(&domain.CallSession{
		ID:        callID,
		PartnerID: from.ID,
		Phase:     domain.CallPhaseRinging,
		StartedAt: now,
	})
	c.remoteOffer = &offer
	if c.ringTimeout > 0 {
		c.scope.After(c.ringTimeout, func(time.Time) {
			c.emit(c.missed(callID))
		})
	}
	return domain.Applied()
}

// missed declines a call that rang for the whole ring timeout without being
// picked up.
func (c *Calls) missed(callID string) domain.Outcome {
	if !c.current(callID) || c.session.Phase != domain.CallPhaseRinging || c.answering {
		return domain.Ignored()
	}
	c.hs.Decline(c.session.PartnerID)
	out := domain.Applied(domain.CallDecline(c.session.PartnerID, callID, domain.ReasonTimeout))
	out.Merge(c.finish())
	out.Reason = domain.ReasonTimeout
	return out.WithNotice(domain.NoticeInfo, "Missed call.")
}

// Accept answers the ringing call. Connected is only reached once the answer
// was created and handed to the transport.
func (c *Calls) Accept() domain.Outcome {
	if c.session == nil || c.session.Phase != domain.CallPhaseRinging || c.answering {
		return domain.Rejected(domain.ReasonNoRequest, "")
	}
	if _, ok := c.hs.Accept(c.session.PartnerID); !ok {
		return domain.Rejected(domain.ReasonNoRequest, "")
	}
	c.answering = true
	return domain.Applied().WithTasks(domain.MediaTask{
		Kind:   domain.MediaCreateAnswer,
		CallID: c.session.ID,
		Remote: c.remoteOffer,
	})
}

// AnswerReady returns the call:answer command. The caller must report the
// transport result through AnswerTransmitted or Abort.
func (c *Calls) AnswerReady(ev domain.MediaAnswerReady) domain.Outcome {
	if !c.current(ev.CallID) || !c.answering || c.session.Local != nil {
		return releaseStale(ev.CallID, ev.Stream)
	}
	c.session.Local = ev.Stream
	c.remoteSet = true

	out := domain.Applied(domain.CallAnswer(c.session.PartnerID, c.session.ID, ev.Answer))
	out.Tasks = c.flushRemote()
	return out
}

// AnswerTransmitted completes the answering side once call:answer was sent.
func (c *Calls) AnswerTransmitted(callID string) domain.Outcome {
	if !c.current(callID) || !c.answering {
		return domain.Stale()
	}
	c.answering = false
	c.signalOpen = true
	c.session.Phase = domain.CallPhaseConnected
	c.logger.Info(logging.Media, logging.Signaling, "call connected", c.logExtra())
	return domain.Applied(c.flushLocal()...)
}

func (c *Calls) Decline() domain.Outcome {
	if c.session == nil || c.session.Phase != domain.CallPhaseRinging || c.answering {
		return domain.Rejected(domain.ReasonNoRequest, "")
	}
	c.hs.Decline(c.session.PartnerID)
	out := domain.Applied(domain.CallDecline(c.session.PartnerID, c.session.ID, domain.ReasonDeclined))
	out.Merge(c.finish())
	return out
}

func (c *Calls) AnswerReceived(peerID, callID string, answer webrtc.SessionDescription, now time.Time) domain.Outcome {
	if !c.current(callID) || c.session.PartnerID != peerID || c.session.Phase != domain.CallPhaseOffering || !c.signalOpen {
		return domain.Stale()
	}
	c.hs.Resolve(peerID, true, "", now)
	c.session.Phase = domain.CallPhaseConnected
	c.remoteSet = true

	out := domain.Applied().WithTasks(domain.MediaTask{Kind: domain.MediaApplyAnswer, CallID: callID, Remote: &answer})
	out.Tasks = append(out.Tasks, c.flushRemote()...)
	c.logger.Info(logging.Media, logging.Signaling, "call connected", c.logExtra())
	return out
}

// RemoteCandidate queues candidates until the remote description is set.
func (c *Calls) RemoteCandidate(peerID, callID string, cand webrtc.ICECandidateInit) domain.Outcome {
	if !c.current(callID) || c.session.PartnerID != peerID {
		return domain.Stale()
	}
	if !c.remoteSet {
		c.remoteQueue = append(c.remoteQueue, cand)
		return domain.Outcome{Kind: domain.OutcomeDeferred}
	}
	return domain.Outcome{Kind: domain.OutcomeApplied}.WithTasks(domain.MediaTask{Kind: domain.MediaAddCandidate, CallID: callID, Candidate: &cand})
}

// LocalCandidate queues candidates until our offer or answer went out.
func (c *Calls) LocalCandidate(callID string, cand webrtc.ICECandidateInit) domain.Outcome {
	if !c.current(callID) {
		return domain.Stale()
	}
	if !c.signalOpen {
		c.localQueue = append(c.localQueue, cand)
		return domain.Outcome{Kind: domain.OutcomeDeferred}
	}
	return domain.Outcome{
		Kind:     domain.OutcomeApplied,
		Commands: []domain.Command{domain.CallICECandidate(c.session.PartnerID, callID, cand)},
	}
}

func (c *Calls) flushLocal() []domain.Command {
	cmds := make([]domain.Command, 0, len(c.localQueue))
	for _, cand := range c.localQueue {
		cmds = append(cmds, domain.CallICECandidate(c.session.PartnerID, c.session.ID, cand))
	}
	c.localQueue = nil
	return cmds
}

func (c *Calls) flushRemote() []domain.MediaTask {
	tasks := make([]domain.MediaTask, 0, len(c.remoteQueue))
	for _, cand := range c.remoteQueue {
		tasks = append(tasks, domain.MediaTask{Kind: domain.MediaAddCandidate, CallID: c.session.ID, Candidate: &cand})
	}
	c.remoteQueue = nil
	return tasks
}

func (c *Calls) RemoteStream(ev domain.MediaRemoteStream) domain.Outcome {
	if !c.current(ev.CallID) {
		return releaseStale(ev.CallID, ev.Stream)
	}
	c.session.Remote = ev.Stream
	return domain.Applied()
}

func (c *Calls) Declined(peer domain.Peer, callID string, reason domain.Reason, now time.Time) domain.Outcome {
	if !c.current(callID) || c.session.PartnerID != peer.ID || !c.session.Outgoing {
		return domain.Stale()
	}
	c.hs.Resolve(peer.ID, false, reason, now)

	text := fmt.Sprintf("%s declined the call.", peer.DisplayName())
	switch reason {
	case domain.ReasonBusy:
		text = fmt.Sprintf("%s is in another call.", peer.DisplayName())
	case domain.ReasonMediaDenied:
		text = fmt.Sprintf("%s could not use their microphone.", peer.DisplayName())
	}
	out := c.finish().WithNotice(domain.NoticeRefusal, text)
	out.Reason = reason
	return out
}

func (c *Calls) Ended(peer domain.Peer, callID string) domain.Outcome {
	if !c.current(callID) || c.session.PartnerID != peer.ID {
		return domain.Stale()
	}
	return c.finish().WithNotice(domain.NoticeInfo, "Call ended.")
}

// End hangs up. A ringing call that was not accepted yet is declined instead.
func (c *Calls) End() domain.Outcome {
	if c.session == nil {
		return domain.Rejected(domain.ReasonNoRequest, "")
	}
	if c.session.Phase == domain.CallPhaseRinging && !c.answering {
		return c.Decline()
	}
	out := domain.Applied(domain.CallEnd(c.session.PartnerID, c.session.ID))
	out.Merge(c.finish())
	return out
}

// MediaFailed aborts the call when local media could not be acquired or
// negotiated, and tells the peer so it does not wait.
func (c *Calls) MediaFailed(callID string, err error) domain.Outcome {
	if !c.current(callID) {
		return domain.Stale()
	}
	c.logger.Warn(logging.Media, logging.Signaling, "media failed", map[logging.ExtraKey]any{
		logging.CallID:       callID,
		logging.ErrorMessage: fmt.Sprint(err),
	})

	var cmd domain.Command
	if c.session.Outgoing {
		cmd = domain.CallEnd(c.session.PartnerID, callID)
	} else {
		cmd = domain.CallDecline(c.session.PartnerID, callID, domain.ReasonMediaDenied)
	}
	out := domain.Applied(cmd)
	out.Merge(c.finish())
	out.Reason = domain.ReasonMediaDenied
	return out.WithNotice(domain.NoticeMedia, "Could not access the microphone.")
}

// Abort ends the call locally without signaling, for when the transport
// itself failed.
func (c *Calls) Abort(callID string, reason domain.Reason) domain.Outcome {
	if !c.current(callID) {
		return domain.Stale()
	}
	out := c.finish()
	out.Reason = reason
	return out.WithNotice(domain.NoticeMedia, "The call was interrupted.")
}

func (c *Calls) unanswered(req domain.NegotiationRequest) domain.Outcome {
	if c.session == nil || !c.session.Outgoing || c.session.PartnerID != req.TargetID || c.session.Phase != domain.CallPhaseOffering {
		return domain.Ignored()
	}
	out := domain.Applied()
	if c.signalOpen {
		out.Commands = append(out.Commands, domain.CallEnd(c.session.PartnerID, c.session.ID))
	}
	out.Merge(c.finish())
	out.Reason = domain.ReasonTimeout
	return out.WithNotice(domain.NoticeInfo, "No answer.")
}

// PeerGone ends the call silently when the partner left the user list.
func (c *Calls) PeerGone(peerID string) domain.Outcome {
	c.hs.Forget(peerID)
	if c.session == nil || c.session.PartnerID != peerID {
		return domain.Ignored()
	}
	return c.finish().WithNotice(domain.NoticeInfo, "The other side disconnected.")
}

// Reset hangs up and releases media.
func (c *Calls) Reset() domain.Outcome {
	if c.session == nil {
		c.hs.Reset()
		return domain.Ignored()
	}
	out := domain.Applied(domain.CallEnd(c.session.PartnerID, c.session.ID))
	out.Merge(c.finish())
	c.hs.Reset()
	return out
}

// finish tears the session down and releases whatever media it held.
func (c *Calls) finish() domain.Outcome {
	out := domain.Applied()
	if c.session == nil {
		return out
	}
	s := c.session
	s.Phase = domain.CallPhaseEnded
	c.hs.Forget(s.PartnerID)

	var streams []domain.MediaStream
	for _, m := range []domain.MediaStream{s.Local, s.Remote} {
		if m != nil {
			streams = append(streams, m)
		}
	}
	out.Tasks = append(out.Tasks, domain.MediaTask{Kind: domain.MediaRelease, CallID: s.ID, Streams: streams})

	c.logger.Info(logging.Media, logging.Signaling, "call finished", c.logExtra())
	if c.scope != nil {
		c.scope.Close()
	}
	c.session = nil
	c.scope = nil
	c.remoteOffer = nil
	c.answering = false
	c.signalOpen = false
	c.remoteSet = false
	c.localQueue = nil
	c.remoteQueue = nil
	return out
}
