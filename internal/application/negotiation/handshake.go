package negotiation

import (
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/hilthontt/lounge/internal/infrastructure/timers"
)

// Policy is what differs between the protocols built on Handshake.
type Policy struct {
	Protocol domain.Protocol
	// BusyWhenEstablished declines new requests while any negotiation of the
	// protocol is established (one call at a time).
	BusyWhenEstablished bool
	// CooldownOnDecline blocks re-requesting a peer that declined.
	CooldownOnDecline bool
	// RequestTimeout rolls back an unanswered outgoing request. Zero disables it.
	RequestTimeout time.Duration
	// Cooldown is how long a decline blocks re-requesting. Zero never expires.
	Cooldown time.Duration
}

// Arrival classifies an incoming request.
type Arrival int

const (
	ArrivalPrompt Arrival = iota
	ArrivalDuplicate
	ArrivalCrossed
	ArrivalBusy
	ArrivalEstablished
)

type pendingRequest struct {
	req   domain.NegotiationRequest
	scope *timers.Scope
}

// Handshake tracks the request/accept/decline/cancel state of one protocol,
// keyed by peer. At most one request is pending at a time.
type Handshake struct {
	policy    Policy
	root      *timers.Scope
	emit      func(domain.Outcome)
	onTimeout func(domain.NegotiationRequest) domain.Outcome
	logger    logging.Logger

	pending     map[string]*pendingRequest
	established mapset.Set[string]
	cooldown    map[string]time.Time
}

func NewHandshake(policy Policy, root *timers.Scope, emit func(domain.Outcome), onTimeout func(domain.NegotiationRequest) domain.Outcome, logger logging.Logger) *Handshake {
	return &Handshake{
		policy:      policy,
		root:        root,
		emit:        emit,
		onTimeout:   onTimeout,
		logger:      logger,
		pending:     make(map[string]*pendingRequest),
		established: mapset.NewThreadUnsafeSet[string](),
		cooldown:    make(map[string]time.Time),
	}
}

func (h *Handshake) busy() bool {
	if len(h.pending) > 0 {
		return true
	}
	return h.policy.BusyWhenEstablished && h.established.Cardinality() > 0
}

// Request opens an outgoing negotiation with peerID. Refusals are decided
// locally and nothing is sent for them.
func (h *Handshake) Request(selfID, peerID string, now time.Time) (domain.NegotiationRequest, domain.Outcome) {
	switch {
	case peerID == "" || peerID == selfID:
		return domain.NegotiationRequest{}, domain.Rejected(domain.ReasonInvalid, "")
	case h.established.Contains(peerID):
		return domain.NegotiationRequest{}, domain.Outcome{Kind: domain.OutcomeRejected, Reason: domain.ReasonAlreadyThere}
	case h.pending[peerID] != nil:
		return domain.NegotiationRequest{}, domain.Rejected(domain.ReasonDuplicate, "A request with this user is already pending.")
	case h.InCooldown(peerID, now):
		return domain.NegotiationRequest{}, domain.Rejected(domain.ReasonCooldown, "This user declined your last request.")
	case h.busy():
		return domain.NegotiationRequest{}, domain.Rejected(domain.ReasonBusy, "Finish your other request first.")
	}

	req := domain.NewNegotiationRequest(h.policy.Protocol, selfID, peerID, domain.Outgoing, now)
	p := &pendingRequest{req: req, scope: h.root.Child(string(h.policy.Protocol) + ":" + req.ID)}
	h.pending[peerID] = p

	if h.policy.RequestTimeout > 0 {
		p.scope.After(h.policy.RequestTimeout, func(time.Time) { h.expire(peerID, req.ID) })
	}

	h.logger.Info(logging.Negotiation, logging.Handshake, "request sent", map[logging.ExtraKey]any{
		logging.PeerID: peerID,
		"Protocol":     h.policy.Protocol,
	})
	return req, domain.Applied()
}

func (h *Handshake) expire(peerID, reqID string) {
	p, ok := h.pending[peerID]
	if !ok || p.req.ID != reqID {
		return
	}
	h.drop(peerID)

	req := p.req
	req.Status = domain.NegotiationCancelled
	req.Reason = domain.ReasonTimeout
	h.logger.Info(logging.Negotiation, logging.Handshake, "request timed out", map[logging.ExtraKey]any{
		logging.PeerID: peerID,
		"Protocol":     h.policy.Protocol,
	})

	out := domain.Outcome{Kind: domain.OutcomeApplied, Changed: true}
	if h.onTimeout != nil {
		out.Merge(h.onTimeout(req))
	}
	h.emit(out)
}

func (h *Handshake) drop(peerID string) (domain.NegotiationRequest, bool) {
	p, ok := h.pending[peerID]
	if !ok {
		return domain.NegotiationRequest{}, false
	}
	p.scope.Close()
	delete(h.pending, peerID)
	return p.req, true
}

func (h *Handshake) pendingIn(peerID string, dir domain.Direction) bool {
	p, ok := h.pending[peerID]
	return ok && p.req.Direction == dir
}

// Arrive registers a request from peerID. A peer initiating toward us lifts
// any cooldown we hold against them.
func (h *Handshake) Arrive(selfID, peerID string, now time.Time) (Arrival, domain.NegotiationRequest) {
	delete(h.cooldown, peerID)

	switch {
	case h.established.Contains(peerID):
		return ArrivalEstablished, domain.NegotiationRequest{}
	case h.pendingIn(peerID, domain.Outgoing):
		req, _ := h.drop(peerID)
		req.Status = domain.NegotiationAccepted
		h.established.Add(peerID)
		return ArrivalCrossed, req
	case h.pendingIn(peerID, domain.Incoming):
		return ArrivalDuplicate, h.pending[peerID].req
	case h.busy():
		return ArrivalBusy, domain.NegotiationRequest{}
	}

	req := domain.NewNegotiationRequest(h.policy.Protocol, peerID, selfID, domain.Incoming, now)
	h.pending[peerID] = &pendingRequest{req: req, scope: h.root.Child(string(h.policy.Protocol) + ":" + req.ID)}
	return ArrivalPrompt, req
}

// Accept answers an incoming request and establishes the negotiation.
func (h *Handshake) Accept(peerID string) (domain.NegotiationRequest, bool) {
	if !h.pendingIn(peerID, domain.Incoming) {
		return domain.NegotiationRequest{}, false
	}
	req, _ := h.drop(peerID)
	req.Status = domain.NegotiationAccepted
	h.established.Add(peerID)
	return req, true
}

func (h *Handshake) Decline(peerID string) (domain.NegotiationRequest, bool) {
	if !h.pendingIn(peerID, domain.Incoming) {
		return domain.NegotiationRequest{}, false
	}
	req, _ := h.drop(peerID)
	req.Status = domain.NegotiationDeclined
	req.Reason = domain.ReasonDeclined
	return req, true
}

func (h *Handshake) Cancel(peerID string) (domain.NegotiationRequest, bool) {
	if !h.pendingIn(peerID, domain.Outgoing) {
		return domain.NegotiationRequest{}, false
	}
	req, _ := h.drop(peerID)
	req.Status = domain.NegotiationCancelled
	req.Reason = domain.ReasonCancelled
	return req, true
}

// Resolve applies the remote answer to our outgoing request. Only an explicit
// decline starts the cooldown; busy does not.
func (h *Handshake) Resolve(peerID string, accepted bool, reason domain.Reason, now time.Time) (domain.NegotiationRequest, bool) {
	if !h.pendingIn(peerID, domain.Outgoing) {
		return domain.NegotiationRequest{}, false
	}
	req, _ := h.drop(peerID)
	if accepted {
		req.Status = domain.NegotiationAccepted
		h.established.Add(peerID)
		return req, true
	}

	req.Status = domain.NegotiationDeclined
	req.Reason = reason
	if h.policy.CooldownOnDecline && (reason == domain.ReasonDeclined || reason == "") {
		h.cooldown[peerID] = now
	}
	return req, true
}

// Fail rolls back our outgoing request after a server refusal.
func (h *Handshake) Fail(peerID string) bool {
	if !h.pendingIn(peerID, domain.Outgoing) {
		return false
	}
	h.drop(peerID)
	return true
}

// End closes an established negotiation.
func (h *Handshake) End(peerID string) bool {
	if !h.established.Contains(peerID) {
		return false
	}
	h.established.Remove(peerID)
	return true
}

// Forget drops everything held about peerID, cooldown included.
func (h *Handshake) Forget(peerID string) bool {
	_, hadPending := h.drop(peerID)
	hadEstablished := h.End(peerID)
	delete(h.cooldown, peerID)
	return hadPending || hadEstablished
}

func (h *Handshake) InCooldown(peerID string, now time.Time) bool {
	since, ok := h.cooldown[peerID]
	if !ok {
		return false
	}
	if h.policy.Cooldown > 0 && now.Sub(since) >= h.policy.Cooldown {
		delete(h.cooldown, peerID)
		return false
	}
	return true
}

func (h *Handshake) Cooldowns(now time.Time) []string {
	ids := make([]string, 0, len(h.cooldown))
	for id := range h.cooldown {
		if h.InCooldown(id, now) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (h *Handshake) PendingWith(peerID string) (domain.NegotiationRequest, bool) {
	p, ok := h.pending[peerID]
	if !ok {
		return domain.NegotiationRequest{}, false
	}
	return p.req, true
}

func (h *Handshake) Pending() []domain.NegotiationRequest {
	out := make([]domain.NegotiationRequest, 0, len(h.pending))
	for _, p := range h.pending {
		out = append(out, p.req)
	}
	slices.SortFunc(out, func(a, b domain.NegotiationRequest) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (h *Handshake) IsEstablished(peerID string) bool { return h.established.Contains(peerID) }

func (h *Handshake) Established() mapset.Set[string] { return h.established.Clone() }

func (h *Handshake) Reset() {
	for id := range h.pending {
		h.drop(id)
	}
	h.established.Clear()
	clear(h.cooldown)
}
