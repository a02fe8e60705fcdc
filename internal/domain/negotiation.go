package domain

import (
	"time"

	"github.com/google/uuid"
)

type Protocol string

const (
	ProtocolPrivateChat Protocol = "private"
	ProtocolCall        Protocol = "call"
)

type NegotiationStatus string

const (
	NegotiationPending   NegotiationStatus = "pending"
	NegotiationAccepted  NegotiationStatus = "accepted"
	NegotiationDeclined  NegotiationStatus = "declined"
	NegotiationCancelled NegotiationStatus = "cancelled"
)

type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

type NegotiationRequest struct {
	ID          string            `json:"id"`
	Protocol    Protocol          `json:"protocol"`
	InitiatorID string            `json:"initiatorId"`
	TargetID    string            `json:"targetId"`
	Direction   Direction         `json:"direction"`
	Status      NegotiationStatus `json:"status"`
	Reason      Reason            `json:"reason,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func NewNegotiationRequest(p Protocol, initiator, target string, dir Direction, now time.Time) NegotiationRequest {
	return NegotiationRequest{
		ID:          uuid.NewString(),
		Protocol:    p,
		InitiatorID: initiator,
		TargetID:    target,
		Direction:   dir,
		Status:      NegotiationPending,
		CreatedAt:   now,
	}
}

// PeerID is the participant on the other side from the local user.
func (r NegotiationRequest) PeerID() string {
	if r.Direction == Outgoing {
		return r.TargetID
	}
	return r.InitiatorID
}

func (r NegotiationRequest) Pending() bool {
	return r.Status == NegotiationPending
}
