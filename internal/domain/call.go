package domain

import (
	"time"

	"github.com/pion/webrtc/v3"
)

type CallPhase string

const (
	CallPhaseIdle      CallPhase = "idle"
	CallPhaseOffering  CallPhase = "offering"
	CallPhaseRinging   CallPhase = "ringing"
	CallPhaseConnected CallPhase = "connected"
	CallPhaseEnded     CallPhase = "ended"
)

// MediaStream is a local or remote media handle owned by the media engine.
type MediaStream interface {
	ID() string
	Release()
}

type CallSession struct {
	ID        string      `json:"id"`
	PartnerID string      `json:"partnerId"`
	Phase     CallPhase   `json:"phase"`
	Outgoing  bool        `json:"outgoing"`
	Local     MediaStream `json:"-"`
	Remote    MediaStream `json:"-"`
	StartedAt time.Time   `json:"startedAt"`
}

type MediaTaskKind string

const (
	MediaCreateOffer  MediaTaskKind = "create_offer"
	MediaCreateAnswer MediaTaskKind = "create_answer"
	MediaApplyAnswer  MediaTaskKind = "apply_answer"
	MediaAddCandidate MediaTaskKind = "add_candidate"
	MediaRelease      MediaTaskKind = "release"
)

// MediaTask is an effect requested by the call negotiation. It runs outside
// the controller and reports back through a Media* event stamped with CallID.
type MediaTask struct {
	Kind      MediaTaskKind              `json:"kind"`
	CallID    string                     `json:"callId"`
	Remote    *webrtc.SessionDescription `json:"remote,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Streams   []MediaStream              `json:"-"`
}
