package domain

type OutcomeKind int

const (
	OutcomeApplied OutcomeKind = iota
	OutcomeRejected
	OutcomeDeferred
	OutcomeStale
	OutcomeIgnored
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeApplied:
		return "applied"
	case OutcomeRejected:
		return "rejected"
	case OutcomeDeferred:
		return "deferred"
	case OutcomeStale:
		return "stale"
	case OutcomeIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

type Reason string

const (
	ReasonDeclined     Reason = "declined"
	ReasonBusy         Reason = "busy"
	ReasonCooldown     Reason = "cooldown"
	ReasonDuplicate    Reason = "duplicate"
	ReasonTimeout      Reason = "timeout"
	ReasonCancelled    Reason = "cancelled"
	ReasonMediaDenied  Reason = "media_denied"
	ReasonInvalid      Reason = "invalid"
	ReasonNoIdentity   Reason = "no_identity"
	ReasonNotAllowed   Reason = "not_allowed"
	ReasonNotCreator   Reason = "not_creator"
	ReasonTooFew       Reason = "not_enough_players"
	ReasonNotYourTurn  Reason = "not_your_turn"
	ReasonNoGame       Reason = "no_game"
	ReasonNoRequest    Reason = "no_request"
	ReasonUnknownPeer  Reason = "unknown_peer"
	ReasonThrottled    Reason = "throttled"
	ReasonRateLimited  Reason = "rate_limited"
	ReasonSendFailed   Reason = "send_failed"
	ReasonServerError  Reason = "server_error"
	ReasonPeerLeft     Reason = "peer_left"
	ReasonReconnected  Reason = "reconnected"
	ReasonWrongPhase   Reason = "wrong_phase"
	ReasonAlreadyThere Reason = "already_there"
)

type NoticeKind string

const (
	NoticeValidation NoticeKind = "validation"
	NoticeRefusal    NoticeKind = "refusal"
	NoticeReset      NoticeKind = "reset"
	NoticeMedia      NoticeKind = "media"
	NoticeInfo       NoticeKind = "info"
)

type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// Outcome is what every handler returns: how the input was classified, the
// commands to send, the notices to surface and whether state changed.
type Outcome struct {
	Kind     OutcomeKind
	Reason   Reason
	Commands []Command
	Notices  []Notice
	Tasks    []MediaTask
	Changed  bool
}

func Applied(cmds ...Command) Outcome {
	return Outcome{Kind: OutcomeApplied, Commands: cmds, Changed: true}
}

func Deferred(cmds ...Command) Outcome {
	return Outcome{Kind: OutcomeDeferred, Commands: cmds, Changed: true}
}

func Rejected(reason Reason, text string) Outcome {
	o := Outcome{Kind: OutcomeRejected, Reason: reason}
	if text != "" {
		kind := NoticeRefusal
		if reason == ReasonInvalid {
			kind = NoticeValidation
		}
		o.Notices = []Notice{{Kind: kind, Text: text}}
	}
	return o
}

func Stale() Outcome {
	return Outcome{Kind: OutcomeStale}
}

func Ignored() Outcome {
	return Outcome{Kind: OutcomeIgnored}
}

// Merge folds other into o. The kind and reason of o are kept.
func (o *Outcome) Merge(other Outcome) {
	o.Commands = append(o.Commands, other.Commands...)
	o.Notices = append(o.Notices, other.Notices...)
	o.Tasks = append(o.Tasks, other.Tasks...)
	o.Changed = o.Changed || other.Changed
}

func (o Outcome) WithNotice(kind NoticeKind, text string) Outcome {
	o.Notices = append(o.Notices, Notice{Kind: kind, Text: text})
	return o
}

func (o Outcome) WithTasks(tasks ...MediaTask) Outcome {
	o.Tasks = append(o.Tasks, tasks...)
	return o
}

func (o Outcome) IsApplied() bool  { return o.Kind == OutcomeApplied }
func (o Outcome) IsRejected() bool { return o.Kind == OutcomeRejected }
