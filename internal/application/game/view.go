package game

import (
	"github.com/hilthontt/lounge/internal/domain"
)

type Phase string

const (
	PhaseNone  Phase = "none"
	PhaseLobby Phase = "lobby"
	PhaseRound Phase = "round"
	PhaseOver  Phase = "over"
)

// View is the derived, renderer-facing picture of the current game. It is
// recomputed from the last snapshot and never stored.
type View struct {
	RoomID           string               `json:"roomId"`
	Variant          domain.GameVariant   `json:"variant"`
	Phase            Phase                `json:"phase"`
	IsCreator        bool                 `json:"isCreator"`
	IsPlayer         bool                 `json:"isPlayer"`
	CanStart         bool                 `json:"canStart"`
	CanStop          bool                 `json:"canStop"`
	CanJoin          bool                 `json:"canJoin"`
	CanDraw          bool                 `json:"canDraw"`
	CanGuess         bool                 `json:"canGuess"`
	SecondsRemaining int                  `json:"secondsRemaining"`
	WordPrompt       string               `json:"wordPrompt,omitempty"`
	Doodle           *domain.DoodleState  `json:"doodle,omitempty"`
	Strokes          []domain.Stroke      `json:"strokes,omitempty"`
	Hangman          *domain.HangmanState `json:"hangman,omitempty"`
	Result           *domain.GameResult   `json:"result,omitempty"`
	PendingJoin      bool                 `json:"pendingJoin"`
}
