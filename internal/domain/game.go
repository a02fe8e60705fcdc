package domain

import (
	"errors"
	"maps"
	"slices"
	"time"
)

var (
	ErrUnknownVariant = errors.New("unknown game variant")
	ErrInvalidCanvas  = errors.New("canvas size must be positive")
)

type GameVariant string

const (
	VariantDoodle  GameVariant = "doodle"
	VariantHangman GameVariant = "hangman"
)

func ParseVariant(s string) (GameVariant, error) {
	switch GameVariant(s) {
	case VariantDoodle, VariantHangman:
		return GameVariant(s), nil
	default:
		return "", ErrUnknownVariant
	}
}

func (v GameVariant) Title() string {
	switch v {
	case VariantDoodle:
		return "Doodle Dash"
	case VariantHangman:
		return "Hangman"
	default:
		return "Game"
	}
}

// PlayerGate reports whether n players are enough to start a round of v.
func (v GameVariant) PlayerGate(n int) bool {
	switch v {
	case VariantDoodle:
		return n >= 2
	case VariantHangman:
		return n == 2
	default:
		return false
	}
}

// Stroke is a single line segment. Coordinates on the wire are normalized to
// the unit square so peers with different canvas sizes agree.
type Stroke struct {
	X0    float64 `json:"x0"`
	Y0    float64 `json:"y0"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

func clampUnit(v float64) float64 {
	return min(max(v, 0), 1)
}

func (s Stroke) Normalize(width, height float64) (Stroke, error) {
	if width <= 0 || height <= 0 {
		return Stroke{}, ErrInvalidCanvas
	}
	s.X0 = clampUnit(s.X0 / width)
	s.X1 = clampUnit(s.X1 / width)
	s.Y0 = clampUnit(s.Y0 / height)
	s.Y1 = clampUnit(s.Y1 / height)
	return s, nil
}

func (s Stroke) Denormalize(width, height float64) Stroke {
	s.X0 *= width
	s.X1 *= width
	s.Y0 *= height
	s.Y1 *= height
	return s
}

// GameState is the last authoritative snapshot of a game. Implementations are
// replaced wholesale on every state event and never patched field by field,
// except for the append-only drawing history.
type GameState interface {
	Variant() GameVariant
	Creator() string
	PlayerIDs() []string
	Active() bool
	Deadline() time.Time
	Clone() GameState
}

type DoodleState struct {
	RoundActive    bool           `json:"roundActive"`
	DrawerID       string         `json:"drawerId"`
	RoundEndTime   time.Time      `json:"roundEndTime"`
	Scores         map[string]int `json:"scores"`
	CreatorID      string         `json:"creatorId"`
	Players        []Peer         `json:"players"`
	DrawingHistory []Stroke       `json:"drawingHistory"`
}

func (s *DoodleState) Variant() GameVariant { return VariantDoodle }
func (s *DoodleState) Creator() string      { return s.CreatorID }
func (s *DoodleState) Active() bool         { return s.RoundActive }
func (s *DoodleState) Deadline() time.Time  { return s.RoundEndTime }
func (s *DoodleState) PlayerIDs() []string  { return peerIDs(s.Players) }

func (s *DoodleState) Clone() GameState {
	c := *s
	c.Scores = maps.Clone(s.Scores)
	c.Players = slices.Clone(s.Players)
	c.DrawingHistory = slices.Clone(s.DrawingHistory)
	return &c
}

type HangmanState struct {
	RoundActive      bool      `json:"roundActive"`
	CurrentTurnID    string    `json:"currentTurnId"`
	TurnEndTime      time.Time `json:"turnEndTime"`
	DisplayWord      []string  `json:"displayWord"`
	IncorrectGuesses []string  `json:"incorrectGuesses"`
	IsGameOver       bool      `json:"isGameOver"`
	WinnerID         string    `json:"winnerId,omitempty"`
	CreatorID        string    `json:"creatorId"`
	Players          []Peer    `json:"players"`
}

func (s *HangmanState) Variant() GameVariant { return VariantHangman }
func (s *HangmanState) Creator() string      { return s.CreatorID }
func (s *HangmanState) Active() bool         { return s.RoundActive && !s.IsGameOver }
func (s *HangmanState) Deadline() time.Time  { return s.TurnEndTime }
func (s *HangmanState) PlayerIDs() []string  { return peerIDs(s.Players) }

func (s *HangmanState) Clone() GameState {
	c := *s
	c.DisplayWord = slices.Clone(s.DisplayWord)
	c.IncorrectGuesses = slices.Clone(s.IncorrectGuesses)
	c.Players = slices.Clone(s.Players)
	return &c
}

// Guessed reports whether letter was already tried, either revealed in the
// display word or listed as a miss.
func (s *HangmanState) Guessed(letter string) bool {
	return slices.Contains(s.DisplayWord, letter) || slices.Contains(s.IncorrectGuesses, letter)
}

func peerIDs(peers []Peer) []string {
	ids := make([]string, 0, len(peers))
	for _, p := range peers {
		ids = append(ids, p.ID)
	}
	return ids
}

// GameResult is what remains of a game after game:over destroyed its state.
type GameResult struct {
	Variant  GameVariant    `json:"variant"`
	WinnerID string         `json:"winnerId,omitempty"`
	Winner   string         `json:"winner,omitempty"`
	Scores   map[string]int `json:"scores,omitempty"`
	Word     string         `json:"word,omitempty"`
}
