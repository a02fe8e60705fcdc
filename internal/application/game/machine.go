package game

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/hilthontt/lounge/internal/infrastructure/timers"
	"golang.org/x/time/rate"
)

type Config struct {
	StrokeRate  float64
	StrokeBurst int
}

// Machine holds the game of the current room. The server is authoritative:
// every game:state replaces the snapshot, and local intents are only checked
// against the last snapshot before being sent.
type Machine struct {
	cfg    Config
	emit   func(domain.Outcome)
	logger logging.Logger

	room      domain.Room
	scope     *timers.Scope
	countdown *timers.Scope
	gen       uint64

	state       domain.GameState
	remaining   int
	wordPrompt  string
	result      *domain.GameResult
	pendingJoin string
	limiter     *rate.Limiter

	canvasWidth  float64
	canvasHeight float64
}

func NewMachine(cfg Config, emit func(domain.Outcome), logger logging.Logger) *Machine {
	if cfg.StrokeRate <= 0 {
		cfg.StrokeRate = 60
	}
	if cfg.StrokeBurst <= 0 {
		cfg.StrokeBurst = 20
	}
	return &Machine{
		cfg:     cfg,
		emit:    emit,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.StrokeRate), cfg.StrokeBurst),
	}
}

// Enter binds the machine to a game room. scope is owned by the room and is
// closed by the room manager when the room is left.
func (m *Machine) Enter(room domain.Room, scope *timers.Scope) {
	m.clear()
	m.room = room
	m.scope = scope
	m.pendingJoin = ""
}

// Teardown destroys the game state and cancels every game timer.
func (m *Machine) Teardown() {
	if m.scope != nil {
		m.scope.Close()
	}
	m.clear()
	m.room = domain.Room{}
	m.scope = nil
}

func (m *Machine) clear() {
	m.gen++
	if m.countdown != nil {
		m.countdown.Close()
		m.countdown = nil
	}
	m.state = nil
	m.remaining = 0
	m.wordPrompt = ""
	m.result = nil
}

func (m *Machine) Bound() bool                { return m.room.ID != "" }
func (m *Machine) Room() domain.Room          { return m.room }
func (m *Machine) State() domain.GameState    { return m.state }
func (m *Machine) Result() *domain.GameResult { return m.result }
func (m *Machine) SecondsRemaining() int      { return m.remaining }

// ApplySnapshot replaces the game state wholesale and re-arms the countdown
// against the snapshot's absolute deadline.
func (m *Machine) ApplySnapshot(state domain.GameState, now time.Time) domain.Outcome {
	if !m.Bound() {
		return domain.Stale()
	}
	if state == nil {
		return domain.Ignored()
	}
	if state.Variant() != m.room.Variant && m.room.Variant != "" {
		m.logger.Warn(logging.Game, logging.Snapshot, "snapshot variant does not match room", map[logging.ExtraKey]any{
			logging.RoomID:  m.room.ID,
			logging.Variant: state.Variant(),
		})
		return domain.Ignored()
	}

	m.state = state
	if state.Active() {
		m.result = nil
	}
	m.armCountdown(now)
	return domain.Applied()
}

func secondsUntil(deadline, now time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func (m *Machine) armCountdown(now time.Time) {
	if m.countdown != nil {
		m.countdown.Close()
		m.countdown = nil
	}
	m.gen++

	if m.state == nil || !m.state.Active() || m.scope == nil {
		m.remaining = 0
		return
	}
	deadline := m.state.Deadline()
	m.remaining = secondsUntil(deadline, now)
	if m.remaining == 0 {
		return
	}

	gen, roomID := m.gen, m.room.ID
	countdown := m.scope.Child("countdown")
	update := func(now time.Time) {
		if m.gen != gen || m.room.ID != roomID {
			return
		}
		remaining := secondsUntil(deadline, now)
		if remaining == 0 {
			countdown.Close()
		}
		if remaining == m.remaining {
			return
		}
		m.remaining = remaining
		m.emit(domain.Outcome{Kind: domain.OutcomeApplied, Changed: true})
	}
	countdown.Every(time.Second, update)
	countdown.After(deadline.Sub(now), update)
	m.countdown = countdown
}

func (m *Machine) WordPrompt(word string) domain.Outcome {
	if !m.Bound() {
		return domain.Stale()
	}
	m.wordPrompt = word
	return domain.Applied()
}

func (m *Machine) WordPromptText() string { return m.wordPrompt }

// NewRound drops what belonged to the previous round. The new drawer and
// deadline arrive with the next snapshot.
func (m *Machine) NewRound() domain.Outcome {
	if !m.Bound() {
		return domain.Stale()
	}
	m.wordPrompt = ""
	m.result = nil
	if s, ok := m.state.(*domain.DoodleState); ok {
		s.DrawingHistory = nil
	}
	return domain.Applied()
}

func (m *Machine) RoundEnded() domain.Outcome {
	if !m.Bound() {
		return domain.Stale()
	}
	m.wordPrompt = ""
	return domain.Applied()
}

// Over records the result and destroys the game state.
func (m *Machine) Over(result domain.GameResult) domain.Outcome {
	if !m.Bound() {
		return domain.Stale()
	}
	if result.Variant == "" {
		result.Variant = m.room.Variant
	}
	m.clear()
	m.result = &result
	return domain.Applied()
}

func (m *Machine) Drawn(s domain.Stroke) domain.Outcome {
	doodle, ok := m.state.(*domain.DoodleState)
	if !ok {
		return domain.Ignored()
	}
	doodle.DrawingHistory = append(doodle.DrawingHistory, s)
	return domain.Applied()
}

func (m *Machine) CanvasCleared() domain.Outcome {
	doodle, ok := m.state.(*domain.DoodleState)
	if !ok {
		return domain.Ignored()
	}
	doodle.DrawingHistory = nil
	return domain.Applied()
}

// Create asks the server for a new game hosted from the current room.
func (m *Machine) Create(from domain.Room, variant domain.GameVariant) domain.Outcome {
	if _, err := domain.ParseVariant(string(variant)); err != nil {
		return domain.Rejected(domain.ReasonInvalid, "Unknown game type.")
	}
	if m.pendingJoin != "" {
		return domain.Rejected(domain.ReasonDuplicate, "")
	}
	m.pendingJoin = from.ID
	return domain.Applied(domain.GameCreate(from.ID, variant))
}

func (m *Machine) Join(roomID, gameID string) domain.Outcome {
	if roomID == "" {
		return domain.Rejected(domain.ReasonInvalid, "")
	}
	if m.room.ID == roomID {
		return domain.Outcome{Kind: domain.OutcomeIgnored, Reason: domain.ReasonAlreadyThere}
	}
	if m.pendingJoin != "" {
		return domain.Rejected(domain.ReasonDuplicate, "")
	}
	m.pendingJoin = roomID
	return domain.Applied(domain.GameJoin(roomID, gameID))
}

// JoinSettled clears the pending create or join marker. It reports whether
// one was pending.
func (m *Machine) JoinSettled() bool {
	if m.pendingJoin == "" {
		return false
	}
	m.pendingJoin = ""
	return true
}

func (m *Machine) isCreator(selfID string) bool {
	return m.state != nil && selfID != "" && m.state.Creator() == selfID
}

func (m *Machine) Start(selfID string) domain.Outcome {
	if m.state == nil {
		return domain.Rejected(domain.ReasonNoGame, "No game in this room.")
	}
	if !m.isCreator(selfID) {
		return domain.Rejected(domain.ReasonNotCreator, "Only the host can start the game.")
	}
	if m.state.Active() {
		return domain.Rejected(domain.ReasonWrongPhase, "")
	}
	if !m.state.Variant().PlayerGate(len(m.state.PlayerIDs())) {
		text := "At least 2 players are needed."
		if m.state.Variant() == domain.VariantHangman {
			text = "Hangman needs exactly 2 players."
		}
		return domain.Rejected(domain.ReasonTooFew, text)
	}
	return domain.Applied(domain.GameStart(m.room.ID))
}

func (m *Machine) Stop(selfID string) domain.Outcome {
	if m.state == nil {
		return domain.Rejected(domain.ReasonNoGame, "No game in this room.")
	}
	if !m.isCreator(selfID) {
		return domain.Rejected(domain.ReasonNotCreator, "Only the host can stop the game.")
	}
	if !m.state.Active() {
		return domain.Rejected(domain.ReasonWrongPhase, "")
	}
	return domain.Applied(domain.GameStop(m.room.ID))
}

func (m *Machine) drawing(selfID string) (*domain.DoodleState, bool) {
	doodle, ok := m.state.(*domain.DoodleState)
	if !ok || !doodle.RoundActive || selfID == "" || doodle.DrawerID != selfID {
		return nil, false
	}
	return doodle, true
}

// SubmitStroke normalizes a stroke drawn in canvas pixels, renders it locally
// and sends it. Strokes beyond the configured rate are dropped.
func (m *Machine) SubmitStroke(selfID string, px domain.Stroke, width, height float64, now time.Time) domain.Outcome {
	doodle, ok := m.drawing(selfID)
	if !ok {
		return domain.Rejected(domain.ReasonNotAllowed, "")
	}
	stroke, err := px.Normalize(width, height)
	if err != nil {
		return domain.Rejected(domain.ReasonInvalid, "")
	}
	m.canvasWidth, m.canvasHeight = width, height
	if !m.limiter.AllowN(now, 1) {
		return domain.Rejected(domain.ReasonThrottled, "")
	}
	doodle.DrawingHistory = append(doodle.DrawingHistory, stroke)
	return domain.Applied(domain.GameDraw(m.room.ID, stroke))
}

// Resize records the local canvas size. The view renders strokes against it.
func (m *Machine) Resize(width, height float64) domain.Outcome {
	if width <= 0 || height <= 0 {
		return domain.Rejected(domain.ReasonInvalid, "")
	}
	if width == m.canvasWidth && height == m.canvasHeight {
		return domain.Ignored()
	}
	m.canvasWidth, m.canvasHeight = width, height
	return domain.Applied()
}

func (m *Machine) SubmitClear(selfID string) domain.Outcome {
	doodle, ok := m.drawing(selfID)
	if !ok {
		return domain.Rejected(domain.ReasonNotAllowed, "")
	}
	doodle.DrawingHistory = nil
	return domain.Applied(domain.GameClearCanvas(m.room.ID))
}

func (m *Machine) Guess(selfID, letter string) domain.Outcome {
	hangman, ok := m.state.(*domain.HangmanState)
	if !ok || !hangman.Active() {
		return domain.Rejected(domain.ReasonNoGame, "")
	}
	if hangman.CurrentTurnID != selfID {
		return domain.Rejected(domain.ReasonNotYourTurn, "It's not your turn.")
	}
	letter = strings.ToLower(strings.TrimSpace(letter))
	if utf8.RuneCountInString(letter) != 1 || letter < "a" || letter > "z" {
		return domain.Rejected(domain.ReasonInvalid, "Guess a single letter.")
	}
	if hangman.Guessed(letter) {
		return domain.Rejected(domain.ReasonDuplicate, "That letter was already guessed.")
	}
	return domain.Applied(domain.GameGuess(m.room.ID, letter))
}

// ChatIsGuess reports whether chat sent now counts as a guess. The drawer is
// never a guesser.
func (m *Machine) ChatIsGuess(selfID string) bool {
	doodle, ok := m.state.(*domain.DoodleState)
	if !ok || !doodle.RoundActive {
		return false
	}
	return doodle.DrawerID != selfID && slices.Contains(doodle.PlayerIDs(), selfID)
}

func (m *Machine) phase() Phase {
	switch {
	case m.result != nil:
		return PhaseOver
	case m.state == nil:
		return PhaseNone
	case m.state.Active():
		return PhaseRound
	}
	if h, ok := m.state.(*domain.HangmanState); ok && h.IsGameOver {
		return PhaseOver
	}
	return PhaseLobby
}

// View derives what the local user may do in the current game. It returns nil
// outside a game room.
func (m *Machine) View(selfID string) *View {
	if !m.Bound() {
		return nil
	}
	v := &View{
		RoomID:           m.room.ID,
		Variant:          m.room.Variant,
		Phase:            m.phase(),
		SecondsRemaining: m.remaining,
		WordPrompt:       m.wordPrompt,
		Result:           m.result,
		PendingJoin:      m.pendingJoin != "",
	}
	if m.state == nil {
		return v
	}

	active := m.state.Active()
	v.Variant = m.state.Variant()
	v.IsCreator = m.isCreator(selfID)
	v.IsPlayer = slices.Contains(m.state.PlayerIDs(), selfID)
	v.CanStart = v.IsCreator && !active && v.Variant.PlayerGate(len(m.state.PlayerIDs()))
	v.CanStop = v.IsCreator && active
	v.CanJoin = !v.IsPlayer && !active

	switch s := m.state.Clone().(type) {
	case *domain.DoodleState:
		v.Doodle = s
		if m.canvasWidth > 0 && m.canvasHeight > 0 {
			v.Strokes = make([]domain.Stroke, 0, len(s.DrawingHistory))
			for _, st := range s.DrawingHistory {
				v.Strokes = append(v.Strokes, st.Denormalize(m.canvasWidth, m.canvasHeight))
			}
		}
		v.CanDraw = active && s.DrawerID == selfID
		v.CanGuess = active && v.IsPlayer && s.DrawerID != selfID
	case *domain.HangmanState:
		v.Hangman = s
		v.CanGuess = active && s.CurrentTurnID == selfID
	}
	return v
}
