package domain

// Intent is a local user action submitted by the renderer.
type Intent interface {
	IntentName() string
	sealedIntent()
}

type intent struct{}

func (intent) sealedIntent() {}

type SubmitIdentity struct {
	intent
	Nickname string `json:"nickname"`
	Gender   Gender `json:"gender"`
	Age      int    `json:"age"`
}

type Logout struct{ intent }

type OpenPublic struct{ intent }

type OpenPrivate struct {
	intent
	PeerID string `json:"peerId"`
}

type SendChat struct {
	intent
	Text string `json:"text"`
}

type InputActivity struct{ intent }

type CreateGame struct {
	intent
	Variant GameVariant `json:"variant"`
}

type JoinGame struct {
	intent
	RoomID string `json:"roomId"`
	GameID string `json:"gameId"`
}

type StartGame struct{ intent }

type StopGame struct{ intent }

type LeaveGame struct{ intent }

// DrawStroke carries a stroke in canvas pixels together with the canvas size
// it was drawn on.
type DrawStroke struct {
	intent
	Stroke       Stroke  `json:"stroke"`
	CanvasWidth  float64 `json:"canvasWidth"`
	CanvasHeight float64 `json:"canvasHeight"`
}

type ClearCanvas struct{ intent }

// ResizeCanvas reports the size of the local canvas so received strokes can be
// mapped back to pixels.
type ResizeCanvas struct {
	intent
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type GuessLetter struct {
	intent
	Letter string `json:"letter"`
}

type RequestPrivate struct {
	intent
	PeerID string `json:"peerId"`
}

type AcceptPrivate struct {
	intent
	PeerID string `json:"peerId"`
}

type DeclinePrivate struct {
	intent
	PeerID string `json:"peerId"`
}

type CancelPrivate struct {
	intent
	PeerID string `json:"peerId"`
}

type LeavePrivate struct {
	intent
	PeerID string `json:"peerId"`
}

type StartCall struct {
	intent
	PeerID string `json:"peerId"`
}

type AcceptCall struct{ intent }

type DeclineCall struct{ intent }

type EndCall struct{ intent }

type DismissNotice struct{ intent }

func (SubmitIdentity) IntentName() string { return "identity:submit" }
func (Logout) IntentName() string         { return "identity:logout" }
func (OpenPublic) IntentName() string     { return "room:open_public" }
func (OpenPrivate) IntentName() string    { return "room:open_private" }
func (SendChat) IntentName() string       { return "chat:send" }
func (InputActivity) IntentName() string  { return "chat:input" }
func (CreateGame) IntentName() string     { return "game:create" }
func (JoinGame) IntentName() string       { return "game:join" }
func (StartGame) IntentName() string      { return "game:start" }
func (StopGame) IntentName() string       { return "game:stop" }
func (LeaveGame) IntentName() string      { return "game:leave" }
func (DrawStroke) IntentName() string     { return "game:draw" }
func (ClearCanvas) IntentName() string    { return "game:clear_canvas" }
func (ResizeCanvas) IntentName() string   { return "game:resize_canvas" }
func (GuessLetter) IntentName() string    { return "game:guess" }
func (RequestPrivate) IntentName() string { return "private:request" }
func (AcceptPrivate) IntentName() string  { return "private:accept" }
func (DeclinePrivate) IntentName() string { return "private:decline" }
func (CancelPrivate) IntentName() string  { return "private:cancel" }
func (LeavePrivate) IntentName() string   { return "private:leave" }
func (StartCall) IntentName() string      { return "call:start" }
func (AcceptCall) IntentName() string     { return "call:accept" }
func (DeclineCall) IntentName() string    { return "call:decline" }
func (EndCall) IntentName() string        { return "call:end" }
func (DismissNotice) IntentName() string  { return "notice:dismiss" }
