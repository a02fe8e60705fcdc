package sessions

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/hilthontt/lounge/internal/application/session"
	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/json"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
)

const streamWriteWait = 5 * time.Second

// Session is the part of the session runner the renderer bridge drives.
type Session interface {
	Submit(ctx context.Context, in domain.Intent) (domain.Outcome, error)
	Snapshot(ctx context.Context) (session.State, error)
	Subscribe(ctx context.Context, fn func(session.State)) (func(), error)
}

type Handler struct {
	session  Session
	logger   logging.Logger
	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewHandler(s Session, allowedOrigins []string, logger logging.Logger) *Handler {
	return &Handler{
		session:  s,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *Handler) GetStateHandler(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.Snapshot(r.Context())
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	_ = json.Write(w, http.StatusOK, st)
}

func (h *Handler) SubmitIntentHandler(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteBadRequestError(w, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	in, err := decodeIntent(req.Intent, req.Data)
	if err != nil {
		json.WriteBadRequestError(w, err.Error())
		return
	}

	out, err := h.session.Submit(r.Context(), in)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	if out.IsRejected() {
		msg := ""
		if len(out.Notices) > 0 {
			msg = out.Notices[0].Text
		}
		json.WriteRejection(w, http.StatusUnprocessableEntity, string(out.Reason), msg)
		return
	}
	_ = json.Write(w, http.StatusOK, newOutcomeResponse(out))
}

// StreamHandler upgrades to a websocket and pushes a state snapshot after
// every change. Slow readers skip intermediate snapshots and get the latest.
func (h *Handler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	updates := make(chan session.State, 1)
	push := func(st session.State) {
		select {
		case <-updates:
		default:
		}
		updates <- st
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	unsubscribe, err := h.session.Subscribe(ctx, push)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "session unavailable"),
			time.Now().Add(time.Second))
		return
	}
	defer unsubscribe()

	st, err := h.session.Snapshot(ctx)
	if err != nil {
		return
	}
	push(st)

	// The renderer never sends on this socket; reading only notices the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case st := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(st); err != nil {
				h.logger.Debug(logging.RequestResponse, logging.Send, "state stream closed", map[logging.ExtraKey]any{
					logging.ErrorMessage: err.Error(),
				})
				return
			}
		}
	}
}

func (h *Handler) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		json.WriteUnavailableError(w, "Session is not running")
	default:
		h.logger.Error(logging.Session, logging.Intent, "session request failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w)
	}
}
