package health

import (
	"context"
	"net/http"
	"time"

	"github.com/hilthontt/lounge/internal/application/session"
	"github.com/hilthontt/lounge/internal/infrastructure/json"
)

type Snapshotter interface {
	Snapshot(ctx context.Context) (session.State, error)
}

type Handler struct {
	session Snapshotter
}

func NewHandler(s Snapshotter) *Handler {
	return &Handler{session: s}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Connected bool      `json:"connected"`
	Timestamp time.Time `json:"timestamp"`
}

// GetHealth is ok while the session loop answers. Connection to the chat
// server is reported but does not fail the check.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	st, err := h.session.Snapshot(ctx)
	if err != nil {
		_ = json.Write(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Timestamp: time.Now().UTC()})
		return
	}
	_ = json.Write(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Connected: st.Connected,
		Timestamp: time.Now().UTC(),
	})
}
