package sessions

import (
	"encoding/json"

	"github.com/hilthontt/lounge/internal/domain"
)

type intentRequest struct {
	Intent string          `json:"intent" validate:"required"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type outcomeResponse struct {
	Outcome string          `json:"outcome"`
	Reason  domain.Reason   `json:"reason,omitempty"`
	Notices []domain.Notice `json:"notices,omitempty"`
}

func newOutcomeResponse(out domain.Outcome) outcomeResponse {
	return outcomeResponse{Outcome: out.Kind.String(), Reason: out.Reason, Notices: out.Notices}
}
