package sessions

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hilthontt/lounge/internal/domain"
)

var ErrUnknownIntent = errors.New("unknown intent")

type intentDecoder func(json.RawMessage) (domain.Intent, error)

func decodeAs[T domain.Intent](raw json.RawMessage) (domain.Intent, error) {
	var in T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, err
		}
	}
	return in, nil
}

var intentDecoders = map[string]intentDecoder{}

func register[T domain.Intent]() {
	var zero T
	intentDecoders[zero.IntentName()] = decodeAs[T]
}

func init() {
	register[domain.SubmitIdentity]()
	register[domain.Logout]()
	register[domain.OpenPublic]()
	register[domain.OpenPrivate]()
	register[domain.SendChat]()
	register[domain.InputActivity]()
	register[domain.CreateGame]()
	register[domain.JoinGame]()
	register[domain.StartGame]()
	register[domain.StopGame]()
	register[domain.LeaveGame]()
	register[domain.DrawStroke]()
	register[domain.ClearCanvas]()
	register[domain.ResizeCanvas]()
	register[domain.GuessLetter]()
	register[domain.RequestPrivate]()
	register[domain.AcceptPrivate]()
	register[domain.DeclinePrivate]()
	register[domain.CancelPrivate]()
	register[domain.LeavePrivate]()
	register[domain.StartCall]()
	register[domain.AcceptCall]()
	register[domain.DeclineCall]()
	register[domain.EndCall]()
	register[domain.DismissNotice]()
}

// decodeIntent maps an intent name and its JSON data to the typed intent.
func decodeIntent(name string, data json.RawMessage) (domain.Intent, error) {
	dec, ok := intentDecoders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, name)
	}
	in, err := dec(data)
	if err != nil {
		return nil, fmt.Errorf("invalid %s data: %w", name, err)
	}
	return in, nil
}
