package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/pion/webrtc/v3"
)

var (
	ErrUnknownCall = errors.New("no peer connection for call")
	ErrCallExists  = errors.New("peer connection already exists for call")
)

type Config struct {
	ICEServers []string
}

// Engine runs one pion peer connection per call. Every call publishes a
// single local audio track; samples are written to it by whoever owns the
// capture device.
type Engine struct {
	api    *webrtc.API
	config webrtc.Configuration
	logger logging.Logger

	mu    sync.Mutex
	calls map[string]*webrtc.PeerConnection
}

func NewEngine(cfg Config, logger logging.Logger) (*Engine, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("failed to register codecs: %w", err)
	}

	rtc := webrtc.Configuration{}
	if len(cfg.ICEServers) > 0 {
		rtc.ICEServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}

	return &Engine{
		api:    webrtc.NewAPI(webrtc.WithMediaEngine(m)),
		config: rtc,
		logger: logger,
		calls:  make(map[string]*webrtc.PeerConnection),
	}, nil
}

// LocalStream is the outgoing audio of a call.
type LocalStream struct {
	Track *webrtc.TrackLocalStaticSample
	once  sync.Once
	stop  func()
}

func (s *LocalStream) ID() string { return s.Track.StreamID() }

func (s *LocalStream) Release() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

// RemoteStream is the partner's audio as it arrives.
type RemoteStream struct {
	Track *webrtc.TrackRemote
}

func (s *RemoteStream) ID() string { return s.Track.StreamID() }

func (s *RemoteStream) Release() {}

func (e *Engine) open(callID string, signal func(domain.Event)) (*webrtc.PeerConnection, *LocalStream, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.calls[callID]; ok {
		return nil, nil, ErrCallExists
	}

	pc, err := e.api.NewPeerConnection(e.config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		// nil marks the end of gathering
		if c == nil {
			return
		}
		signal(domain.MediaCandidate{CallID: callID, Candidate: c.ToJSON()})
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		signal(domain.MediaRemoteStream{CallID: callID, Stream: &RemoteStream{Track: track}})
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		e.logger.Debug(logging.Media, logging.Signaling, "peer connection state", map[logging.ExtraKey]any{
			logging.CallID: callID,
			"State":        state.String(),
		})
	})

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "lounge-"+callID,
	)
	if err != nil {
		_ = pc.Close()
		return nil, nil, fmt.Errorf("failed to create audio track: %w", err)
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		_ = pc.Close()
		return nil, nil, fmt.Errorf("failed to add audio track: %w", err)
	}

	e.calls[callID] = pc
	local := &LocalStream{Track: track, stop: func() { _ = sender.Stop() }}
	return pc, local, nil
}

func (e *Engine) peer(callID string) (*webrtc.PeerConnection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pc, ok := e.calls[callID]
	if !ok {
		return nil, ErrUnknownCall
	}
	return pc, nil
}

func (e *Engine) CreateOffer(ctx context.Context, callID string, signal func(domain.Event)) (domain.MediaStream, webrtc.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return nil, webrtc.SessionDescription{}, err
	}
	pc, local, err := e.open(callID, signal)
	if err != nil {
		return nil, webrtc.SessionDescription{}, err
	}

	offer, err := pc.CreateOffer(nil)
	if err == nil {
		err = pc.SetLocalDescription(offer)
	}
	if err != nil {
		e.Release(callID, []domain.MediaStream{local})
		return nil, webrtc.SessionDescription{}, fmt.Errorf("failed to create offer: %w", err)
	}
	return local, offer, nil
}

func (e *Engine) CreateAnswer(ctx context.Context, callID string, offer webrtc.SessionDescription, signal func(domain.Event)) (domain.MediaStream, webrtc.SessionDescription, error) {
	if err := ctx.Err(); err != nil {
		return nil, webrtc.SessionDescription{}, err
	}
	pc, local, err := e.open(callID, signal)
	if err != nil {
		return nil, webrtc.SessionDescription{}, err
	}

	var answer webrtc.SessionDescription
	err = pc.SetRemoteDescription(offer)
	if err == nil {
		answer, err = pc.CreateAnswer(nil)
	}
	if err == nil {
		err = pc.SetLocalDescription(answer)
	}
	if err != nil {
		e.Release(callID, []domain.MediaStream{local})
		return nil, webrtc.SessionDescription{}, fmt.Errorf("failed to create answer: %w", err)
	}
	return local, answer, nil
}

func (e *Engine) ApplyAnswer(ctx context.Context, callID string, answer webrtc.SessionDescription) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pc, err := e.peer(callID)
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("failed to apply answer: %w", err)
	}
	return nil
}

func (e *Engine) AddCandidate(ctx context.Context, callID string, cand webrtc.ICECandidateInit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pc, err := e.peer(callID)
	if err != nil {
		return err
	}
	return pc.AddICECandidate(cand)
}

// Release stops the streams and closes the call's peer connection. Releasing
// an unknown call only stops the streams.
func (e *Engine) Release(callID string, streams []domain.MediaStream) {
	for _, s := range streams {
		if s != nil {
			s.Release()
		}
	}

	e.mu.Lock()
	pc, ok := e.calls[callID]
	delete(e.calls, callID)
	e.mu.Unlock()

	if ok {
		if err := pc.Close(); err != nil {
			e.logger.Warn(logging.Media, logging.Signaling, "closing peer connection", map[logging.ExtraKey]any{
				logging.CallID:       callID,
				logging.ErrorMessage: err.Error(),
			})
		}
	}
}

// Active reports how many calls hold a peer connection.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}
