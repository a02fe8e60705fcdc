package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/jonboulle/clockwork"
	"github.com/pion/webrtc/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrStopped = errors.New("session runner stopped")

// MediaEngine does the media work requested by call negotiation. Candidates
// and remote streams discovered later are reported through signal.
type MediaEngine interface {
	CreateOffer(ctx context.Context, callID string, signal func(domain.Event)) (domain.MediaStream, webrtc.SessionDescription, error)
	CreateAnswer(ctx context.Context, callID string, offer webrtc.SessionDescription, signal func(domain.Event)) (domain.MediaStream, webrtc.SessionDescription, error)
	ApplyAnswer(ctx context.Context, callID string, answer webrtc.SessionDescription) error
	AddCandidate(ctx context.Context, callID string, cand webrtc.ICECandidateInit) error
	Release(callID string, streams []domain.MediaStream)
}

type RunnerConfig struct {
	Tick      time.Duration
	InboxSize int
}

type RunnerOption func(*Runner)

func WithTracer(t trace.Tracer) RunnerOption     { return func(r *Runner) { r.tracer = t } }
func WithRunnerMetrics(m Metrics) RunnerOption   { return func(r *Runner) { r.metrics = m } }
func WithClock(c clockwork.Clock) RunnerOption   { return func(r *Runner) { r.clock = c } }
func WithMediaEngine(m MediaEngine) RunnerOption { return func(r *Runner) { r.media = m } }

type intentRequest struct {
	intent domain.Intent
	reply  chan domain.Outcome
}

// work is one inbox item. Exactly one field is set.
type work struct {
	event  domain.Event
	intent *intentRequest
	query  func()
}

// Runner owns the coordinator's goroutine. Events, intents and queries share
// one inbox and are handled in arrival order, interleaved with timer ticks.
// Media work runs beside the loop and its results come back as events.
type Runner struct {
	coord   *Coordinator
	media   MediaEngine
	clock   clockwork.Clock
	tracer  trace.Tracer
	metrics Metrics
	logger  logging.Logger
	tick    time.Duration

	inbox chan work
	done  chan struct{}
	wg    sync.WaitGroup

	mu    sync.Mutex
	queue []domain.MediaTask
	wake  chan struct{}
}

func NewRunner(coord *Coordinator, cfg RunnerConfig, logger logging.Logger, opts ...RunnerOption) *Runner {
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}
	r := &Runner{
		coord:   coord,
		clock:   clockwork.NewRealClock(),
		tracer:  otel.Tracer("github.com/hilthontt/lounge/session"),
		metrics: nopMetrics{},
		logger:  logger,
		tick:    cfg.Tick,
		inbox:   make(chan work, cfg.InboxSize),
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run blocks until ctx is cancelled. On the way out the session is reset so
// held media is released.
func (r *Runner) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.tick)
	defer ticker.Stop()
	defer close(r.done)

	r.wg.Add(1)
	go r.mediaWorker(ctx)

	r.logger.Info(logging.Session, logging.Startup, "session loop started", nil)

	for {
		if ctx.Err() != nil {
			r.shutdown()
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			r.shutdown()
			return ctx.Err()

		case w := <-r.inbox:
			r.handle(ctx, w)

		case now := <-ticker.Chan():
			if r.coord.Tick(now) > 0 {
				r.runTasks(ctx)
			}
		}
	}
}

func (r *Runner) handle(ctx context.Context, w work) {
	switch {
	case w.event != nil:
		_, span := r.tracer.Start(ctx, "event "+w.event.EventName())
		out := r.coord.Dispatch(w.event)
		endSpan(span, out)
	case w.intent != nil:
		_, span := r.tracer.Start(ctx, "intent "+w.intent.intent.IntentName())
		out := r.coord.Submit(w.intent.intent)
		endSpan(span, out)
		w.intent.reply <- out
	case w.query != nil:
		w.query()
		return
	}
	r.runTasks(ctx)
}

func (r *Runner) enqueue(ctx context.Context, w work) error {
	select {
	case <-r.done:
		return ErrStopped
	default:
	}
	select {
	case r.inbox <- w:
		return nil
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func endSpan(span trace.Span, out domain.Outcome) {
	span.SetAttributes(attribute.String("outcome", out.Kind.String()))
	if out.Reason != "" {
		span.SetAttributes(attribute.String("reason", string(out.Reason)))
	}
	span.End()
}

func (r *Runner) shutdown() {
	r.coord.Reset()
	for _, task := range r.coord.TakeTasks() {
		if task.Kind == domain.MediaRelease && r.media != nil {
			r.media.Release(task.CallID, task.Streams)
		}
	}
	r.wg.Wait()
	r.logger.Info(logging.Session, logging.Shutdown, "session loop stopped", nil)
}

// Post queues an event for the loop. It reports false once the runner stopped.
func (r *Runner) Post(ctx context.Context, ev domain.Event) bool {
	return r.enqueue(ctx, work{event: ev}) == nil
}

// Submit hands an intent to the loop and waits for its outcome.
func (r *Runner) Submit(ctx context.Context, in domain.Intent) (domain.Outcome, error) {
	req := &intentRequest{intent: in, reply: make(chan domain.Outcome, 1)}
	if err := r.enqueue(ctx, work{intent: req}); err != nil {
		return domain.Outcome{}, err
	}
	select {
	case out := <-req.reply:
		return out, nil
	case <-r.done:
		select {
		case out := <-req.reply:
			return out, nil
		default:
			return domain.Outcome{}, ErrStopped
		}
	case <-ctx.Done():
		return domain.Outcome{}, ctx.Err()
	}
}

// Do runs fn on the loop goroutine with the coordinator.
func (r *Runner) Do(ctx context.Context, fn func(c *Coordinator)) error {
	finished := make(chan struct{})
	q := func() {
		fn(r.coord)
		close(finished)
	}
	if err := r.enqueue(ctx, work{query: q}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-r.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) Snapshot(ctx context.Context) (State, error) {
	var st State
	err := r.Do(ctx, func(c *Coordinator) { st = c.State() })
	return st, err
}

// Subscribe registers fn on the loop. fn is called on the loop goroutine and
// must not block.
func (r *Runner) Subscribe(ctx context.Context, fn func(State)) (func(), error) {
	var cancel func()
	if err := r.Do(ctx, func(c *Coordinator) { cancel = c.Subscribe(fn) }); err != nil {
		return nil, err
	}
	return func() {
		// The loop may already be gone; then there is nothing to remove.
		_ = r.Do(context.Background(), func(*Coordinator) { cancel() })
	}, nil
}

// runTasks releases media right away and queues the rest for the media
// worker, which runs them in order.
func (r *Runner) runTasks(ctx context.Context) {
	for _, task := range r.coord.TakeTasks() {
		switch {
		case r.media == nil:
			if task.Kind != domain.MediaRelease {
				go r.Post(ctx, domain.MediaFailed{CallID: task.CallID, Err: errors.New("no media engine")})
			}
		case task.Kind == domain.MediaRelease:
			r.media.Release(task.CallID, task.Streams)
			r.metrics.MediaTask(string(task.Kind), nil, 0)
		default:
			r.mu.Lock()
			r.queue = append(r.queue, task)
			r.mu.Unlock()
			select {
			case r.wake <- struct{}{}:
			default:
			}
		}
	}
}

func (r *Runner) nextTask() (domain.MediaTask, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return domain.MediaTask{}, false
	}
	task := r.queue[0]
	r.queue = r.queue[1:]
	return task, true
}

func (r *Runner) mediaWorker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		}
		for {
			task, ok := r.nextTask()
			if !ok {
				break
			}
			if ev := r.execute(ctx, task); ev != nil {
				r.Post(ctx, ev)
			}
		}
	}
}

func (r *Runner) execute(ctx context.Context, task domain.MediaTask) domain.Event {
	ctx, span := r.tracer.Start(ctx, "media "+string(task.Kind), trace.WithAttributes(attribute.String("call.id", task.CallID)))
	defer span.End()

	started := r.clock.Now()
	signal := func(ev domain.Event) { r.Post(ctx, ev) }

	var (
		result domain.Event
		err    error
	)
	switch task.Kind {
	case domain.MediaCreateOffer:
		var stream domain.MediaStream
		var sdp webrtc.SessionDescription
		stream, sdp, err = r.media.CreateOffer(ctx, task.CallID, signal)
		if err == nil {
			result = domain.MediaOfferReady{CallID: task.CallID, Stream: stream, Offer: sdp}
		}
	case domain.MediaCreateAnswer:
		if task.Remote == nil {
			err = errors.New("no remote offer")
			break
		}
		var stream domain.MediaStream
		var sdp webrtc.SessionDescription
		stream, sdp, err = r.media.CreateAnswer(ctx, task.CallID, *task.Remote, signal)
		if err == nil {
			result = domain.MediaAnswerReady{CallID: task.CallID, Stream: stream, Answer: sdp}
		}
	case domain.MediaApplyAnswer:
		if task.Remote == nil {
			err = errors.New("no remote answer")
			break
		}
		err = r.media.ApplyAnswer(ctx, task.CallID, *task.Remote)
	case domain.MediaAddCandidate:
		if task.Candidate == nil {
			return nil
		}
		if err = r.media.AddCandidate(ctx, task.CallID, *task.Candidate); err != nil {
			// A bad candidate does not end the call.
			r.logger.Warn(logging.Media, logging.Signaling, "candidate rejected", map[logging.ExtraKey]any{
				logging.CallID:       task.CallID,
				logging.ErrorMessage: err.Error(),
			})
			r.metrics.MediaTask(string(task.Kind), err, r.clock.Since(started))
			return nil
		}
	}

	r.metrics.MediaTask(string(task.Kind), err, r.clock.Since(started))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.MediaFailed{CallID: task.CallID, Err: err}
	}
	return result
}
