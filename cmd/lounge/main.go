package main

import (
	"context"
	"errors"
	"expvar"
	"log"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/hilthontt/lounge/internal/application/game"
	"github.com/hilthontt/lounge/internal/application/session"
	"github.com/hilthontt/lounge/internal/domain"
	"github.com/hilthontt/lounge/internal/infrastructure/configs"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/hilthontt/lounge/internal/infrastructure/media"
	"github.com/hilthontt/lounge/internal/infrastructure/metrics"
	"github.com/hilthontt/lounge/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/lounge/internal/infrastructure/storage"
	"github.com/hilthontt/lounge/internal/infrastructure/timers"
	"github.com/hilthontt/lounge/internal/infrastructure/tracing"
	"github.com/hilthontt/lounge/internal/infrastructure/ws"
	"github.com/hilthontt/lounge/internal/presentation/api"
	healthHandler "github.com/hilthontt/lounge/internal/presentation/handler/health"
	sessionsHandler "github.com/hilthontt/lounge/internal/presentation/handler/sessions"
	"github.com/jonboulle/clockwork"
)

func main() {
	configPath := configs.DetermineConfigPath()
	cfg, err := configs.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		FilePath: cfg.Logger.FilePath,
		Encoding: cfg.Logger.Encoding,
		Level:    cfg.Logger.Level,
		Logger:   cfg.Logger.Logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		logger.Fatal(logging.General, logging.Startup, "tracing setup failed", map[logging.ExtraKey]any{logging.ErrorMessage: err.Error()})
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	clock := clockwork.NewRealClock()
	promMetrics := metrics.New()

	var opts []session.Option
	opts = append(opts, session.WithMetrics(promMetrics))
	if cfg.IdentityCache.Enabled {
		cache, err := storage.NewIdentityCache(cfg.IdentityCache.Path, cfg.IdentityCache.TTL, clock)
		if err != nil {
			logger.Fatal(logging.General, logging.Startup, "identity cache setup failed", map[logging.ExtraKey]any{logging.ErrorMessage: err.Error()})
		}
		opts = append(opts, session.WithIdentityStore(cache))
	}

	engine, err := media.NewEngine(media.Config{ICEServers: cfg.Media.ICEServers}, logger)
	if err != nil {
		logger.Fatal(logging.Media, logging.Startup, "media engine setup failed", map[logging.ExtraKey]any{logging.ErrorMessage: err.Error()})
	}

	// The transport delivers into the runner, which is built after the
	// coordinator that needs the transport as its sink.
	var runner *session.Runner
	client := ws.NewClient(ws.ClientConfig{
		URL:              cfg.Server.URL,
		HandshakeTimeout: cfg.Server.HandshakeTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		MaxRetries:       cfg.Server.MaxRetries,
		MaxBackoff:       cfg.Server.MaxBackoff,
	}, func(ctx context.Context, ev domain.Event) bool {
		return runner.Post(ctx, ev)
	}, logger)

	coord := session.NewCoordinator(session.Config{
		TypingIdle:     cfg.Session.TypingIdle,
		NoticeTTL:      cfg.Session.NoticeTTL,
		RequestTimeout: cfg.Negotiation.RequestTimeout,
		Cooldown:       cfg.Negotiation.Cooldown,
		CallTimeout:    cfg.Negotiation.CallTimeout,
		LogCapacity:    cfg.Session.LogCapacity,
		Game:           game.Config{StrokeRate: cfg.Game.StrokeRate, StrokeBurst: cfg.Game.StrokeBurst},
	}, timers.NewScheduler(clock), client, logger, opts...)

	runner = session.NewRunner(coord, session.RunnerConfig{
		Tick:      cfg.Session.Tick,
		InboxSize: cfg.Session.InboxSize,
	}, logger,
		session.WithClock(clock),
		session.WithMediaEngine(engine),
		session.WithRunnerMetrics(promMetrics),
		session.WithTracer(tracing.GetTracer("github.com/hilthontt/lounge/session")),
	)

	rateLimiter := ratelimiter.NewFixedWindowRateLimiter(cfg.Bridge.IntentLimit, cfg.Bridge.IntentWindow, clock)
	defer rateLimiter.Close()

	app := api.NewApplication(cfg.Bridge,
		sessionsHandler.NewHandler(runner, cfg.Bridge.AllowedOrigins, logger),
		healthHandler.NewHandler(runner),
		logger, rateLimiter, promMetrics,
	)

	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(logging.Session, logging.Shutdown, "session loop failed", map[logging.ExtraKey]any{logging.ErrorMessage: err.Error()})
		}
	}()
	go func() {
		defer wg.Done()
		if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(logging.Transport, logging.Dial, "transport gave up", map[logging.ExtraKey]any{logging.ErrorMessage: err.Error()})
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.Run(ctx, app.Mount()); err != nil {
			logger.Error(logging.General, logging.Shutdown, "bridge failed", map[logging.ExtraKey]any{logging.ErrorMessage: err.Error()})
			stop()
		}
	}()

	wg.Wait()
}
