package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hilthontt/lounge/internal/infrastructure/configs"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
	"github.com/hilthontt/lounge/internal/infrastructure/metrics"
	"github.com/hilthontt/lounge/internal/infrastructure/ratelimiter"
	healthHandler "github.com/hilthontt/lounge/internal/presentation/handler/health"
	sessionsHandler "github.com/hilthontt/lounge/internal/presentation/handler/sessions"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Application is the local bridge a renderer uses to read session state,
// submit intents and follow state changes.
type Application struct {
	config          configs.BridgeConfig
	sessionsHandler *sessionsHandler.Handler
	healthHandler   *healthHandler.Handler
	logger          logging.Logger
	ratelimiter     ratelimiter.Limiter
	metrics         *metrics.Metrics
}

func NewApplication(
	config configs.BridgeConfig,
	sessionsHandler *sessionsHandler.Handler,
	healthHandler *healthHandler.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	metrics *metrics.Metrics,
) *Application {
	return &Application{
		config:          config,
		sessionsHandler: sessionsHandler,
		healthHandler:   healthHandler,
		logger:          logger,
		ratelimiter:     ratelimiter,
		metrics:         metrics,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(app.observe)
	r.Use(app.enableCors)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(10 * time.Second))

			r.Get("/state", app.sessionsHandler.GetStateHandler)
			r.With(app.rateLimiterMiddleware).Post("/intents", app.sessionsHandler.SubmitIntentHandler)
		})
		r.Get("/stream", app.sessionsHandler.StreamHandler)
	})

	r.Get("/healthz", app.healthHandler.GetHealth)
	r.Get("/ready", app.healthHandler.GetHealth)
	r.Handle("/metrics", app.metrics.Handler())

	return otelhttp.NewHandler(r, "bridge",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Run serves mux until ctx is cancelled, then drains in-flight requests.
func (app *Application) Run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.Host, app.config.Port),
		Handler:      mux,
		WriteTimeout: app.config.WriteTimeout,
		ReadTimeout:  app.config.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "bridge shutting down", nil)

		shutdown <- srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(logging.General, logging.Startup, "bridge has started", map[logging.ExtraKey]any{logging.Path: srv.Addr})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "bridge has stopped", map[logging.ExtraKey]any{logging.Path: srv.Addr})

	return nil
}
