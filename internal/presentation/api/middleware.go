package api

import (
	"bufio"
	"fmt"
	"math"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/hilthontt/lounge/internal/infrastructure/json"
	"github.com/hilthontt/lounge/internal/infrastructure/logging"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Hijack keeps the state stream upgradable through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("responseWriter does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (app *Application) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)

		next.ServeHTTP(rw, r)

		took := time.Since(start)
		app.metrics.ObserveRequest(r.Method, rw.statusCode, took)
		app.logger.Debug(logging.RequestResponse, logging.ExternalService, "bridge request", map[logging.ExtraKey]any{
			logging.Method:     r.Method,
			logging.Path:       r.URL.Path,
			logging.StatusCode: rw.statusCode,
			logging.Latency:    took.String(),
		})
	})
}

func (app *Application) rateLimiterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allow, retryAfter := app.ratelimiter.Allow(r.RemoteAddr); !allow {
			app.logger.Warn(logging.General, logging.RateLimiting, "rate limit exceeded", map[logging.ExtraKey]any{
				logging.ClientIp: r.RemoteAddr,
				logging.Path:     r.URL.Path,
			})
			json.WriteRateLimitError(w, int(math.Ceil(retryAfter.Seconds())))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (app *Application) enableCors(next http.Handler) http.Handler {
	allowAll := slices.Contains(app.config.AllowedOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(app.config.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", "))
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// allow preflight requests from the renderer
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
