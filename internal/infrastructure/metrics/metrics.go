package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hilthontt/lounge/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lounge"

// Metrics defines our Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	handled         *prometheus.CounterVec
	commands        *prometheus.CounterVec
	commandErrors   *prometheus.CounterVec
	mediaTasks      *prometheus.CounterVec
	mediaDuration   *prometheus.HistogramVec
	requestCount    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		handled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_handled_total",
			Help:      "Events and intents handled by the session, by outcome.",
		}, []string{"kind", "name", "outcome"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Commands written to the chat server.",
		}, []string{"command"}),
		commandErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Commands the transport failed to write.",
		}, []string{"command"}),
		mediaTasks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_tasks_total",
			Help:      "Media tasks run for calls, by result.",
		}, []string{"task", "result"}),
		mediaDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "media_task_duration_seconds",
			Help:      "Time spent in media tasks.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"task"}),
		requestCount: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bridge_requests_total",
			Help:      "Requests served by the renderer bridge.",
		}, []string{"method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bridge_request_duration_seconds",
			Help:      "Latency of renderer bridge requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

func (m *Metrics) Handled(kind, name string, outcome domain.OutcomeKind) {
	m.handled.WithLabelValues(kind, name, outcome.String()).Inc()
}

func (m *Metrics) Sent(command string, err error) {
	if err != nil {
		m.commandErrors.WithLabelValues(command).Inc()
		return
	}
	m.commands.WithLabelValues(command).Inc()
}

func (m *Metrics) MediaTask(kind string, err error, took time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.mediaTasks.WithLabelValues(kind, result).Inc()
	m.mediaDuration.WithLabelValues(kind).Observe(took.Seconds())
}

func (m *Metrics) ObserveRequest(method string, status int, took time.Duration) {
	m.requestCount.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(took.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
