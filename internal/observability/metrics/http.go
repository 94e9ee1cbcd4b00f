package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	turnsTotal           *prometheus.CounterVec
	turnDuration         *prometheus.HistogramVec
	turnRetrievedDocs    *prometheus.HistogramVec
	turnRetries          *prometheus.HistogramVec
	turnNoContextTotal   *prometheus.CounterVec
	nodeTransitionsTotal *prometheus.CounterVec
	webFallbackTotal     *prometheus.CounterVec
	llmTokensTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ragcore",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "turn",
			Name:      "total",
			Help:      "Total finished turns by terminal workflow status.",
		},
		[]string{"service", "endpoint", "status"},
	)
	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "turn",
			Name:      "duration_seconds",
			Help:      "End-to-end turn duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	turnRetrievedDocs := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "turn",
			Name:      "retrieved_documents",
			Help:      "Distribution of accumulated documents per turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service", "endpoint"},
	)
	turnRetries := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragcore",
			Subsystem: "turn",
			Name:      "synthesis_retries",
			Help:      "Distribution of synthesis retries per turn.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
		[]string{"service", "endpoint"},
	)
	turnNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "turn",
			Name:      "no_context_total",
			Help:      "Total turns that finished without any retrieved documents.",
		},
		[]string{"service", "endpoint"},
	)
	nodeTransitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "turn",
			Name:      "node_transitions_total",
			Help:      "Total orchestrator node transitions.",
		},
		[]string{"service", "node"},
	)
	webFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "turn",
			Name:      "web_fallback_total",
			Help:      "Total web fallback invocations by outcome.",
		},
		[]string{"service", "outcome"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragcore",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Approximate token usage by direction.",
		},
		[]string{"service", "endpoint", "direction", "model"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		turnsTotal,
		turnDuration,
		turnRetrievedDocs,
		turnRetries,
		turnNoContextTotal,
		nodeTransitionsTotal,
		webFallbackTotal,
		llmTokensTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		turnsTotal:           turnsTotal,
		turnDuration:         turnDuration,
		turnRetrievedDocs:    turnRetrievedDocs,
		turnRetries:          turnRetries,
		turnNoContextTotal:   turnNoContextTotal,
		nodeTransitionsTotal: nodeTransitionsTotal,
		webFallbackTotal:     webFallbackTotal,
		llmTokensTotal:       llmTokensTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/turns/"):
		return "/v1/turns/{turn_id}"
	default:
		return path
	}
}

// RecordTurn observes one finished turn: terminal status, accumulated
// document count, synthesis retry count, and wall-clock duration.
func (m *HTTPServerMetrics) RecordTurn(service, endpoint, status string, documentCount, retryCount int, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.turnsTotal.WithLabelValues(service, endpoint, status).Inc()
	m.turnDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	m.turnRetrievedDocs.WithLabelValues(service, endpoint).Observe(float64(documentCount))
	m.turnRetries.WithLabelValues(service, endpoint).Observe(float64(retryCount))

	if documentCount == 0 {
		m.turnNoContextTotal.WithLabelValues(service, endpoint).Inc()
	}
}

func (m *HTTPServerMetrics) RecordNodeTransition(service, node string) {
	if node == "" {
		node = "unknown"
	}
	m.nodeTransitionsTotal.WithLabelValues(service, node).Inc()
}

func (m *HTTPServerMetrics) RecordWebFallback(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.webFallbackTotal.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, endpoint, model string, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, endpoint, "in", model).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, endpoint, "out", model).Add(float64(completionTokens))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
