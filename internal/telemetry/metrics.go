package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	DemandasCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "demandas_created_total",
			Help: "Demandas registered, by defensor",
		},
		[]string{"defensor"},
	)
	EligibilityVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eligibility_verdicts_total",
			Help: "Means-test verdicts, by reason and outcome",
		},
		[]string{"reason", "approved"},
	)
	DocumentsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "documents_generated_total",
			Help: "Documents generated, by kind",
		},
		[]string{"kind"},
	)
	IntakeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "intake_sessions_active",
		Help: "Intake sessions currently held by the in-memory session store",
	})
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Webhook delivery attempts, by event and outcome",
		},
		[]string{"event", "outcome"},
	)
)

// Init registers all collectors with the default registry.
func Init() {
	prometheus.MustRegister(httpReqs, httpDur, DemandasCreated, EligibilityVerdicts,
		DocumentsGenerated, IntakeSessions, WebhookDeliveries)
}

// ObserveVerdict counts one means-test verdict.
func ObserveVerdict(reason string, approved bool) {
	EligibilityVerdicts.WithLabelValues(reason, strconv.FormatBool(approved)).Inc()
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		// the route pattern is only complete after routing
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		httpReqs.WithLabelValues(route, r.Method, strconv.Itoa(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
