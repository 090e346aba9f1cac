// Package metrics provides Prometheus instrumentation for the session engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts committed trades, partitioned by direction.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickwars_trades_total",
		Help: "Total number of trades committed",
	}, []string{"direction"})

	// TradeConflictsTotal counts optimistic-write conflicts during trade
	// execution. Each conflict triggers one retry from a fresh snapshot.
	TradeConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickwars_trade_conflicts_total",
		Help: "Optimistic concurrency conflicts during trade commits",
	})

	// TradeRejectionsTotal counts trades rejected before any mutation,
	// partitioned by reason (insufficient_funds, insufficient_shares,
	// session_not_active).
	TradeRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickwars_trade_rejections_total",
		Help: "Trades rejected by validation",
	}, []string{"reason"})

	// ActiveRooms tracks rooms with a running session. Incremented on
	// start rather than creation so rooms abandoned in waiting never
	// inflate the gauge.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tickwars_active_rooms",
		Help: "Number of rooms with a session in progress",
	})

	// SessionsFinishedTotal counts playing → finished transitions.
	SessionsFinishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickwars_sessions_finished_total",
		Help: "Total sessions transitioned to finished",
	})

	// WebSocketClients tracks connected WebSocket subscribers.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tickwars_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tickwars_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tickwars_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; room codes are 4 digits so
		// cardinality stays bounded by the active room count.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
