// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	EventsEmitted       *prometheus.CounterVec
	ChatAdmitted        prometheus.Counter
	ChatFiltered        prometheus.Counter
	ChatRateLimited     prometheus.Counter
	TokenRefreshes      prometheus.Counter
	TokenRefreshErrors  prometheus.Counter
	ListenerStartErrors prometheus.Counter

	// Gauges
	ConnectedClients prometheus.Gauge
	ListenersRunning prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{Name: "toaster_events_emitted_total", Help: "Normalized events emitted, by kind"}, []string{"kind"})
		ChatAdmitted = promauto.NewCounter(prometheus.CounterOpts{Name: "toaster_chat_admitted_total", Help: "Chat messages admitted by the filter"})
		ChatFiltered = promauto.NewCounter(prometheus.CounterOpts{Name: "toaster_chat_filtered_total", Help: "Chat messages rejected by the filter"})
		ChatRateLimited = promauto.NewCounter(prometheus.CounterOpts{Name: "toaster_chat_rate_limited_total", Help: "Chat messages dropped by the rate limiter"})
		TokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{Name: "toaster_token_refreshes_total", Help: "Successful OAuth token refreshes"})
		TokenRefreshErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "toaster_token_refresh_errors_total", Help: "Failed OAuth token refreshes"})
		ListenerStartErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "toaster_listener_start_errors_total", Help: "Listener start attempts that failed"})
		ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{Name: "toaster_connected_clients", Help: "Currently connected display clients"})
		ListenersRunning = promauto.NewGauge(prometheus.GaugeOpts{Name: "toaster_listeners_running", Help: "Coordinator running=1 stopped=0"})
	})
}

// CountEvent increments the per-kind emission counter.
func CountEvent(kind string) {
	if EventsEmitted != nil {
		EventsEmitted.WithLabelValues(kind).Inc()
	}
}

// SetRunning sets the coordinator gauge to 1 if running else 0.
func SetRunning(running bool) {
	if ListenersRunning != nil {
		if running {
			ListenersRunning.Set(1)
		} else {
			ListenersRunning.Set(0)
		}
	}
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
