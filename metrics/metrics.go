// Package metrics exposes Prometheus instrumentation for sessions, bytes
// transferred, and retry behavior.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups every counter/gauge the session layer reports against.
// Construct one instance per process and share it across sessions.
type Metrics struct {
	SessionsTotal         *prometheus.CounterVec
	BytesTransferred      prometheus.Counter
	FilesTransferred      prometheus.Counter
	FileAckMismatchTotal  prometheus.Counter
	RetriesExhaustedTotal prometheus.Counter
	ActiveSessions        prometheus.Gauge
}

// NewRegistry returns a fresh Prometheus registry and the Metrics bound to
// it, so callers can expose /metrics without relying on the global default
// registry.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fluxfile",
			Name:      "sessions_total",
			Help:      "Total sessions handled, labeled by outcome.",
		}, []string{"outcome"}),
		BytesTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fluxfile",
			Name:      "bytes_transferred_total",
			Help:      "Total on-wire bytes transferred across all sessions.",
		}),
		FilesTransferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fluxfile",
			Name:      "files_transferred_total",
			Help:      "Total files successfully verified and written.",
		}),
		FileAckMismatchTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fluxfile",
			Name:      "file_ack_mismatch_total",
			Help:      "Total FileAck{matches=false} responses sent by clients.",
		}),
		RetriesExhaustedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fluxfile",
			Name:      "retries_exhausted_total",
			Help:      "Total files that failed after exhausting the retry bound.",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fluxfile",
			Name:      "active_sessions",
			Help:      "Number of sessions currently in flight on the host.",
		}),
	}

	reg.MustRegister(
		m.SessionsTotal,
		m.BytesTransferred,
		m.FilesTransferred,
		m.FileAckMismatchTotal,
		m.RetriesExhaustedTotal,
		m.ActiveSessions,
	)
	return reg, m
}
