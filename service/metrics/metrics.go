package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Confirmation Metrics
	confirmationsTotal   *prometheus.CounterVec
	confirmationAttempts *prometheus.HistogramVec
	confirmationDuration *prometheus.HistogramVec

	// Aggregator HTTP Metrics
	aggregatorRequestsTotal   *prometheus.CounterVec
	aggregatorRequestDuration *prometheus.HistogramVec

	// Trade Metrics
	tradesTotal           *prometheus.CounterVec
	tradeDuration         *prometheus.HistogramVec
	submissionsTotal      *prometheus.CounterVec
	journalWritesTotal    *prometheus.CounterVec
	natsMessagesPublished *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		// Confirmation Metrics
		confirmationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "confirmations_total",
				Help: "Total number of confirmation polls by terminal status",
			},
			[]string{"status"},
		),
		confirmationAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confirmation_attempts",
				Help:    "Number of getTransaction polls before a terminal status",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"status"},
		),
		confirmationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "confirmation_duration_seconds",
				Help:    "Time from first poll to terminal status in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"status"},
		),

		// Aggregator HTTP Metrics
		aggregatorRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_requests_total",
				Help: "Total number of swap aggregator HTTP requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		aggregatorRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aggregator_request_duration_seconds",
				Help:    "Duration of swap aggregator HTTP requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method", "status"},
		),

		// Trade Metrics
		tradesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trades_total",
				Help: "Total number of buy/sell operations by outcome",
			},
			[]string{"side", "status"},
		),
		tradeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trade_duration_seconds",
				Help:    "End-to-end duration of buy/sell operations in seconds",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"side", "status"},
		),
		submissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transaction_submissions_total",
				Help: "Total number of signed transaction submissions by route and status",
			},
			[]string{"route", "status"},
		),
		journalWritesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trade_journal_writes_total",
				Help: "Total number of trade journal writes",
			},
			[]string{"status"},
		),
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordConfirmation records the terminal status of a confirmation poll.
func (m *Metrics) RecordConfirmation(status string, attempts int, duration float64) {
	m.confirmationsTotal.WithLabelValues(status).Inc()
	m.confirmationAttempts.WithLabelValues(status).Observe(float64(attempts))
	m.confirmationDuration.WithLabelValues(status).Observe(duration)
}

// Aggregator metric helpers

// RecordAggregatorRequest records a swap aggregator HTTP request with duration.
func (m *Metrics) RecordAggregatorRequest(endpoint, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.aggregatorRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
	m.aggregatorRequestDuration.WithLabelValues(endpoint, method, status).Observe(duration)
}

// Trade metric helpers

// RecordTrade records the outcome of a buy or sell.
func (m *Metrics) RecordTrade(side, status string, duration float64) {
	m.tradesTotal.WithLabelValues(side, status).Inc()
	m.tradeDuration.WithLabelValues(side, status).Observe(duration)
}

// RecordSubmission records a submission attempt on the relay or RPC route.
func (m *Metrics) RecordSubmission(route, status string) {
	m.submissionsTotal.WithLabelValues(route, status).Inc()
}

// RecordJournalWrite records a trade journal write.
func (m *Metrics) RecordJournalWrite(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.journalWritesTotal.WithLabelValues(status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "error"
	}
}
