package metrics

import (
	"net/http"
	"time"
)

// InstrumentedTransport wraps an http.RoundTripper and records every outbound
// aggregator request. The endpoint label is the request path (e.g. "/v6/quote").
// If m is nil the base transport is returned unchanged.
func InstrumentedTransport(m *Metrics, base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if m == nil {
		return base
	}
	return &instrumentedTransport{metrics: m, base: base}
}

type instrumentedTransport struct {
	metrics *Metrics
	base    http.RoundTripper
}

// RoundTrip records the status class and duration of the request.
func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)

	statusCode := 0
	if err == nil {
		statusCode = resp.StatusCode
	}
	t.metrics.RecordAggregatorRequest(req.URL.Path, req.Method, statusCode, time.Since(start).Seconds())

	return resp, err
}

// Timer is a helper for timing operations.
// Usage:
//
//	defer Timer(time.Now(), func(duration float64) {
//	    metrics.RecordSomething(duration)
//	})()
func Timer(start time.Time, recordFunc func(float64)) func() {
	return func() {
		recordFunc(time.Since(start).Seconds())
	}
}
