package adapter

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates retry activity. It is safe for concurrent use: every
// mutation is a short mutex-guarded counter update, never held across I/O.
// Construct one per test for isolation, or share DefaultMetrics at the
// composition root.
type Metrics struct {
	mu                  sync.Mutex
	totalAttempts       int64
	retryCount          int64
	firstAttemptSuccess int64
	successAfterRetry   int64
	permanentFailures   int64
}

// NewMetrics returns an empty metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// DefaultMetrics is the process-wide shared instance used when no explicit
// metrics object is injected.
var DefaultMetrics = NewMetrics()

// RecordAttempt counts one individual fetch attempt.
func (m *Metrics) RecordAttempt() {
	m.mu.Lock()
	m.totalAttempts++
	m.mu.Unlock()
}

// RecordRetry counts one retry (any attempt beyond the first).
func (m *Metrics) RecordRetry() {
	m.mu.Lock()
	m.retryCount++
	m.mu.Unlock()
}

// RecordFirstAttemptSuccess counts a success with no retries.
func (m *Metrics) RecordFirstAttemptSuccess() {
	m.mu.Lock()
	m.firstAttemptSuccess++
	m.mu.Unlock()
}

// RecordSuccessAfterRetry counts a success that needed at least one retry.
func (m *Metrics) RecordSuccessAfterRetry() {
	m.mu.Lock()
	m.successAfterRetry++
	m.mu.Unlock()
}

// RecordPermanentFailure counts an exhausted attempt budget.
func (m *Metrics) RecordPermanentFailure() {
	m.mu.Lock()
	m.permanentFailures++
	m.mu.Unlock()
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	TotalAttempts       int64 `json:"total_attempts"`
	RetryCount          int64 `json:"retry_count"`
	FirstAttemptSuccess int64 `json:"first_attempt_success"`
	SuccessAfterRetry   int64 `json:"success_after_retry"`
	PermanentFailures   int64 `json:"permanent_failures"`
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		TotalAttempts:       m.totalAttempts,
		RetryCount:          m.retryCount,
		FirstAttemptSuccess: m.firstAttemptSuccess,
		SuccessAfterRetry:   m.successAfterRetry,
		PermanentFailures:   m.permanentFailures,
	}
}

// Reset zeroes all counters atomically. Used for test isolation.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalAttempts = 0
	m.retryCount = 0
	m.firstAttemptSuccess = 0
	m.successAfterRetry = 0
	m.permanentFailures = 0
}

var (
	descTotalAttempts = prometheus.NewDesc(
		"ingest_fetch_attempts_total", "Total fetch attempts including first tries.", nil, nil)
	descRetryCount = prometheus.NewDesc(
		"ingest_fetch_retries_total", "Total fetch retries (attempts beyond the first).", nil, nil)
	descFirstAttemptSuccess = prometheus.NewDesc(
		"ingest_fetch_first_attempt_success_total", "Fetches that succeeded without retrying.", nil, nil)
	descSuccessAfterRetry = prometheus.NewDesc(
		"ingest_fetch_success_after_retry_total", "Fetches that succeeded after at least one retry.", nil, nil)
	descPermanentFailures = prometheus.NewDesc(
		"ingest_fetch_permanent_failures_total", "Fetches that exhausted the attempt budget.", nil, nil)
)

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- descTotalAttempts
	ch <- descRetryCount
	ch <- descFirstAttemptSuccess
	ch <- descSuccessAfterRetry
	ch <- descPermanentFailures
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	s := m.Snapshot()
	ch <- prometheus.MustNewConstMetric(descTotalAttempts, prometheus.CounterValue, float64(s.TotalAttempts))
	ch <- prometheus.MustNewConstMetric(descRetryCount, prometheus.CounterValue, float64(s.RetryCount))
	ch <- prometheus.MustNewConstMetric(descFirstAttemptSuccess, prometheus.CounterValue, float64(s.FirstAttemptSuccess))
	ch <- prometheus.MustNewConstMetric(descSuccessAfterRetry, prometheus.CounterValue, float64(s.SuccessAfterRetry))
	ch <- prometheus.MustNewConstMetric(descPermanentFailures, prometheus.CounterValue, float64(s.PermanentFailures))
}
