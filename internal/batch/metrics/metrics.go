package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the batch registry.
type Metrics struct {
	BatchesIssued prometheus.Counter
	CodesIssued   prometheus.Counter
	IssueDuration prometheus.Histogram
	IssueFailures prometheus.Counter
}

// New creates and registers all batch registry metrics.
func New() *Metrics {
	return &Metrics{
		BatchesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritag_batches_issued_total",
			Help: "Total number of batches issued",
		}),
		CodesIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritag_codes_issued_total",
			Help: "Total number of identity codes issued across all batches",
		}),
		IssueDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veritag_batch_issue_duration_seconds",
			Help:    "Duration of batch issuance including code generation and anchoring",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		IssueFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritag_batch_issue_failures_total",
			Help: "Total number of failed batch issuance attempts",
		}),
	}
}

// ObserveIssue records a successful issuance of codeCount codes.
func (m *Metrics) ObserveIssue(start time.Time, codeCount int) {
	m.BatchesIssued.Inc()
	m.CodesIssued.Add(float64(codeCount))
	m.IssueDuration.Observe(time.Since(start).Seconds())
}

// IncrementIssueFailure records a failed issuance attempt.
func (m *Metrics) IncrementIssueFailure() {
	m.IssueFailures.Inc()
}
