package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Verifications  *prometheus.CounterVec
	ResolveLatency prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veritag_verifications_total",
			Help: "Scan verifications by resolved verdict.",
		}, []string{"verdict"}),
		ResolveLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "veritag_verification_duration_ms",
			Help:    "Verdict resolution latency in milliseconds.",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}

func (m *Metrics) ObserveVerdict(verdict string, start time.Time) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(verdict).Inc()
	m.ResolveLatency.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}
