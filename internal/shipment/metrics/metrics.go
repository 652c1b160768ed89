package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ShipmentsCreated prometheus.Counter
	Transitions      *prometheus.CounterVec
	BatchesDelivered prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		ShipmentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritag_shipments_created_total",
			Help: "Shipments created.",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veritag_shipment_transitions_total",
			Help: "Shipment status transitions by target status.",
		}, []string{"status"}),
		BatchesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veritag_batches_delivered_total",
			Help: "Batches advanced to distributed by shipment completion.",
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.ShipmentsCreated.Inc()
}

func (m *Metrics) IncrementTransition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementDelivered() {
	if m == nil {
		return
	}
	m.BatchesDelivered.Inc()
}
