package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the counters the order orchestrator reports into. It
// satisfies order.Metrics.
type Registry struct {
	reg *prometheus.Registry

	ordersPlaced          prometheus.Counter
	paymentsFailed        prometheus.Counter
	deliveryAssignSeconds prometheus.Histogram
	deliveryAssignFailed  prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_placed_total"})
	paymentsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "payments_failed_total"})
	deliveryAssignSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "delivery_assign_seconds",
		Buckets: prometheus.DefBuckets,
	})
	deliveryAssignFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "delivery_assign_failed_total"})

	r.MustRegister(ordersPlaced, paymentsFailed, deliveryAssignSeconds, deliveryAssignFailed)

	return &Registry{
		reg:                   r,
		ordersPlaced:          ordersPlaced,
		paymentsFailed:        paymentsFailed,
		deliveryAssignSeconds: deliveryAssignSeconds,
		deliveryAssignFailed:  deliveryAssignFailed,
	}
}

// Handler serves the exposition endpoint for this registry only.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) OrderPlaced() {
	r.ordersPlaced.Inc()
}

func (r *Registry) PaymentFailed() {
	r.paymentsFailed.Inc()
}

func (r *Registry) DeliveryAssigned(latency time.Duration) {
	r.deliveryAssignSeconds.Observe(latency.Seconds())
}

func (r *Registry) DeliveryAssignFailed() {
	r.deliveryAssignFailed.Inc()
}
