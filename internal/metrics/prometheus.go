package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// labels declares the dimensions each known metric carries. Dimensions outside this
// set are dropped; missing ones are exported as "".
var labels = map[string][]string{
	OrdersCreated:     {"canteen"},
	OrdersExpired:     {"source"},
	WebhookOutcome:    {"provider", "outcome"},
	PaymentsInitiated: {"provider"},
	OTPSent:           {},
	OTPSendFailed:     {},
}

// Prometheus keeps one counter vector per known metric on its own registry.
type Prometheus struct {
	registry *prometheus.Registry
	counters map[string]*prometheus.CounterVec
	log      *zap.Logger
}

func NewPrometheus(namespace string, log *zap.Logger) *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	p := &Prometheus{registry: reg, counters: map[string]*prometheus.CounterVec{}, log: log}
	for name, lbls := range labels {
		p.counters[name] = factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      name + "_total",
				Help:      "Count of " + name + " events",
			},
			lbls,
		)
	}
	return p
}

func (p *Prometheus) Count(_ context.Context, name string, dims map[string]string) {
	vec, ok := p.counters[name]
	if !ok {
		p.log.Debug("unknown metric", zap.String("metric", name))
		return
	}
	values := make([]string, len(labels[name]))
	for i, l := range labels[name] {
		values[i] = dims[l]
	}
	vec.WithLabelValues(values...).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }
