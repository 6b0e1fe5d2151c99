// Package metrics provides Prometheus metrics for the derivation pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const namespace = "media"

// Observer implements simplemedia.Observer with Prometheus collectors.
type Observer struct {
	// RequestsTotal counts served derivatives by media class and cache status.
	RequestsTotal *prometheus.CounterVec

	// ErrorsTotal counts failed retrievals by error kind.
	ErrorsTotal *prometheus.CounterVec

	// DeriveSeconds measures retrieval duration by media class.
	DeriveSeconds *prometheus.HistogramVec
}

// New registers the pipeline collectors with reg.
func New(reg prometheus.Registerer) *Observer {
	factory := promauto.With(reg)
	return &Observer{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of served derivatives",
			},
			[]string{"class", "cache"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of failed retrievals",
			},
			[]string{"kind"},
		),
		DeriveSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "derive_seconds",
				Help:      "Duration of retrievals in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"class"},
		),
	}
}

// ObserveRequest records a served derivative.
func (o *Observer) ObserveRequest(class simplemedia.MediaClass, status simplemedia.CacheStatus, elapsed time.Duration) {
	o.RequestsTotal.WithLabelValues(class.String(), string(status)).Inc()
	o.DeriveSeconds.WithLabelValues(class.String()).Observe(elapsed.Seconds())
}

// ObserveError records a failed retrieval.
func (o *Observer) ObserveError(kind string) {
	o.ErrorsTotal.WithLabelValues(kind).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
