package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"toolgate/internal/domain"
)

type PrometheusMetrics struct {
	invocationDuration *prometheus.HistogramVec
	upstreamRequests   *prometheus.CounterVec
	reconnects         *prometheus.CounterVec
	specRefreshes      *prometheus.CounterVec
	liveRoutes         prometheus.Gauge
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		invocationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolgate_invocation_duration_seconds",
				Help:    "Duration of tool invocations in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"tool", "status"},
		),
		upstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_upstream_requests_total",
				Help: "Total upstream JSON-RPC requests by status class",
			},
			[]string{"method", "status_class"},
		),
		reconnects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_reconnect_attempts_total",
				Help: "Total upstream reconnect attempts",
			},
			[]string{"outcome"},
		),
		specRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolgate_spec_refreshes_total",
				Help: "Total spec document refreshes",
			},
			[]string{"outcome"},
		),
		liveRoutes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolgate_live_routes",
				Help: "Current number of live tool routes",
			},
		),
	}
}

func (p *PrometheusMetrics) ObserveInvocation(tool string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.invocationDuration.WithLabelValues(tool, status).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveUpstreamRequest(method string, statusClass string) {
	p.upstreamRequests.WithLabelValues(method, statusClass).Inc()
}

func (p *PrometheusMetrics) ObserveReconnect(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	p.reconnects.WithLabelValues(outcome).Inc()
}

func (p *PrometheusMetrics) ObserveSpecRefresh(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	p.specRefreshes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusMetrics) SetRouteCount(count int) {
	p.liveRoutes.Set(float64(count))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
