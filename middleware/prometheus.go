package middleware

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentstation/operation"
)

// PrometheusCollector exports node and operation metrics.
type PrometheusCollector struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	results     *prometheus.CounterVec
}

// NewPrometheusCollector creates the collector and registers its metrics
// with reg. A nil reg uses the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PrometheusCollector{
		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "operation_node_invocations_total",
				Help: "Node body invocations by node, mode and status",
			},
			[]string{"node", "mode", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "operation_node_duration_seconds",
				Help:    "Node body run time in seconds, excluding requested delays",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"node"},
		),
		results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "operation_results_total",
				Help: "Terminal operation results by operation, success and status",
			},
			[]string{"operation", "success", "status"},
		),
	}

	for _, col := range []prometheus.Collector{c.invocations, c.duration, c.results} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RecordInvocation implements MetricsCollector.
func (c *PrometheusCollector) RecordInvocation(node string, r operation.RoundResult, d time.Duration) {
	c.invocations.WithLabelValues(node, r.Mode.String(), string(r.Status)).Inc()
	c.duration.WithLabelValues(node).Observe(d.Seconds())
}

// OnResult returns a callback for operation.WithOnResult that counts the
// terminal results of the named operation.
func (c *PrometheusCollector) OnResult(name string) func(operation.Result) {
	return func(r operation.Result) {
		status := string(r.Status)
		if r.Aborted {
			status = string(operation.StatusAborted)
		}
		c.results.WithLabelValues(name, strconv.FormatBool(r.Success), status).Inc()
	}
}
