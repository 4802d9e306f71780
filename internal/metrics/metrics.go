package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	OutcomeSuccess         = "success"
	OutcomeBadRequest      = "bad_request"
	OutcomeSchemaMismatch  = "schema_mismatch"
	OutcomeUpstreamFailure = "upstream_failure"
	OutcomePanic           = "panic"
)

var (
	Registry = prometheus.NewRegistry()

	requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dash",
		Name:      "requests_total",
		Help:      "Dataset queries by outcome.",
	}, []string{"outcome"})

	agentDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dash",
		Name:      "agent_duration_seconds",
		Help:      "Time spent in the agent invocation.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
	})

	toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dash",
		Name:      "tool_calls_total",
		Help:      "Tool invocations made by the agent.",
	}, []string{"tool", "status"})
)

func init() {
	Registry.MustRegister(
		requests,
		agentDuration,
		toolCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func RecordRequest(outcome string) {
	requests.WithLabelValues(outcome).Inc()
}

func ObserveAgent(d time.Duration) {
	agentDuration.Observe(d.Seconds())
}

func RecordToolCall(tool string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	toolCalls.WithLabelValues(tool, status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
