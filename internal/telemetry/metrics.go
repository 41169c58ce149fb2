package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "outreachai"

var registry = prometheus.NewRegistry()

var (
	researchRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "research_runs_total",
		Help:      "Completed research runs by mode and outcome.",
	}, []string{"mode", "outcome"})

	researchTurns = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "research_turns",
		Help:      "Model turns used per research run.",
		Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})

	toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Tool dispatches by tool and outcome.",
	}, []string{"tool", "outcome"})

	toolLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tool_duration_seconds",
		Help:      "Tool execution latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})

	modelTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_tokens_total",
		Help:      "Tokens consumed by model calls.",
	}, []string{"direction"})

	knowledgeChunks = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "knowledge_chunks",
		Help:      "Indexed knowledge chunks by source.",
	}, []string{"source"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		researchRuns,
		researchTurns,
		toolCalls,
		toolLatency,
		modelTokens,
		knowledgeChunks,
	)
}

// MetricsHandler serves the process metrics registry.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Registry exposes the metrics registry for tests and custom collectors.
func Registry() *prometheus.Registry {
	return registry
}

// RecordResearchRun records a finished research run.
func RecordResearchRun(mode, outcome string, turns int) {
	researchRuns.WithLabelValues(mode, outcome).Inc()
	if turns > 0 {
		researchTurns.Observe(float64(turns))
	}
}

// RecordToolCall records one tool dispatch.
func RecordToolCall(tool, outcome string, elapsed time.Duration) {
	toolCalls.WithLabelValues(tool, outcome).Inc()
	toolLatency.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// RecordTokens records model token usage.
func RecordTokens(input, output int) {
	modelTokens.WithLabelValues("input").Add(float64(input))
	modelTokens.WithLabelValues("output").Add(float64(output))
}

// SetKnowledgeChunks sets the indexed chunk count for a source.
func SetKnowledgeChunks(source string, n int) {
	knowledgeChunks.WithLabelValues(source).Set(float64(n))
}
