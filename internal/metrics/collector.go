// Package metrics holds the server's Prometheus series and the handler that
// exposes them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry carries only the voicebot series plus the Go runtime and process
// collectors.
var Registry = prometheus.NewRegistry()

var (
	startTime = time.Now()
	factory   = promauto.With(Registry)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Uptime returns how long the process has been running.
func Uptime() time.Duration {
	return time.Since(startTime)
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

var (
	RequestsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "voicebot_requests_total",
		Help: "Total HTTP requests handled",
	})
	RequestErrors = factory.NewCounter(prometheus.CounterOpts{
		Name: "voicebot_request_errors_total",
		Help: "HTTP requests answered with a 5xx status",
	})
	TranscriptionsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "voicebot_transcriptions_total",
		Help: "Total speech-to-text calls",
	})
	LLMRequestsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "voicebot_llm_requests_total",
		Help: "Total chat model requests",
	})
	ToolExecutions = factory.NewCounter(prometheus.CounterOpts{
		Name: "voicebot_tool_executions_total",
		Help: "Total tool executions",
	})
	ToolErrors = factory.NewCounter(prometheus.CounterOpts{
		Name: "voicebot_tool_errors_total",
		Help: "Tool executions that failed",
	})
	TranscriptsStored = factory.NewCounter(prometheus.CounterOpts{
		Name: "voicebot_transcripts_stored_total",
		Help: "Transcript entries appended",
	})
	InFlightRequests = factory.NewGauge(prometheus.GaugeOpts{
		Name: "voicebot_in_flight_requests",
		Help: "HTTP requests currently running",
	})

	TranscriptionLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicebot_transcription_latency_seconds",
		Help:    "Speech-to-text latency in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	})
	LLMLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicebot_llm_latency_seconds",
		Help:    "Chat model latency in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
	ToolLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicebot_tool_latency_seconds",
		Help:    "Tool execution latency in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
	})

	toolCalls = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebot_tool_calls_total",
		Help: "Tool executions by tool name",
	}, []string{"tool"})

	_ = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "voicebot_uptime_seconds",
		Help: "Time since start in seconds",
	}, func() float64 { return Uptime().Seconds() })
)

// ToolCalls counts executions of one tool by name.
func ToolCalls(tool string) prometheus.Counter {
	return toolCalls.WithLabelValues(tool)
}
