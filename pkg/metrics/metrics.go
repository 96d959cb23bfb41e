// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// AgentRunDuration tracks the full agent loop duration per turn.
	AgentRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agent_run_duration_seconds",
			Help:    "Agent turn duration including all tool rounds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"status"},
	)

	// AgentRounds tracks how many generation rounds each agent turn used.
	AgentRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "agent_rounds_per_turn",
			Help:    "Generation rounds consumed per agent turn",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	// ToolCallsTotal tracks tool invocations by kind and outcome.
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agent_tool_calls_total",
			Help: "Total tool calls made by the agent",
		},
		[]string{"tool", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
		[]string{"tenant_id"},
	)

	// ConversationTransitions tracks lifecycle transitions by outcome.
	ConversationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_transitions_total",
			Help: "Conversation status transitions",
		},
		[]string{"transition", "outcome"},
	)

	// MessagesTotal tracks total messages appended to threads.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages appended",
		},
		[]string{"tenant_id", "role"},
	)

	// KnowledgeIngestsTotal tracks file ingestions by outcome.
	KnowledgeIngestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_ingests_total",
			Help: "Knowledge file ingestions",
		},
		[]string{"outcome"},
	)

	// KnowledgeSearchDuration tracks knowledge search latency.
	KnowledgeSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "knowledge_search_duration_seconds",
			Help:    "Knowledge search latency",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// KnowledgeSearchResults tracks result counts per search.
	KnowledgeSearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "knowledge_search_results",
			Help:    "Results returned per knowledge search",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordAgentRun records metrics for one agent turn.
func RecordAgentRun(status string, duration float64, rounds int) {
	AgentRunDuration.WithLabelValues(status).Observe(duration)
	AgentRounds.Observe(float64(rounds))
}

// RecordToolCall records a single tool invocation.
func RecordToolCall(tool, status string) {
	ToolCallsTotal.WithLabelValues(tool, status).Inc()
}

// RecordLLMUsage records token usage for a generation call.
func RecordLLMUsage(model string, tokensIn, tokensOut int) {
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordKnowledgeSearch records latency and result count for a search.
func RecordKnowledgeSearch(duration float64, results int) {
	KnowledgeSearchDuration.Observe(duration)
	KnowledgeSearchResults.Observe(float64(results))
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
