// Package agent runs the LLM-backed support agent: a bounded tool-calling
// loop over the conversation thread with a closed set of tools.
package agent

import (
	"encoding/json"
	"fmt"

	"github.com/orbitdesk-ai/support-platform/internal/llm"
	"github.com/orbitdesk-ai/support-platform/pkg/errcode"
)

// ToolKind enumerates the tools the agent may call. The set is closed:
// an unknown name from the model is a dispatch error, not an extension
// point.
type ToolKind string

const (
	ToolSearchKnowledge ToolKind = "search_knowledge"
	ToolEscalate        ToolKind = "escalate_conversation"
	ToolResolve         ToolKind = "resolve_conversation"
)

type searchKnowledgeArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type escalateArgs struct {
	Reason string `json:"reason,omitempty"`
}

type resolveArgs struct {
	Summary string `json:"summary,omitempty"`
}

// ToolDefinitions describes the agent's tools to the model.
var ToolDefinitions = []llm.Tool{
	{
		Name:        string(ToolSearchKnowledge),
		Description: "Search the organization's knowledge base for documentation relevant to the customer's question.",
		Parameters: toolParams(
			map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query to run against the knowledge base.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results to return (default 5).",
				},
			},
			[]string{"query"},
		),
	},
	{
		Name:        string(ToolEscalate),
		Description: "Escalate the conversation to a human support agent when the customer asks for one or the issue cannot be resolved.",
		Parameters: toolParams(
			map[string]any{
				"reason": map[string]any{
					"type":        "string",
					"description": "Short reason for the escalation.",
				},
			},
			nil,
		),
	},
	{
		Name:        string(ToolResolve),
		Description: "Mark the conversation resolved once the customer confirms their issue is handled.",
		Parameters: toolParams(
			map[string]any{
				"summary": map[string]any{
					"type":        "string",
					"description": "One-line summary of the resolution.",
				},
			},
			nil,
		),
	},
}

func toolParams(properties map[string]any, required []string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func decodeArgs(call llm.ToolCall, into any) error {
	if len(call.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(call.Arguments, into); err != nil {
		return errcode.Wrap(errcode.CodeInvalidArgument,
			fmt.Sprintf("decode %s arguments", call.Name), err)
	}
	return nil
}
