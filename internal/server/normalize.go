package server

import "strings"

const (
	defaultModel           = "gpt-5.3-codex"
	defaultReasoningEffort = "medium"
	defaultInstructions    = "You are a coding assistant accessed through a relay proxy. Answer directly and concisely."
	defaultGreetingText    = "Hello!"
)

// highEffortAliases are model names that encode the high reasoning tier in
// the id; they collapse to the canonical high-tier backend model.
var highEffortAliases = map[string]bool{
	"gpt-5.3-codex-high": true,
	"gpt-5.1-codex-high": true,
	"gpt-5-codex-high":   true,
	"codex-high":         true,
}

// normalizeRequestBody maps an arbitrary client payload to the strict shape
// the Codex Responses backend expects. It is a total function: malformed or
// missing fields get safe defaults, never errors. The wire request always
// streams; the client-visible streaming choice is handled by the caller.
func normalizeRequestBody(body map[string]interface{}) map[string]interface{} {
	if body == nil {
		body = map[string]interface{}{}
	}

	normalized := map[string]interface{}{
		"model":               resolveModel(body),
		"instructions":        resolveInstructions(body),
		"input":               resolveInput(body),
		"reasoning":           resolveReasoning(body),
		"tools":               resolveTools(body),
		"tool_choice":         resolveToolChoice(body),
		"parallel_tool_calls": resolveParallelToolCalls(body),
		"include":             resolveInclude(body),
		"store":               false,
		"stream":              true,
	}
	return normalized
}

func resolveModel(body map[string]interface{}) string {
	model, _ := body["model"].(string)
	model = strings.ToLower(strings.TrimSpace(model))
	if model == "" {
		return defaultModel
	}
	if highEffortAliases[model] {
		return defaultModel
	}
	return model
}

func resolveInstructions(body map[string]interface{}) string {
	if instr, ok := body["instructions"].(string); ok && strings.TrimSpace(instr) != "" {
		return instr
	}
	return defaultInstructions
}

// resolveInput prefers, in order: a verbatim input array, a non-empty input
// string wrapped as a user message, a chat-style messages array, then a
// default greeting. The upstream always receives a non-empty input sequence.
func resolveInput(body map[string]interface{}) []interface{} {
	if input, ok := body["input"].([]interface{}); ok {
		return input
	}

	if text, ok := body["input"].(string); ok && text != "" {
		return []interface{}{textMessage("user", text)}
	}

	if messages, ok := body["messages"].([]interface{}); ok {
		converted := make([]interface{}, 0, len(messages))
		for _, raw := range messages {
			msg, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			content, ok := msg["content"].(string)
			if !ok {
				continue
			}
			role, _ := msg["role"].(string)
			if role == "" {
				role = "user"
			}
			converted = append(converted, textMessage(role, content))
		}
		if len(converted) > 0 {
			return converted
		}
	}

	return []interface{}{textMessage("user", defaultGreetingText)}
}

func textMessage(role, text string) map[string]interface{} {
	return map[string]interface{}{
		"type": "message",
		"role": role,
		"content": []interface{}{
			map[string]interface{}{
				"type": "input_text",
				"text": text,
			},
		},
	}
}

func resolveReasoning(body map[string]interface{}) map[string]interface{} {
	effort := defaultReasoningEffort
	if reasoning, ok := body["reasoning"].(map[string]interface{}); ok {
		if explicit, ok := reasoning["effort"].(string); ok && explicit != "" {
			effort = strings.ToLower(explicit)
		}
	}
	return map[string]interface{}{"effort": effort}
}

func resolveTools(body map[string]interface{}) []interface{} {
	if tools, ok := body["tools"].([]interface{}); ok {
		return tools
	}
	return []interface{}{}
}

func resolveToolChoice(body map[string]interface{}) interface{} {
	if choice, ok := body["tool_choice"]; ok && choice != nil {
		return choice
	}
	return "auto"
}

func resolveParallelToolCalls(body map[string]interface{}) bool {
	if v, ok := body["parallel_tool_calls"].(bool); ok {
		return v
	}
	return true
}

func resolveInclude(body map[string]interface{}) []interface{} {
	if include, ok := body["include"].([]interface{}); ok {
		for _, item := range include {
			if _, ok := item.(string); !ok {
				return []interface{}{}
			}
		}
		return include
	}
	return []interface{}{}
}

// clientRequestedStream records the original streaming preference before
// normalization forces stream=true on the wire.
func clientRequestedStream(body map[string]interface{}) bool {
	v, ok := body["stream"].(bool)
	return ok && v
}
