package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEmptyBodyDefaults(t *testing.T) {
	out := normalizeRequestBody(map[string]interface{}{})

	assert.Equal(t, defaultModel, out["model"])
	assert.Equal(t, defaultInstructions, out["instructions"])
	assert.Equal(t, false, out["store"])
	assert.Equal(t, true, out["stream"])
	assert.Equal(t, "auto", out["tool_choice"])
	assert.Equal(t, true, out["parallel_tool_calls"])
	assert.Empty(t, out["tools"])
	assert.Empty(t, out["include"])

	input, ok := out["input"].([]interface{})
	require.True(t, ok, "input must be an array")
	require.NotEmpty(t, input, "input must never be empty")
}

func TestNormalizeNilBody(t *testing.T) {
	out := normalizeRequestBody(nil)
	input := out["input"].([]interface{})
	require.NotEmpty(t, input)
}

func TestNormalizeHighEffortAliasResolution(t *testing.T) {
	for _, alias := range []string{"gpt-5.3-codex-high", "GPT-5.3-Codex-High", "  codex-high  "} {
		out := normalizeRequestBody(map[string]interface{}{"model": alias})
		assert.Equal(t, defaultModel, out["model"], "alias %q", alias)
	}
}

func TestNormalizeUnknownModelPassesThrough(t *testing.T) {
	out := normalizeRequestBody(map[string]interface{}{"model": "GPT-5.1-Codex"})
	assert.Equal(t, "gpt-5.1-codex", out["model"])
}

func TestNormalizeInputStringWrapped(t *testing.T) {
	out := normalizeRequestBody(map[string]interface{}{"input": "hello there"})

	input := out["input"].([]interface{})
	require.Len(t, input, 1)
	msg := input[0].(map[string]interface{})
	assert.Equal(t, "user", msg["role"])
	content := msg["content"].([]interface{})
	require.Len(t, content, 1)
	part := content[0].(map[string]interface{})
	assert.Equal(t, "input_text", part["type"])
	assert.Equal(t, "hello there", part["text"])
}

func TestNormalizeInputArrayVerbatim(t *testing.T) {
	original := []interface{}{
		map[string]interface{}{"role": "user", "content": "raw passthrough"},
	}
	out := normalizeRequestBody(map[string]interface{}{"input": original})
	assert.Equal(t, original, out["input"])
}

func TestNormalizeMessagesConversion(t *testing.T) {
	out := normalizeRequestBody(map[string]interface{}{
		"messages": []interface{}{
			map[string]interface{}{"role": "system", "content": "be terse"},
			map[string]interface{}{"role": "user", "content": []interface{}{"structured"}}, // skipped
			map[string]interface{}{"content": "no role"},
			"not a message", // skipped
		},
	})

	input := out["input"].([]interface{})
	require.Len(t, input, 2)

	first := input[0].(map[string]interface{})
	assert.Equal(t, "system", first["role"])
	second := input[1].(map[string]interface{})
	assert.Equal(t, "user", second["role"], "missing role defaults to user")
}

func TestNormalizeMessagesAllSkippedFallsBackToGreeting(t *testing.T) {
	out := normalizeRequestBody(map[string]interface{}{
		"messages": []interface{}{
			map[string]interface{}{"role": "user", "content": 42},
		},
	})
	input := out["input"].([]interface{})
	require.Len(t, input, 1)
}

func TestNormalizeReasoningEffort(t *testing.T) {
	out := normalizeRequestBody(map[string]interface{}{
		"reasoning": map[string]interface{}{"effort": "HIGH"},
	})
	reasoning := out["reasoning"].(map[string]interface{})
	assert.Equal(t, "high", reasoning["effort"])

	out = normalizeRequestBody(map[string]interface{}{})
	reasoning = out["reasoning"].(map[string]interface{})
	assert.Equal(t, defaultReasoningEffort, reasoning["effort"])
}

func TestNormalizeForcesStreamAndStore(t *testing.T) {
	out := normalizeRequestBody(map[string]interface{}{
		"stream": false,
		"store":  true,
	})
	assert.Equal(t, true, out["stream"], "upstream always streams")
	assert.Equal(t, false, out["store"], "store is always disabled")
}

func TestNormalizeIncludeRejectsNonStrings(t *testing.T) {
	out := normalizeRequestBody(map[string]interface{}{
		"include": []interface{}{"reasoning.encrypted_content", 7},
	})
	assert.Empty(t, out["include"])

	out = normalizeRequestBody(map[string]interface{}{
		"include": []interface{}{"reasoning.encrypted_content"},
	})
	assert.Len(t, out["include"], 1)
}

func TestClientRequestedStream(t *testing.T) {
	assert.True(t, clientRequestedStream(map[string]interface{}{"stream": true}))
	assert.False(t, clientRequestedStream(map[string]interface{}{"stream": false}))
	assert.False(t, clientRequestedStream(map[string]interface{}{"stream": "yes"}))
	assert.False(t, clientRequestedStream(map[string]interface{}{}))
}
