package providers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/BaSui01/agentlab/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		msg       string
		code      llm.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, "Invalid API key", llm.ErrUnauthorized, false},
		{http.StatusForbidden, "denied", llm.ErrForbidden, false},
		{http.StatusTooManyRequests, "slow down", llm.ErrRateLimited, true},
		{http.StatusBadRequest, "You exceeded your current quota", llm.ErrQuotaExceeded, false},
		{http.StatusBadRequest, "messages must not be empty", llm.ErrInvalidRequest, false},
		{http.StatusGatewayTimeout, "", llm.ErrUpstreamTimeout, true},
		{http.StatusServiceUnavailable, "", llm.ErrUpstreamError, true},
		{529, "overloaded", llm.ErrModelOverloaded, true},
		{http.StatusNotFound, "no model", llm.ErrUpstreamError, false},
		{http.StatusInternalServerError, "", llm.ErrUpstreamError, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status)+"/"+tt.msg, func(t *testing.T) {
			e := MapHTTPError(tt.status, tt.msg, "groq")
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, tt.status, e.HTTPStatus)
			assert.Equal(t, "groq", e.Provider)
			assert.Equal(t, tt.msg, e.Message)
		})
	}
}

func TestMapHTTPError_ServerErrorsAlwaysRetryable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		status := rapid.IntRange(500, 599).Draw(t, "status")
		e := MapHTTPError(status, "x", "p")
		if !e.Retryable {
			t.Fatalf("status %d not retryable", status)
		}
	})
}

func TestReadErrorMessage(t *testing.T) {
	assert.Equal(t, "bad key (type: auth)",
		ReadErrorMessage(strings.NewReader(`{"error":{"message":"bad key","type":"auth"}}`)))
	assert.Equal(t, "bad key",
		ReadErrorMessage(strings.NewReader(`{"error":{"message":"bad key"}}`)))
	assert.Equal(t, "gateway down", ReadErrorMessage(strings.NewReader("gateway down\n")))
}

func TestConvertMessagesToOpenAI(t *testing.T) {
	msgs := []llm.Message{
		llm.SystemMessage("sys"),
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Name: "add_numbers", Arguments: json.RawMessage(`{"a":1,"b":2}`)}}},
		{Role: llm.RoleTool, ToolCallID: "c1", Content: "3"},
	}
	out := ConvertMessagesToOpenAI(msgs)
	require.Len(t, out, 3)
	assert.Equal(t, "system", out[0].Role)
	require.Len(t, out[1].ToolCalls, 1)
	assert.Equal(t, "function", out[1].ToolCalls[0].Type)
	assert.Equal(t, `{"a":1,"b":2}`, out[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, "c1", out[2].ToolCallID)

	// arguments 必须以 JSON 字符串形式编码
	raw, err := json.Marshal(out[1])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"arguments":"{\"a\":1,\"b\":2}"`)
}

func TestConvertToolsToOpenAI(t *testing.T) {
	assert.Nil(t, ConvertToolsToOpenAI(nil))
	tools := ConvertToolsToOpenAI([]llm.ToolSchema{{
		Name:        "get_weather",
		Description: "Get current weather",
		Parameters:  json.RawMessage(`{"type":"object"}`),
	}})
	require.Len(t, tools, 1)
	assert.Equal(t, "function", tools[0].Type)
	assert.Equal(t, "Get current weather", tools[0].Function.Description)
	assert.JSONEq(t, `{"type":"object"}`, string(tools[0].Function.Parameters))
}

func TestToLLMChatResponse(t *testing.T) {
	var oa OpenAICompatResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"id":"chatcmpl-1","model":"llama-3.3-70b-versatile",
		"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"",
			"tool_calls":[{"id":"call_1","type":"function","function":{"name":"multiply_numbers","arguments":"{\"a\":6,\"b\":7}"}}]}}],
		"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`), &oa))

	resp := ToLLMChatResponse(oa, "groq")
	assert.Equal(t, "groq", resp.Provider)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	msg := llm.FirstMessage(resp)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "multiply_numbers", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"a":6,"b":7}`, string(msg.ToolCalls[0].Arguments))
}

func TestChooseModel(t *testing.T) {
	assert.Equal(t, "req", ChooseModel(&llm.ChatRequest{Model: "req"}, "def", "fb"))
	assert.Equal(t, "def", ChooseModel(&llm.ChatRequest{}, "def", "fb"))
	assert.Equal(t, "fb", ChooseModel(nil, "", "fb"))
}
