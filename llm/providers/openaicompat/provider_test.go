package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/agentlab/config"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func boolPtr(b bool) *bool { return &b }

func userReq(content string) *llm.ChatRequest {
	return &llm.ChatRequest{Messages: []llm.Message{llm.UserMessage(content)}}
}

// ---------------------------------------------------------------------------
// constructors
// ---------------------------------------------------------------------------

func TestNew_Defaults(t *testing.T) {
	p := New(Config{ProviderName: "test"}, nil)
	assert.Equal(t, "/v1/chat/completions", p.Cfg.EndpointPath)
	assert.Equal(t, "/v1/models", p.Cfg.ModelsEndpoint)
	assert.Equal(t, 60*time.Second, p.Client.Timeout)
	assert.True(t, p.SupportsNativeFunctionCalling())

	p = New(Config{ProviderName: "no-tools", SupportsTools: boolPtr(false), Timeout: 5 * time.Second}, zap.NewNop())
	assert.False(t, p.SupportsNativeFunctionCalling())
	assert.Equal(t, 5*time.Second, p.Client.Timeout)
}

func TestNewGroq(t *testing.T) {
	cfg := config.GroqConfig{APIKey: "gsk_configured", Model: "llama3-8b-8192"}

	p := NewGroq(cfg, "", 0, nil)
	assert.Equal(t, "groq", p.Name())
	assert.Equal(t, "https://api.groq.com/openai", p.Cfg.BaseURL)
	assert.Equal(t, "gsk_configured", p.Cfg.APIKey)
	assert.Equal(t, "llama3-8b-8192", p.Cfg.DefaultModel)

	p = NewGroq(cfg, "  gsk_override ", 0, nil)
	assert.Equal(t, "gsk_override", p.Cfg.APIKey)
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func TestProvider_Completion_Success(t *testing.T) {
	var body providers.OpenAICompatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(providers.OpenAICompatResponse{
			ID:    "resp-1",
			Model: "llama-3.3-70b-versatile",
			Choices: []providers.OpenAICompatChoice{{
				FinishReason: "stop",
				Message:      providers.OpenAICompatMessage{Role: "assistant", Content: "Hello!"},
			}},
			Usage:   &providers.OpenAICompatUsage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7},
			Created: 1700000000,
		})
	}))
	t.Cleanup(server.Close)

	p := New(Config{ProviderName: "test", APIKey: "test-key", BaseURL: server.URL, DefaultModel: "llama-3.3-70b-versatile"}, zap.NewNop())
	resp, err := p.Completion(context.Background(), userReq("Hi"))
	require.NoError(t, err)
	assert.Equal(t, "resp-1", resp.ID)
	assert.Equal(t, "test", resp.Provider)
	assert.Equal(t, "Hello!", llm.FirstContent(resp))
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	assert.False(t, resp.CreatedAt.IsZero())

	assert.Equal(t, "llama-3.3-70b-versatile", body.Model)
	assert.Nil(t, body.ToolChoice, "tool_choice must be omitted without tools")
}

func TestProvider_Completion_ToolsAndChoice(t *testing.T) {
	var raw map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		fmt.Fprint(w, `{"id":"x","choices":[{"message":{"role":"assistant","tool_calls":[{"id":"c1","type":"function","function":{"name":"add_numbers","arguments":"{\"a\":2,\"b\":3}"}}]}}]}`)
	}))
	t.Cleanup(server.Close)

	p := New(Config{ProviderName: "groq", APIKey: "k", BaseURL: server.URL}, nil)
	req := userReq("what is 2+3")
	req.Tools = []llm.ToolSchema{{Name: "add_numbers", Description: "Add two numbers", Parameters: json.RawMessage(`{"type":"object"}`)}}
	req.ToolChoice = "auto"

	resp, err := p.Completion(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "auto", raw["tool_choice"])

	msg := llm.FirstMessage(resp)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "add_numbers", msg.ToolCalls[0].Name)
	assert.JSONEq(t, `{"a":2,"b":3}`, string(msg.ToolCalls[0].Arguments))

	// 指定工具名时转换为 function 对象
	req.ToolChoice = "add_numbers"
	_, err = p.Completion(context.Background(), req)
	require.NoError(t, err)
	choice, ok := raw["tool_choice"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "function", choice["type"])
}

func TestProvider_Completion_HTTPError(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		code      llm.ErrorCode
		retryable bool
	}{
		{http.StatusUnauthorized, `{"error":{"message":"Invalid API Key"}}`, llm.ErrUnauthorized, false},
		{http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached"}}`, llm.ErrRateLimited, true},
		{http.StatusServiceUnavailable, `unavailable`, llm.ErrUpstreamError, true},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			t.Cleanup(server.Close)

			p := New(Config{ProviderName: "groq", APIKey: "k", BaseURL: server.URL}, nil)
			_, err := p.Completion(context.Background(), userReq("Hi"))
			var llmErr *llm.Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.code, llmErr.Code)
			assert.Equal(t, tt.retryable, llmErr.Retryable)
			assert.Equal(t, "groq", llmErr.Provider)
		})
	}
}

func TestProvider_Completion_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{not json")
	}))
	t.Cleanup(server.Close)

	p := New(Config{ProviderName: "groq", APIKey: "k", BaseURL: server.URL}, nil)
	_, err := p.Completion(context.Background(), userReq("Hi"))
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrUpstreamError, llmErr.Code)
}

func TestProvider_Completion_MissingKeyAndEmptyMessages(t *testing.T) {
	p := New(Config{ProviderName: "groq", BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := p.Completion(context.Background(), userReq("Hi"))
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrProviderUnavailable, llmErr.Code)

	p.Cfg.APIKey = "k"
	_, err = p.Completion(context.Background(), &llm.ChatRequest{})
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrInvalidRequest, llmErr.Code)
}

func TestProvider_Completion_RequestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	p := New(Config{ProviderName: "groq", APIKey: "k", BaseURL: server.URL}, nil)
	req := userReq("Hi")
	req.Timeout = 50 * time.Millisecond
	_, err := p.Completion(context.Background(), req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

func TestProvider_Stream_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []providers.OpenAICompatResponse{
			{ID: "s1", Choices: []providers.OpenAICompatChoice{{Delta: &providers.OpenAICompatMessage{Role: "assistant", Content: "Hel"}}}},
			{ID: "s1", Choices: []providers.OpenAICompatChoice{{Delta: &providers.OpenAICompatMessage{Content: "lo"}}}},
			{ID: "s1", Choices: []providers.OpenAICompatChoice{{FinishReason: "stop", Delta: &providers.OpenAICompatMessage{}}}},
		}
		for _, c := range chunks {
			data, _ := json.Marshal(c)
			fmt.Fprintf(w, "data: %s\n\n", data)
		}
		fmt.Fprint(w, ": keep-alive\n\ndata: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)

	p := New(Config{ProviderName: "groq", APIKey: "key", BaseURL: server.URL}, nil)
	ch, err := p.Stream(context.Background(), userReq("Hi"))
	require.NoError(t, err)

	var content, lastFinish string
	for chunk := range ch {
		require.Nil(t, chunk.Err)
		content += chunk.Delta.Content
		if chunk.FinishReason != "" {
			lastFinish = chunk.FinishReason
		}
	}
	assert.Equal(t, "Hello", content)
	assert.Equal(t, "stop", lastFinish)
}

func TestProvider_Stream_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited"}}`)
	}))
	t.Cleanup(server.Close)

	p := New(Config{ProviderName: "groq", APIKey: "key", BaseURL: server.URL}, nil)
	_, err := p.Stream(context.Background(), userReq("Hi"))
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrRateLimited, llmErr.Code)
}

func TestProvider_Stream_MalformedChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {broken\n\n")
	}))
	t.Cleanup(server.Close)

	p := New(Config{ProviderName: "groq", APIKey: "key", BaseURL: server.URL}, nil)
	ch, err := p.Stream(context.Background(), userReq("Hi"))
	require.NoError(t, err)
	_, err = llm.CollectStream(ch)
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// HealthCheck
// ---------------------------------------------------------------------------

func TestProvider_HealthCheck(t *testing.T) {
	healthy := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
			return
		}
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	t.Cleanup(server.Close)

	p := New(Config{ProviderName: "groq", APIKey: "key", BaseURL: server.URL}, nil)
	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)

	healthy = false
	status, err = p.HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
	assert.Contains(t, err.Error(), "bad key")
}
