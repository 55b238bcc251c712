package tools

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/agentlab/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls map[string][]bool
}

func (o *recordingObserver) RecordToolExecution(tool string, ok bool, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.calls == nil {
		o.calls = map[string][]bool{}
	}
	o.calls[tool] = append(o.calls[tool], ok)
}

func newTestExecutor(t *testing.T) (*DefaultRegistry, *DefaultExecutor) {
	t.Helper()
	reg := NewDefaultRegistry(nil)
	require.NoError(t, RegisterMathTools(reg))
	require.NoError(t, reg.Register("fail", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("boom")
	}, ToolMetadata{}))
	require.NoError(t, reg.Register("slow", func(ctx context.Context, _ json.RawMessage) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, ToolMetadata{Timeout: 20 * time.Millisecond}))
	require.NoError(t, reg.Register("panics", func(context.Context, json.RawMessage) (json.RawMessage, error) {
		panic("kaboom")
	}, ToolMetadata{}))
	return reg, NewDefaultExecutor(reg, nil)
}

func TestExecutor_ExecutePreservesOrder(t *testing.T) {
	_, exec := newTestExecutor(t)
	obs := &recordingObserver{}
	exec.WithObserver(obs).WithConcurrency(2)

	calls := []llm.ToolCall{
		{ID: "1", Name: "add_numbers", Arguments: json.RawMessage(`{"a":2,"b":3}`)},
		{ID: "2", Name: "fail", Arguments: json.RawMessage(`{}`)},
		{ID: "3", Name: "multiply_numbers", Arguments: json.RawMessage(`{"a":"4","b":2.5}`)},
		{ID: "4", Name: "nope"},
	}
	results := exec.Execute(context.Background(), calls)
	require.Len(t, results, 4)

	assert.Equal(t, "1", results[0].ToolCallID)
	assert.JSONEq(t, `5`, string(results[0].Result))
	assert.True(t, results[0].OK())

	assert.Equal(t, "boom", results[1].Error)
	assert.JSONEq(t, `10`, string(results[2].Result))
	assert.Contains(t, results[3].Error, "tool not found")

	assert.Equal(t, []bool{true}, obs.calls["add_numbers"])
	assert.Equal(t, []bool{false}, obs.calls["fail"])
	assert.NotContains(t, obs.calls, "nope")
}

func TestExecutor_ExecuteOneValidatesArguments(t *testing.T) {
	_, exec := newTestExecutor(t)

	res := exec.ExecuteOne(context.Background(), llm.ToolCall{Name: "add_numbers", Arguments: json.RawMessage(`{bad`)})
	assert.Contains(t, res.Error, "invalid arguments")

	res = exec.ExecuteOne(context.Background(), llm.ToolCall{Name: "add_numbers", Arguments: json.RawMessage(`[1,2]`)})
	assert.Contains(t, res.Error, "invalid arguments")

	// 空参数视为 {}
	res = exec.ExecuteOne(context.Background(), llm.ToolCall{Name: "add_numbers"})
	assert.Equal(t, errMissingOperand.Error(), res.Error)
}

func TestExecutor_Timeout(t *testing.T) {
	_, exec := newTestExecutor(t)

	res := exec.ExecuteOne(context.Background(), llm.ToolCall{Name: "slow"})
	assert.Contains(t, res.Error, "execution timeout")
}

func TestExecutor_Cancelled(t *testing.T) {
	_, exec := newTestExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := exec.ExecuteOne(ctx, llm.ToolCall{Name: "slow"})
	assert.NotEmpty(t, res.Error)
}

func TestExecutor_RecoversPanic(t *testing.T) {
	reg, exec := newTestExecutor(t)

	res := exec.ExecuteOne(context.Background(), llm.ToolCall{Name: "panics"})
	assert.Contains(t, res.Error, "kaboom")
	assert.Equal(t, int64(1), reg.Stats()["panics"].Failures)
}

func TestExecutor_RateLimited(t *testing.T) {
	reg := NewDefaultRegistry(nil)
	require.NoError(t, reg.Register("once", echoTool, ToolMetadata{
		RateLimit: &RateLimitConfig{MaxCalls: 1, Window: time.Hour},
	}))
	exec := NewDefaultExecutor(reg, nil)

	assert.True(t, exec.ExecuteOne(context.Background(), llm.ToolCall{Name: "once"}).OK())
	res := exec.ExecuteOne(context.Background(), llm.ToolCall{Name: "once"})
	assert.Contains(t, res.Error, "rate limit exceeded")
}

func TestResultText(t *testing.T) {
	assert.Equal(t, "hello", ResultText(ToolResult{Result: json.RawMessage(`"hello"`)}))
	assert.Equal(t, "42", ResultText(ToolResult{Result: json.RawMessage(`42`)}))
	assert.Equal(t, "Error: boom", ResultText(ToolResult{Error: "boom"}))
}
