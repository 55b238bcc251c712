// MockProvider 的 LLM 提供商测试模拟实现。
//
// 支持按顺序回放的脚本化响应、工具调用、错误注入与请求记录。
package mocks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentlab/llm"
)

// ErrScriptExhausted 脚本中的响应已用完且没有默认响应
var ErrScriptExhausted = errors.New("mock provider: no scripted response left")

// Step 一次 Completion 调用的脚本化结果
type Step struct {
	Content   string
	ToolCalls []llm.ToolCall
	Err       error
}

// --- MockProvider 结构 ---

// MockProvider 是 llm.Provider 的模拟实现
type MockProvider struct {
	mu sync.Mutex

	name     string
	script   []Step
	fallback *Step

	completionFunc func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	calls []*llm.ChatRequest
	delay time.Duration
}

// NewMockProvider 创建新的 MockProvider；未编排脚本时返回 "Mock response"
func NewMockProvider() *MockProvider {
	return &MockProvider{
		name:     "mock",
		fallback: &Step{Content: "Mock response"},
	}
}

// --- Builder 方法 ---

// WithResponse 设置默认响应内容（脚本用完后返回）
func (m *MockProvider) WithResponse(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &Step{Content: response}
	return m
}

// WithError 设置默认错误（脚本用完后返回）
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &Step{Err: err}
	return m
}

// WithoutFallback 脚本用完后返回 ErrScriptExhausted
func (m *MockProvider) WithoutFallback() *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = nil
	return m
}

// Then 追加一个文本响应
func (m *MockProvider) Then(content string) *MockProvider {
	return m.ThenStep(Step{Content: content})
}

// ThenToolCalls 追加一个带工具调用的响应
func (m *MockProvider) ThenToolCalls(calls ...llm.ToolCall) *MockProvider {
	return m.ThenStep(Step{ToolCalls: calls})
}

// ThenError 追加一个错误
func (m *MockProvider) ThenError(err error) *MockProvider {
	return m.ThenStep(Step{Err: err})
}

// ThenStep 追加任意脚本步骤
func (m *MockProvider) ThenStep(s Step) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, s)
	return m
}

// WithCompletionFunc 设置自定义 Completion 函数（优先于脚本）
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completionFunc = fn
	return m
}

// WithDelay 设置响应延迟
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithName 设置 Provider 名称
func (m *MockProvider) WithName(name string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return m
}

// --- llm.Provider 实现 ---

func (m *MockProvider) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

func (m *MockProvider) SupportsNativeFunctionCalling() bool { return true }

func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	snapshot := *req
	snapshot.Messages = append([]llm.Message(nil), req.Messages...)
	m.calls = append(m.calls, &snapshot)
	delay := m.delay
	fn := m.completionFunc
	var step *Step
	if fn == nil {
		if len(m.script) > 0 {
			s := m.script[0]
			m.script = m.script[1:]
			step = &s
		} else if m.fallback != nil {
			s := *m.fallback
			step = &s
		}
	}
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fn != nil {
		return fn(ctx, req)
	}
	if step == nil {
		return nil, ErrScriptExhausted
	}
	if step.Err != nil {
		return nil, step.Err
	}

	finish := "stop"
	if len(step.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	return &llm.ChatResponse{
		ID:       "mock-" + req.Model,
		Provider: m.Name(),
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			FinishReason: finish,
			Message: llm.Message{
				Role:      llm.RoleAssistant,
				Content:   step.Content,
				ToolCalls: step.ToolCalls,
			},
		}},
		CreatedAt: time.Now(),
	}, nil
}

// Stream 把 Completion 的内容按单词拆成 chunk
func (m *MockProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	resp, err := m.Completion(ctx, req)
	if err != nil {
		return nil, err
	}
	msg := resp.Choices[0].Message
	words := strings.Fields(msg.Content)
	ch := make(chan llm.StreamChunk, len(words)+1)
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		ch <- llm.StreamChunk{Provider: resp.Provider, Model: resp.Model, Delta: llm.Message{Role: llm.RoleAssistant, Content: w}}
	}
	ch <- llm.StreamChunk{Provider: resp.Provider, Model: resp.Model, Delta: llm.Message{ToolCalls: msg.ToolCalls}, FinishReason: resp.Choices[0].FinishReason}
	close(ch)
	return ch, nil
}

// --- 调用记录 ---

// Calls 返回记录的请求
func (m *MockProvider) Calls() []*llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.ChatRequest(nil), m.calls...)
}

// CallCount 返回调用次数
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall 返回最后一次请求
func (m *MockProvider) LastCall() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// Remaining 返回未消费的脚本步数
func (m *MockProvider) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.script)
}
