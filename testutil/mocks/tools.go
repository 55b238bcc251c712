package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/tools"
)

// ToolCall 记录一次工具调用
type ToolCall struct {
	Name string
	Args map[string]any
}

// MockTool 返回固定文本（或错误）并记录参数的工具
type MockTool struct {
	mu     sync.Mutex
	name   string
	result string
	err    error
	calls  []ToolCall
}

// NewMockTool 创建返回 result 文本的工具
func NewMockTool(name, result string) *MockTool {
	return &MockTool{name: name, result: result}
}

// WithError 调用时返回 err
func (m *MockTool) WithError(err error) *MockTool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithResult 修改返回文本
func (m *MockTool) WithResult(result string) *MockTool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
	return m
}

// Func 返回 tools.ToolFunc
func (m *MockTool) Func() tools.ToolFunc {
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var parsed map[string]any
		_ = json.Unmarshal(args, &parsed)

		m.mu.Lock()
		m.calls = append(m.calls, ToolCall{Name: m.name, Args: parsed})
		result, err := m.result, m.err
		m.mu.Unlock()

		if err != nil {
			return nil, err
		}
		return tools.TextResult(result)
	}
}

// Metadata 返回带 object schema 的元数据
func (m *MockTool) Metadata(description string, keywords ...string) tools.ToolMetadata {
	return tools.ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        m.name,
			Description: description,
			Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		},
		Keywords: keywords,
	}
}

// Register 注册到 reg
func (m *MockTool) Register(reg tools.ToolRegistry, description string, keywords ...string) error {
	return reg.Register(m.name, m.Func(), m.Metadata(description, keywords...))
}

// Calls 返回调用记录
func (m *MockTool) Calls() []ToolCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ToolCall(nil), m.calls...)
}

// CallCount 返回调用次数
func (m *MockTool) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
