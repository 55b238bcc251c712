package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/tokenizer"
	"github.com/BaSui01/agentlab/llm/tools"
	"go.uber.org/zap"
)

// Config Agent 配置
type Config struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        Type    `json:"type"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// MaxHistoryTokens 发送给 LLM 的历史上限；0 表示不裁剪
	MaxHistoryTokens int `json:"max_history_tokens,omitempty"`
}

// Base 提供对话历史、工具注册/执行与 LLM 调用
type Base struct {
	config   Config
	provider llm.Provider
	registry *tools.DefaultRegistry
	executor *tools.DefaultExecutor
	counter  tokenizer.Counter

	mu      sync.RWMutex
	history []llm.Message

	logger *zap.Logger
}

// NewBase 创建 Base；counter 为 nil 时使用估算器，observer 可以为 nil
func NewBase(cfg Config, provider llm.Provider, counter tokenizer.Counter, observer tools.ExecutionObserver, logger *zap.Logger) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	if counter == nil {
		counter = tokenizer.NewEstimatorCounter()
	}
	logger = logger.With(zap.String("agent_id", cfg.ID), zap.String("agent_type", string(cfg.Type)))

	registry := tools.NewDefaultRegistry(logger)
	executor := tools.NewDefaultExecutor(registry, logger)
	if observer != nil {
		executor = executor.WithObserver(observer)
	}
	return &Base{
		config:   cfg,
		provider: provider,
		registry: registry,
		executor: executor,
		counter:  counter,
		logger:   logger,
	}
}

func (b *Base) ID() string { return b.config.ID }
func (b *Base) Name() string { return b.config.Name }
func (b *Base) Type() Type { return b.config.Type }
func (b *Base) Model() string { return b.config.Model }
func (b *Base) Config() Config { return b.config }
func (b *Base) Provider() llm.Provider { return b.provider }
func (b *Base) Registry() *tools.DefaultRegistry { return b.registry }
func (b *Base) Executor() *tools.DefaultExecutor { return b.executor }
func (b *Base) Logger() *zap.Logger { return b.logger }
func (b *Base) TokenCounter() tokenizer.Counter { return b.counter }

// =============================================================================
// 对话历史
// =============================================================================

// History 返回历史副本
func (b *Base) History() []llm.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]llm.Message, len(b.history))
	copy(out, b.history)
	return out
}

// Append 追加消息
func (b *Base) Append(msgs ...llm.Message) {
	b.mu.Lock()
	b.history = append(b.history, msgs...)
	b.mu.Unlock()
}

// ClearHistory 清空历史
func (b *Base) ClearHistory() {
	b.mu.Lock()
	b.history = nil
	b.mu.Unlock()
	b.logger.Info("conversation history cleared")
}

// Messages 返回 prefix + 裁剪后的历史 + extra
func (b *Base) Messages(prefix []llm.Message, extra ...llm.Message) []llm.Message {
	history := b.History()
	if b.config.MaxHistoryTokens > 0 {
		budget := b.config.MaxHistoryTokens - tokenizer.CountMessages(b.counter, prefix) - tokenizer.CountMessages(b.counter, extra)
		if budget < 1 {
			budget = 1
		}
		trimmed := tokenizer.TrimHistory(b.counter, history, budget)
		if len(trimmed) < len(history) {
			b.logger.Debug("history trimmed", zap.Int("from", len(history)), zap.Int("to", len(trimmed)))
		}
		history = trimmed
	}
	out := make([]llm.Message, 0, len(prefix)+len(history)+len(extra))
	out = append(out, prefix...)
	out = append(out, history...)
	return append(out, extra...)
}

// =============================================================================
// 工具
// =============================================================================

// RegisterTool 注册工具
func (b *Base) RegisterTool(name string, fn tools.ToolFunc, meta tools.ToolMetadata) error {
	return b.registry.Register(name, fn, meta)
}

// Tools 返回按名称排序的工具描述
func (b *Base) Tools() []ToolInfo {
	schemas := b.registry.Schemas()
	out := make([]ToolInfo, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, ToolInfo{Name: s.Name, Description: s.Description, Parameters: s.Parameters})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ToolNames 返回工具名列表
func (b *Base) ToolNames() []string { return b.registry.List() }

// CallTool 以 args（会被序列化为 JSON）直接调用一个工具
func (b *Base) CallTool(ctx context.Context, name string, args any) tools.ToolResult {
	raw, err := json.Marshal(args)
	if err != nil {
		return tools.ToolResult{Name: name, Error: fmt.Sprintf("invalid arguments: %v", err)}
	}
	return b.executor.ExecuteOne(ctx, llm.ToolCall{ID: "direct_" + name, Name: name, Arguments: raw})
}

// ExecuteCalls 执行 LLM 返回的工具调用，结果顺序与 calls 一致
func (b *Base) ExecuteCalls(ctx context.Context, calls []llm.ToolCall) []tools.ToolResult {
	return b.executor.Execute(ctx, calls)
}

// RunToolCalls 执行工具调用并格式化为 "name: result" 文本；
// 未知工具为 "Unknown tool: name"，失败为 "Error executing name: err"。
// used 只包含执行成功的工具名
func (b *Base) RunToolCalls(ctx context.Context, calls []llm.ToolCall) (lines, used []string) {
	results := b.executor.Execute(ctx, calls)
	for _, r := range results {
		switch {
		case !b.registry.Has(r.Name):
			lines = append(lines, "Unknown tool: "+r.Name)
		case !r.OK():
			lines = append(lines, fmt.Sprintf("Error executing %s: %s", r.Name, r.Error))
		default:
			lines = append(lines, fmt.Sprintf("%s: %s", r.Name, tools.ResultText(r)))
			used = append(used, r.Name)
		}
	}
	return lines, used
}

// =============================================================================
// LLM
// =============================================================================

// Complete 发送请求；未指定时填充模型、温度与 MaxTokens
func (b *Base) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if b.provider == nil {
		return nil, ErrProviderNotSet
	}
	if req.Model == "" {
		req.Model = b.config.Model
	}
	if req.Temperature == 0 {
		req.Temperature = b.config.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = b.config.MaxTokens
	}
	resp, err := b.provider.Completion(ctx, req)
	if err != nil {
		b.logger.Warn("llm completion failed", zap.String("model", req.Model), zap.Error(err))
		return nil, err
	}
	if _, err := llm.FirstChoice(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Ask 发送 messages 并返回第一条回复的文本；空文本视为错误
func (b *Base) Ask(ctx context.Context, messages []llm.Message) (string, error) {
	resp, err := b.Complete(ctx, &llm.ChatRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	content := llm.FirstContent(resp)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
