package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ToolFunc 工具函数签名；args 为 LLM 给出的 JSON 参数
type ToolFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// ToolMetadata 工具元数据
type ToolMetadata struct {
	Schema    llm.ToolSchema   // 工具 JSON Schema
	RateLimit *RateLimitConfig // 速率限制（可选）
	Timeout   time.Duration    // 执行超时（默认 30s）
	Keywords  []string         // 意图识别关键词
}

// RateLimitConfig 工具级速率限制
type RateLimitConfig struct {
	MaxCalls int           // 窗口内最大调用次数
	Window   time.Duration // 时间窗口
}

// ToolResult 工具执行结果
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Result     json.RawMessage `json:"result"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

// OK 报告执行是否成功
func (r ToolResult) OK() bool { return r.Error == "" }

// ToolStats 工具使用统计
type ToolStats struct {
	UsageCount  int64         `json:"usage_count"`
	Failures    int64         `json:"failures"`
	SuccessRate float64       `json:"success_rate"`
	LastUsed    time.Time     `json:"last_used,omitempty"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// ToolRegistry 工具注册中心接口
type ToolRegistry interface {
	Register(name string, fn ToolFunc, metadata ToolMetadata) error
	Unregister(name string) error
	Get(name string) (ToolFunc, ToolMetadata, error)
	List() []string
	Schemas() []llm.ToolSchema
	Has(name string) bool
}

const defaultToolTimeout = 30 * time.Second

var toolNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,63}$`)

// ValidToolName 报告 name 是否为合法的函数调用名
func ValidToolName(name string) bool {
	return toolNamePattern.MatchString(name)
}

type toolEntry struct {
	fn       ToolFunc
	meta     ToolMetadata
	limiter  *rate.Limiter
	calls    int64
	failures int64
	total    time.Duration
	lastUsed time.Time
}

// DefaultRegistry 基于 RWMutex 的工具注册中心
type DefaultRegistry struct {
	mu     sync.RWMutex
	tools  map[string]*toolEntry
	logger *zap.Logger
}

// NewDefaultRegistry 创建工具注册中心
func NewDefaultRegistry(logger *zap.Logger) *DefaultRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultRegistry{
		tools:  make(map[string]*toolEntry),
		logger: logger.With(zap.String("component", "tool_registry")),
	}
}

func (r *DefaultRegistry) Register(name string, fn ToolFunc, metadata ToolMetadata) error {
	if !ValidToolName(name) {
		return types.NewError(types.ErrToolValidation, fmt.Sprintf("invalid tool name %q", name)).
			WithHTTPStatus(400)
	}
	if fn == nil {
		return types.NewError(types.ErrToolValidation, fmt.Sprintf("tool %s has no function", name)).
			WithHTTPStatus(400)
	}
	if metadata.Schema.Name == "" {
		metadata.Schema.Name = name
	}
	if metadata.Schema.Name != name {
		return types.NewError(types.ErrToolValidation,
			fmt.Sprintf("tool name mismatch: schema.Name=%s, register name=%s", metadata.Schema.Name, name)).
			WithHTTPStatus(400)
	}
	if len(metadata.Schema.Parameters) == 0 {
		metadata.Schema.Parameters = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	if metadata.Timeout <= 0 {
		metadata.Timeout = defaultToolTimeout
	}

	entry := &toolEntry{fn: fn, meta: metadata}
	if rl := metadata.RateLimit; rl != nil && rl.MaxCalls > 0 && rl.Window > 0 {
		entry.limiter = rate.NewLimiter(rate.Every(rl.Window/time.Duration(rl.MaxCalls)), rl.MaxCalls)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return types.NewError(types.ErrConflict, fmt.Sprintf("tool %s already registered", name)).
			WithHTTPStatus(409)
	}
	r.tools[name] = entry

	r.logger.Debug("tool registered", zap.String("name", name), zap.Duration("timeout", metadata.Timeout))
	return nil
}

func (r *DefaultRegistry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return types.NewError(types.ErrToolNotFound, fmt.Sprintf("tool %s not found", name)).WithHTTPStatus(404)
	}
	delete(r.tools, name)

	r.logger.Info("tool unregistered", zap.String("name", name))
	return nil
}

func (r *DefaultRegistry) Get(name string) (ToolFunc, ToolMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return nil, ToolMetadata{}, types.NewError(types.ErrToolNotFound, fmt.Sprintf("tool %s not found", name)).
			WithHTTPStatus(404)
	}
	return e.fn, e.meta, nil
}

// List 返回按名称排序的工具名
func (r *DefaultRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas 返回按名称排序的工具 Schema，用于 ChatRequest.Tools
func (r *DefaultRegistry) Schemas() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]llm.ToolSchema, 0, len(r.tools))
	for _, e := range r.tools {
		schemas = append(schemas, e.meta.Schema)
	}
	sort.Slice(schemas, func(i, j int) bool { return schemas[i].Name < schemas[j].Name })
	return schemas
}

// Keywords 返回工具的意图识别关键词
func (r *DefaultRegistry) Keywords(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.tools[name]; ok {
		return append([]string(nil), e.meta.Keywords...)
	}
	return nil
}

func (r *DefaultRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Allow 检查工具级速率限制
func (r *DefaultRegistry) Allow(name string) error {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok || e.limiter == nil {
		return nil
	}
	if !e.limiter.Allow() {
		return types.NewError(types.ErrRateLimited, fmt.Sprintf("rate limit exceeded for tool %s", name)).
			WithHTTPStatus(429).WithRetryable(true)
	}
	return nil
}

// RecordResult 记录一次执行结果
func (r *DefaultRegistry) RecordResult(name string, ok bool, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, exists := r.tools[name]
	if !exists {
		return
	}
	e.calls++
	if !ok {
		e.failures++
	}
	e.total += d
	e.lastUsed = time.Now()
}

// Stats 返回所有工具的使用统计
func (r *DefaultRegistry) Stats() map[string]ToolStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]ToolStats, len(r.tools))
	for name, e := range r.tools {
		s := ToolStats{UsageCount: e.calls, Failures: e.failures, SuccessRate: 1.0, LastUsed: e.lastUsed}
		if e.calls > 0 {
			s.SuccessRate = float64(e.calls-e.failures) / float64(e.calls)
			s.AvgDuration = e.total / time.Duration(e.calls)
		}
		out[name] = s
	}
	return out
}
