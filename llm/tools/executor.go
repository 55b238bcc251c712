package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/llm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ToolExecutor 工具执行器接口
type ToolExecutor interface {
	Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult
	ExecuteOne(ctx context.Context, call llm.ToolCall) ToolResult
}

// ExecutionObserver 接收每次执行的结果（如 Prometheus 采集器）
type ExecutionObserver interface {
	RecordToolExecution(tool string, ok bool, duration time.Duration)
}

// ====== 实现：DefaultExecutor ======

type DefaultExecutor struct {
	registry    ToolRegistry
	observer    ExecutionObserver
	concurrency int
	logger      *zap.Logger
}

// NewDefaultExecutor 创建工具执行器
func NewDefaultExecutor(registry ToolRegistry, logger *zap.Logger) *DefaultExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultExecutor{
		registry:    registry,
		concurrency: 8,
		logger:      logger.With(zap.String("component", "tool_executor")),
	}
}

// WithObserver 设置执行观察者
func (e *DefaultExecutor) WithObserver(o ExecutionObserver) *DefaultExecutor {
	e.observer = o
	return e
}

// WithConcurrency 设置并发上限（<=0 表示不限制）
func (e *DefaultExecutor) WithConcurrency(n int) *DefaultExecutor {
	e.concurrency = n
	return e
}

// Execute 并发执行所有调用，结果顺序与 calls 一致
func (e *DefaultExecutor) Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))
	if len(calls) == 0 {
		return results
	}

	// 单个工具失败不影响其他调用，因此 goroutine 始终返回 nil
	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.ExecuteOne(ctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *DefaultExecutor) ExecuteOne(ctx context.Context, call llm.ToolCall) ToolResult {
	start := time.Now()
	result := ToolResult{ToolCallID: call.ID, Name: call.Name}

	finish := func(ok bool) ToolResult {
		result.Duration = time.Since(start)
		if rec, isRec := e.registry.(interface {
			RecordResult(string, bool, time.Duration)
		}); isRec {
			rec.RecordResult(call.Name, ok, result.Duration)
		}
		if e.observer != nil {
			e.observer.RecordToolExecution(call.Name, ok, result.Duration)
		}
		return result
	}

	// 1. 获取工具
	fn, meta, err := e.registry.Get(call.Name)
	if err != nil {
		result.Error = fmt.Sprintf("tool not found: %s", call.Name)
		e.logger.Warn("tool not found", zap.String("name", call.Name))
		result.Duration = time.Since(start)
		return result
	}

	// 2. 速率限制
	if limiter, ok := e.registry.(interface{ Allow(string) error }); ok {
		if err := limiter.Allow(call.Name); err != nil {
			result.Error = err.Error()
			e.logger.Warn("rate limit exceeded", zap.String("name", call.Name))
			return finish(false)
		}
	}

	// 3. 参数必须是 JSON 对象
	args := call.Arguments
	if len(strings.TrimSpace(string(args))) == 0 || strings.TrimSpace(string(args)) == "null" {
		args = json.RawMessage(`{}`)
	}
	var probe map[string]any
	if err := json.Unmarshal(args, &probe); err != nil {
		result.Error = fmt.Sprintf("invalid arguments: %s", err.Error())
		e.logger.Warn("invalid tool arguments", zap.String("name", call.Name), zap.Error(err))
		return finish(false)
	}

	// 4. 带超时执行；缓冲 channel 保证超时后 goroutine 仍能退出
	execCtx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()

	type outcome struct {
		res json.RawMessage
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		res, err := fn(execCtx, args)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			result.Error = out.err.Error()
			e.logger.Warn("tool execution failed", zap.String("name", call.Name), zap.Error(out.err))
			return finish(false)
		}
		result.Result = out.res
		e.logger.Debug("tool executed", zap.String("name", call.Name), zap.Duration("duration", time.Since(start)))
		return finish(true)

	case <-execCtx.Done():
		if ctx.Err() != nil {
			result.Error = fmt.Sprintf("execution cancelled: %v", ctx.Err())
		} else {
			result.Error = fmt.Sprintf("execution timeout after %s", meta.Timeout)
		}
		e.logger.Warn("tool execution timeout", zap.String("name", call.Name), zap.Duration("timeout", meta.Timeout))
		return finish(false)
	}
}

// ResultText 把结果转换成可放进提示词的文本：JSON 字符串去引号，错误以 "Error: " 开头
func ResultText(r ToolResult) string {
	if r.Error != "" {
		return "Error: " + r.Error
	}
	var s string
	if err := json.Unmarshal(r.Result, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(r.Result))
}
