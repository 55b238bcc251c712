package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	llmpkg "github.com/BaSui01/agentlab/llm"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handler 处理一个 Completion 请求
type Handler func(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatResponse, error)

// Middleware 包裹 Handler
type Middleware func(next Handler) Handler

// Chain 中间件链；第一个中间件在最外层
type Chain struct {
	middlewares []Middleware
	mu          sync.RWMutex
}

// NewChain 创建中间件链
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Use 追加中间件
func (c *Chain) Use(m Middleware) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, m)
	return c
}

// Then 用链中的全部中间件包裹 h
func (c *Chain) Then(h Handler) Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = c.middlewares[i](h)
	}
	return h
}

// Len 返回中间件数量
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.middlewares)
}

// =============================================================================
// 内置中间件
// =============================================================================

// LoggingMiddleware 以 debug 级别记录模型、消息数、耗时与 token 用量
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			fields := []zap.Field{
				zap.String("model", req.Model),
				zap.Int("messages", len(req.Messages)),
				zap.Int("tools", len(req.Tools)),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("llm completion failed", append(fields, zap.Error(err))...)
				return resp, err
			}
			logger.Debug("llm completion", append(fields, zap.Int("total_tokens", resp.Usage.TotalTokens))...)
			return resp, nil
		}
	}
}

// TimeoutMiddleware 为没有设置 req.Timeout 的请求添加超时
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatResponse, error) {
			d := timeout
			if req.Timeout > 0 {
				d = req.Timeout
			}
			if d <= 0 {
				return next(ctx, req)
			}
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}

// MetricsRecorder 接收 LLM 请求指标（metrics.Collector 实现了该接口）
type MetricsRecorder interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
}

// MetricsMiddleware 按 provider+model 记录请求数、耗时与 token 用量
func MetricsMiddleware(recorder MetricsRecorder, provider string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			model := req.Model
			status := "success"
			var prompt, completion int
			if err != nil {
				status = "error"
			} else if resp != nil {
				if resp.Model != "" {
					model = resp.Model
				}
				prompt, completion = resp.Usage.PromptTokens, resp.Usage.CompletionTokens
			}
			recorder.RecordLLMRequest(provider, model, status, time.Since(start), prompt, completion)
			return resp, err
		}
	}
}

// RecoveryMiddleware 把 provider 中的 panic 转为 *PanicError
func RecoveryMiddleware(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *llmpkg.ChatRequest) (resp *llmpkg.ChatResponse, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("llm provider panic", zap.Any("panic", r), zap.String("model", req.Model))
					resp, err = nil, &PanicError{Value: r}
				}
			}()
			return next(ctx, req)
		}
	}
}

// PanicError 已恢复的 panic
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("llm provider panic: %v", e.Value)
}

// TracingMiddleware 为每次 Completion 创建 span
func TracingMiddleware(tracer trace.Tracer, provider string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatResponse, error) {
			ctx, span := tracer.Start(ctx, "llm.completion",
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					attribute.String("llm.provider", provider),
					attribute.String("llm.model", req.Model),
					attribute.Int("llm.messages", len(req.Messages)),
				),
			)
			defer span.End()

			resp, err := next(ctx, req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else if resp != nil {
				span.SetAttributes(attribute.Int("llm.total_tokens", resp.Usage.TotalTokens))
			}
			return resp, err
		}
	}
}

// RewriteMiddleware 在发送前依次执行改写器
func RewriteMiddleware(rewriters ...RequestRewriter) Middleware {
	chain := NewRewriterChain(rewriters...)
	return func(next Handler) Handler {
		return func(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatResponse, error) {
			req, err := chain.Execute(ctx, req)
			if err != nil {
				return nil, err
			}
			return next(ctx, req)
		}
	}
}
