package middleware

import (
	"context"
	"fmt"

	llmpkg "github.com/BaSui01/agentlab/llm"
)

// RequestRewriter 在请求发送到上游之前清理或转换参数
type RequestRewriter interface {
	Rewrite(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatRequest, error)
	Name() string
}

// RewriterChain 按顺序执行改写器，任何一个失败则中断
type RewriterChain struct {
	rewriters []RequestRewriter
}

// NewRewriterChain 创建改写器链
func NewRewriterChain(rewriters ...RequestRewriter) *RewriterChain {
	return &RewriterChain{rewriters: rewriters}
}

// Execute 执行改写器链
func (c *RewriterChain) Execute(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatRequest, error) {
	if c == nil {
		return req, nil
	}
	var err error
	for _, rewriter := range c.rewriters {
		req, err = rewriter.Rewrite(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("rewriter [%s] failed: %w", rewriter.Name(), err)
		}
	}
	return req, nil
}

// =============================================================================
// EmptyToolsCleaner
// =============================================================================

// EmptyToolsCleaner 没有工具时清除 ToolChoice（OpenAI 兼容接口不接受空 tools 搭配 tool_choice）
type EmptyToolsCleaner struct{}

// NewEmptyToolsCleaner 创建 EmptyToolsCleaner
func NewEmptyToolsCleaner() *EmptyToolsCleaner { return &EmptyToolsCleaner{} }

// Name 返回改写器名称
func (r *EmptyToolsCleaner) Name() string { return "empty_tools_cleaner" }

// Rewrite 执行改写
func (r *EmptyToolsCleaner) Rewrite(_ context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatRequest, error) {
	if req != nil && len(req.Tools) == 0 {
		req.ToolChoice = ""
	}
	return req, nil
}

// =============================================================================
// DefaultModel
// =============================================================================

// DefaultModel 请求未指定模型时填入默认模型
type DefaultModel struct {
	Model string
}

// Name 返回改写器名称
func (r DefaultModel) Name() string { return "default_model" }

// Rewrite 执行改写
func (r DefaultModel) Rewrite(_ context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatRequest, error) {
	if req != nil && req.Model == "" {
		req.Model = r.Model
	}
	return req, nil
}
