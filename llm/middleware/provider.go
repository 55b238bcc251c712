package middleware

import (
	"context"

	llmpkg "github.com/BaSui01/agentlab/llm"
)

// Provider 让 Completion 经过中间件链的 llm.Provider；Stream 与 HealthCheck 直接委托
type Provider struct {
	llmpkg.Provider
	handler Handler
}

var _ llmpkg.Provider = (*Provider)(nil)

// Wrap 用 chain 包裹 p；chain 为空时原样返回 p
func Wrap(p llmpkg.Provider, chain *Chain) llmpkg.Provider {
	if p == nil || chain == nil || chain.Len() == 0 {
		return p
	}
	return &Provider{Provider: p, handler: chain.Then(p.Completion)}
}

// Completion 经过中间件链调用上游
func (p *Provider) Completion(ctx context.Context, req *llmpkg.ChatRequest) (*llmpkg.ChatResponse, error) {
	return p.handler(ctx, req)
}

// Unwrap 返回被包裹的 Provider
func (p *Provider) Unwrap() llmpkg.Provider { return p.Provider }
