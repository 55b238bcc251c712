package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/config"
	"github.com/BaSui01/agentlab/internal/tlsutil"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/providers"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	providerName = "gemini"
	defaultModel = "gemini-2.5-pro"
)

// Provider 实现 Google Gemini 的 llm.Provider
type Provider struct {
	client *genai.Client
	cfg    config.GeminiConfig
	logger *zap.Logger
}

// New 创建 Gemini Provider；APIKey 为空时返回错误
func New(cfg config.GeminiConfig, timeout time.Duration, logger *zap.Logger) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &llm.Error{
			Code:       llm.ErrProviderUnavailable,
			Message:    "GOOGLE_API_KEY is not configured",
			HTTPStatus: http.StatusServiceUnavailable,
			Provider:   providerName,
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: tlsutil.SecureHTTPClient(timeout),
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Provider{
		client: client,
		cfg:    cfg,
		logger: logger.With(zap.String("provider", providerName)),
	}, nil
}

func (p *Provider) Name() string { return providerName }

// SupportsNativeFunctionCalling 研究流水线只需要纯文本生成
func (p *Provider) SupportsNativeFunctionCalling() bool { return false }

// HealthCheck 以一次最小生成请求探活
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	_, err := p.client.Models.GenerateContent(ctx, p.cfg.Model,
		genai.Text("ping"), &genai.GenerateContentConfig{MaxOutputTokens: 1})
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency}, mapError(err)
	}
	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}

// Completion 发起一次非流式生成
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model, contents, gc, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		mapped := mapError(err)
		p.logger.Warn("gemini generation failed", zap.String("model", model), zap.Error(mapped))
		return nil, mapped
	}
	return toChatResponse(resp, model), nil
}

// Stream 基于 GenerateContentStream 的增量输出
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	model, contents, gc, err := p.buildRequest(req)
	if err != nil {
		return nil, err
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for resp, err := range p.client.Models.GenerateContentStream(ctx, model, contents, gc) {
			chunk := llm.StreamChunk{Provider: providerName, Model: model}
			if err != nil {
				var le *llm.Error
				if errors.As(mapError(err), &le) {
					chunk.Err = le
				}
				select {
				case ch <- chunk:
				case <-ctx.Done():
				}
				return
			}
			chunk.Delta = llm.Message{Role: llm.RoleAssistant, Content: resp.Text()}
			if len(resp.Candidates) > 0 {
				chunk.FinishReason = string(resp.Candidates[0].FinishReason)
			}
			if u := usageOf(resp); u != nil {
				chunk.Usage = u
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (p *Provider) buildRequest(req *llm.ChatRequest) (string, []*genai.Content, *genai.GenerateContentConfig, error) {
	if req == nil || len(req.Messages) == 0 {
		return "", nil, nil, &llm.Error{
			Code: llm.ErrInvalidRequest, Message: "messages must not be empty",
			HTTPStatus: http.StatusBadRequest, Provider: providerName,
		}
	}
	model := providers.ChooseModel(req, p.cfg.Model, defaultModel)

	var system []string
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	gc := &genai.GenerateContentConfig{}
	temp := float32(p.cfg.Temperature)
	if req.Temperature > 0 {
		temp = req.Temperature
	}
	gc.Temperature = &temp
	switch {
	case req.MaxTokens > 0:
		gc.MaxOutputTokens = int32(req.MaxTokens)
	case p.cfg.MaxOutputTokens > 0:
		gc.MaxOutputTokens = int32(p.cfg.MaxOutputTokens)
	}
	if req.TopP > 0 {
		topP := req.TopP
		gc.TopP = &topP
	}
	if len(req.Stop) > 0 {
		gc.StopSequences = req.Stop
	}
	if len(system) > 0 {
		gc.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	return model, contents, gc, nil
}

func toChatResponse(resp *genai.GenerateContentResponse, model string) *llm.ChatResponse {
	out := &llm.ChatResponse{
		ID:        resp.ResponseID,
		Provider:  providerName,
		Model:     model,
		CreatedAt: time.Now(),
	}
	finish := ""
	if len(resp.Candidates) > 0 {
		finish = string(resp.Candidates[0].FinishReason)
	}
	out.Choices = []llm.ChatChoice{{
		FinishReason: finish,
		Message:      llm.AssistantMessage(resp.Text()),
	}}
	if u := usageOf(resp); u != nil {
		out.Usage = *u
	}
	return out
}

func usageOf(resp *genai.GenerateContentResponse) *llm.ChatUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	return &llm.ChatUsage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

// mapError 将 genai.APIError 转为 llm.Error，其余错误视为可重试的网络错误
func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		mapped := providers.MapHTTPError(apiErr.Code, apiErr.Message, providerName)
		if apiErr.Status == "RESOURCE_EXHAUSTED" {
			mapped.Code = llm.ErrRateLimited
			mapped.Retryable = true
		}
		return mapped
	}
	return providers.NetworkError(err, providerName)
}
