package agent

import (
	"fmt"

	"github.com/BaSui01/agentlab/config"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/tokenizer"
	"github.com/BaSui01/agentlab/llm/tools"
	"go.uber.org/zap"
)

// ProviderFunc 按 API Key 创建对话 Provider（key 为空时使用配置中的 key）
type ProviderFunc func(apiKey string) (llm.Provider, error)

// FactoryOptions Factory 的共享依赖
type FactoryOptions struct {
	ChatProvider     ProviderFunc
	ResearchProvider llm.Provider // 可选

	Model            string
	AutonomousModel  string
	Temperature      float32
	MaxHistoryTokens int

	Builtins *tools.Builtins
	Research config.ResearchConfig
	Counter  tokenizer.Counter
	Observer Observer
}

// Factory 根据类型与请求中的 API Key 组装 Agent
type Factory struct {
	registry *Registry
	opts     FactoryOptions
	logger   *zap.Logger
}

// NewFactory 创建 Factory
func NewFactory(registry *Registry, opts FactoryOptions, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Counter == nil {
		opts.Counter = tokenizer.NewTiktokenCounter(tokenizer.DefaultEncoding, logger)
	}
	return &Factory{registry: registry, opts: opts, logger: logger}
}

// Build 创建一个 Agent 实例
func (f *Factory) Build(id, name string, t Type, apiKey string) (Agent, error) {
	if f.opts.ChatProvider == nil {
		return nil, ErrProviderNotSet
	}
	provider, err := f.opts.ChatProvider(apiKey)
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	model := f.opts.Model
	if t == TypeAutonomous && f.opts.AutonomousModel != "" {
		model = f.opts.AutonomousModel
	}

	deps := Deps{
		Config: Config{
			ID:               id,
			Name:             name,
			Type:             t,
			Model:            model,
			Temperature:      f.opts.Temperature,
			MaxHistoryTokens: f.opts.MaxHistoryTokens,
		},
		Provider:         provider,
		ResearchProvider: f.opts.ResearchProvider,
		Builtins:         f.opts.Builtins,
		Research:         f.opts.Research,
		Counter:          f.opts.Counter,
		Observer:         f.opts.Observer,
		Logger:           f.logger,
	}
	return f.registry.Create(deps)
}
