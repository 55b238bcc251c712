package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/BaSui01/agentlab/config"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/tokenizer"
	"github.com/BaSui01/agentlab/llm/tools"
	"go.uber.org/zap"
)

// Observer 接收工具执行与研究流水线指标（metrics.Collector 实现了该接口）
type Observer interface {
	tools.ExecutionObserver
	RecordResearchStage(stage string, ok bool)
	RecordResearchAPICall()
}

// Deps 构造 Agent 所需的依赖
type Deps struct {
	Config Config

	// Provider 对话 LLM
	Provider llm.Provider
	// ResearchProvider 研究流水线使用的 LLM；为 nil 时使用 Provider
	ResearchProvider llm.Provider

	Builtins *tools.Builtins
	Research config.ResearchConfig
	Counter  tokenizer.Counter
	Observer Observer // 可选
	Logger   *zap.Logger
}

// ExecutionObserver 返回可以直接传给 NewBase 的观察者（未设置时为 nil 接口）
func (d Deps) ExecutionObserver() tools.ExecutionObserver {
	if d.Observer == nil {
		return nil
	}
	return d.Observer
}

// Constructor 创建某一类型的 Agent
type Constructor func(deps Deps) (Agent, error)

// Registry 管理 Agent 类型与构造器
type Registry struct {
	mu           sync.RWMutex
	constructors map[Type]Constructor
	logger       *zap.Logger
}

// NewRegistry 创建空注册表
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		constructors: make(map[Type]Constructor),
		logger:       logger.With(zap.String("component", "agent_registry")),
	}
}

// Register 注册（或覆盖）一个类型的构造器
func (r *Registry) Register(t Type, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.constructors[t] = c
	r.logger.Debug("agent type registered", zap.String("type", string(t)))
}

// Has 报告类型是否已注册
func (r *Registry) Has(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[t]
	return ok
}

// Types 返回已注册类型（排序）
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.constructors))
	for t := range r.constructors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Create 按 deps.Config.Type 创建 Agent
func (r *Registry) Create(deps Deps) (Agent, error) {
	r.mu.RLock()
	c, ok := r.constructors[deps.Config.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, deps.Config.Type)
	}
	a, err := c(deps)
	if err != nil {
		return nil, fmt.Errorf("create %s agent: %w", deps.Config.Type, err)
	}
	return a, nil
}
