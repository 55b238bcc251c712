package workflow

import (
	"context"
	"fmt"
)

// Runnable 可执行单元
type Runnable interface {
	Execute(ctx context.Context, input any) (any, error)
}

// Step 工作流步骤
type Step interface {
	Runnable
	Name() string
}

// StepFunc 步骤函数
type StepFunc func(ctx context.Context, input any) (any, error)

// FuncStep 函数步骤
type FuncStep struct {
	name string
	fn   StepFunc
}

// NewFuncStep 创建函数步骤
func NewFuncStep(name string, fn StepFunc) *FuncStep {
	return &FuncStep{name: name, fn: fn}
}

func (s *FuncStep) Execute(ctx context.Context, input any) (any, error) {
	return s.fn(ctx, input)
}

func (s *FuncStep) Name() string { return s.name }

// ChainWorkflow 顺序工作流：每一步处理前一步的输出
type ChainWorkflow struct {
	name        string
	description string
	steps       []Step
}

// NewChainWorkflow 创建顺序工作流
func NewChainWorkflow(name, description string, steps ...Step) *ChainWorkflow {
	return &ChainWorkflow{name: name, description: description, steps: steps}
}

// Execute 依次执行步骤；每一步开始前检查 ctx，步骤失败时立即返回
func (w *ChainWorkflow) Execute(ctx context.Context, input any) (any, error) {
	current := input
	for i, step := range w.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := step.Execute(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		current = result
	}
	return current, nil
}

func (w *ChainWorkflow) Name() string        { return w.name }
func (w *ChainWorkflow) Description() string { return w.description }

// AddStep 追加步骤
func (w *ChainWorkflow) AddStep(step Step) {
	w.steps = append(w.steps, step)
}

// Steps 返回步骤副本
func (w *ChainWorkflow) Steps() []Step {
	out := make([]Step, len(w.steps))
	copy(out, w.steps)
	return out
}

// =============================================================================
// 执行事件
// =============================================================================

// WorkflowStreamEventType 事件类型
type WorkflowStreamEventType string

const (
	WorkflowEventNodeStart    WorkflowStreamEventType = "node_start"
	WorkflowEventNodeComplete WorkflowStreamEventType = "node_complete"
	WorkflowEventNodeError    WorkflowStreamEventType = "node_error"
)

// WorkflowStreamEvent 一次步骤事件
type WorkflowStreamEvent struct {
	Type     WorkflowStreamEventType `json:"type"`
	NodeID   string                  `json:"node_id,omitempty"`
	NodeName string                  `json:"node_name,omitempty"`
	Data     any                     `json:"data,omitempty"`
	Error    error                   `json:"-"`
}

// WorkflowStreamEmitter 事件回调
type WorkflowStreamEmitter func(WorkflowStreamEvent)

type workflowStreamEmitterKey struct{}

// WithWorkflowStreamEmitter 在 ctx 中注册事件回调；emitter 为 nil 时原样返回
func WithWorkflowStreamEmitter(ctx context.Context, emitter WorkflowStreamEmitter) context.Context {
	if emitter == nil {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, workflowStreamEmitterKey{}, emitter)
}

func workflowStreamEmitterFromContext(ctx context.Context) (WorkflowStreamEmitter, bool) {
	if ctx == nil {
		return nil, false
	}
	emit, ok := ctx.Value(workflowStreamEmitterKey{}).(WorkflowStreamEmitter)
	return emit, ok && emit != nil
}

// EmitWorkflowEvent 将事件发送给 ctx 中注册的 emitter；未注册时忽略
func EmitWorkflowEvent(ctx context.Context, event WorkflowStreamEvent) {
	if emit, ok := workflowStreamEmitterFromContext(ctx); ok {
		emit(event)
	}
}
