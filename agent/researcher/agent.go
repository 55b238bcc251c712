// Package researcher 实现学术研究 Agent：检索 arXiv 论文、逐篇分析、识别研究缺口、
// 生成 LaTeX 论文提案并渲染为 PDF。
package researcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/tools"
	"go.uber.org/zap"
)

const (
	toolResearchTopic = "research_topic"
	toolSearchPapers  = "search_papers"

	researchTimeout = 30 * time.Minute
)

var (
	// ErrNoBuiltins 未提供内置工具依赖
	ErrNoBuiltins = errors.New("researcher agent requires builtin tools")
	// ErrUnavailable 缺少论文检索或 LLM，流水线不可用
	ErrUnavailable = errors.New(unavailableError)
)

type runner interface {
	Research(ctx context.Context, topic string) Result
}

// Agent 研究型 Agent；对话不经过 LLM，研究类请求直接调用工具
type Agent struct {
	*agent.Base
	pipeline runner
}

// New 创建 Agent。研究流水线使用 deps.ResearchProvider，未设置时退回 deps.Provider。
func New(deps agent.Deps) (agent.Agent, error) {
	if deps.Builtins == nil {
		return nil, ErrNoBuiltins
	}
	provider := deps.ResearchProvider
	if provider == nil {
		provider = deps.Provider
	}

	var pipeline runner
	b := deps.Builtins
	if b.Papers != nil && b.PDF != nil && provider != nil {
		p, err := NewPipeline(PipelineOptions{
			Papers:   b.Papers,
			PDF:      b.PDF,
			Provider: provider,
			Config:   deps.Research,
			Observer: deps.Observer,
			Now:      b.Now,
		}, deps.Logger)
		if err != nil {
			return nil, err
		}
		pipeline = p
	}

	a, err := build(deps, pipeline, b.RegisterResearchTools)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func build(deps agent.Deps, pipeline runner, register func(tools.ToolRegistry) error) (*Agent, error) {
	base := agent.NewBase(deps.Config, deps.Provider, deps.Counter, deps.ExecutionObserver(), deps.Logger)
	a := &Agent{Base: base, pipeline: pipeline}

	if err := base.RegisterTool(toolResearchTopic, a.researchTool, tools.ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        toolResearchTopic,
			Description: "Conduct comprehensive research on a given topic by searching papers, analyzing them, and generating a research proposal with PDF output",
			Parameters: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string",` +
				`"description":"The research topic to investigate (e.g., 'machine learning', 'prompt engineering', 'neural networks')"}},` +
				`"required":["topic"]}`),
		},
		Timeout:  researchTimeout,
		Keywords: []string{"research", "proposal", "gap analysis", "paper"},
	}); err != nil {
		return nil, fmt.Errorf("register %s: %w", toolResearchTopic, err)
	}

	// search_papers / read_pdf
	if register != nil {
		if err := register(base.Registry()); err != nil {
			return nil, fmt.Errorf("register research tools: %w", err)
		}
	}
	return a, nil
}

// topicReport research_topic 的输出
type topicReport struct {
	Topic          string  `json:"topic"`
	Status         string  `json:"status"`
	PapersFound    int     `json:"papers_found"`
	PapersAnalyzed int     `json:"papers_analyzed"`
	StepsCompleted int     `json:"steps_completed"`
	APICallsMade   int     `json:"api_calls_made"`
	PDFPath        string  `json:"pdf_path"`
	IdentifiedGaps string  `json:"identified_gaps"`
	Error          *string `json:"error"`
}

type failedReport struct {
	Error  string `json:"error"`
	Topic  string `json:"topic"`
	Status string `json:"status"`
}

func (a *Agent) researchTool(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Topic string `json:"topic"`
	}
	if err := tools.DecodeArgs(raw, &args); err != nil {
		return nil, err
	}
	if strings.TrimSpace(args.Topic) == "" {
		return nil, errors.New("topic is required")
	}

	res, err := a.Research(ctx, args.Topic)
	if err != nil {
		return json.Marshal(failedReport{Error: err.Error(), Topic: args.Topic, Status: "failed"})
	}

	report := topicReport{
		Topic:          res.Topic,
		Status:         "partial",
		PapersFound:    res.PapersFound,
		PapersAnalyzed: res.PapersAnalyzed,
		StepsCompleted: res.StepsCompleted,
		APICallsMade:   res.APICallsMade,
		PDFPath:        res.FinalPDFPath,
		IdentifiedGaps: res.IdentifiedGaps,
	}
	if res.WorkflowCompleted {
		report.Status = "completed"
	}
	if res.Error != "" {
		report.Error = &res.Error
	}
	return json.MarshalIndent(report, "", "  ")
}

// Research 运行研究流水线
func (a *Agent) Research(ctx context.Context, topic string) (Result, error) {
	if a.pipeline == nil {
		return Result{}, ErrUnavailable
	}
	a.Logger().Info("starting research", zap.String("topic", topic))
	return a.pipeline.Research(ctx, topic), nil
}

// WouldUseTools 实现 agent.Agent
func (a *Agent) WouldUseTools(message string) bool { return ShouldResearch(message) }

// Chat 研究类消息调用工具，其余返回固定说明
func (a *Agent) Chat(ctx context.Context, message string) (*agent.Reply, error) {
	a.Append(llm.UserMessage(message))

	var (
		content string
		used    []string
	)
	if ShouldResearch(message) {
		content, used = a.handleResearch(ctx, message)
	} else {
		content = cannedReply(message)
	}

	a.Append(llm.AssistantMessage(content))
	return &agent.Reply{Content: content, ToolsUsed: used}, nil
}

func (a *Agent) handleResearch(ctx context.Context, message string) (string, []string) {
	lower := strings.ToLower(message)
	tool, missing := toolResearchTopic, needAnyTopicReply
	switch {
	case containsAny(lower, fullResearchPhrases):
		missing = needResearchTopicReply
	case containsAny(lower, paperSearchPhrases):
		tool, missing = toolSearchPapers, needSearchTopicReply
	}

	topic := ExtractTopic(message)
	if topic == "" {
		return missing, nil
	}

	a.Logger().Debug("research request", zap.String("tool", tool), zap.String("topic", topic))
	res := a.CallTool(ctx, tool, map[string]any{"topic": topic})
	if !res.OK() {
		return chatErrorReply(res.Error), nil
	}
	return tools.ResultText(res), []string{tool}
}
