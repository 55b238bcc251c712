// Package intelligent 实现联网 Agent：按意图打分挑选搜索、天气、新闻、网页抓取、
// 日期时间五个工具，常见问题直接走固定工具路径，其余交给 LLM function calling。
package intelligent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/tools"
	"go.uber.org/zap"
)

const (
	toolSearch   = "search_web"
	toolWeather  = "get_weather"
	toolNews     = "get_latest_news"
	toolFetch    = "fetch_web_content"
	toolDateTime = "get_current_datetime"
)

// 打分同分时的先后顺序
var toolOrder = []string{toolSearch, toolWeather, toolNews, toolFetch, toolDateTime}

// ErrNoBuiltins 未提供内置工具依赖
var ErrNoBuiltins = errors.New("intelligent agent requires builtin tools")

// Agent 联网 Agent
type Agent struct {
	*agent.Base
	now func() time.Time
}

// New 创建 Agent 并注册五个联网工具
func New(deps agent.Deps) (agent.Agent, error) {
	if deps.Builtins == nil {
		return nil, ErrNoBuiltins
	}
	a, err := build(deps, deps.Builtins.RegisterWebTools, deps.Builtins.Now)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func build(deps agent.Deps, register func(tools.ToolRegistry) error, now func() time.Time) (*Agent, error) {
	if now == nil {
		now = time.Now
	}
	base := agent.NewBase(deps.Config, deps.Provider, deps.Counter, deps.ExecutionObserver(), deps.Logger)
	if err := register(base.Registry()); err != nil {
		return nil, fmt.Errorf("register web tools: %w", err)
	}
	return &Agent{Base: base, now: now}, nil
}

// WouldUseTools 实现 agent.Agent
func (a *Agent) WouldUseTools(message string) bool { return ShouldUseTools(message, a.now()) }

// SuggestTools 返回按意图得分排序的前 3 个工具
func (a *Agent) SuggestTools(message string) []string {
	reg := a.Registry()
	names := reg.List()
	rank := make(map[string]int, len(toolOrder))
	for i, n := range toolOrder {
		rank[n] = i
	}
	sort.SliceStable(names, func(i, j int) bool {
		ri, iok := rank[names[i]]
		rj, jok := rank[names[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		}
		return false
	})

	candidates := make([]ToolKeywords, 0, len(names))
	for _, n := range names {
		candidates = append(candidates, ToolKeywords{Name: n, Keywords: reg.Keywords(n)})
	}
	return AnalyzeIntent(message, candidates, a.now())
}

// Chat 实现 agent.Agent
func (a *Agent) Chat(ctx context.Context, message string) (*agent.Reply, error) {
	a.Append(llm.UserMessage(message))

	if !ShouldUseTools(message, a.now()) {
		a.Logger().Debug("no tools needed")
		return &agent.Reply{Content: a.llmOnly(ctx)}, nil
	}

	suggested := a.SuggestTools(message)
	r := classify(message)
	a.Logger().Debug("tool route selected", zap.Stringer("route", r), zap.Strings("suggested", suggested))

	switch r {
	case routeWeather:
		return a.weather(ctx, message), nil
	case routePrice, routeNews, routeInformation:
		return a.search(ctx, message, r), nil
	case routeDateTime:
		return a.dateTime(ctx, message), nil
	}
	return a.functionCalling(ctx, message, suggested), nil
}

// search 执行 search_web 后让 LLM 按查询类型组织答案
func (a *Agent) search(ctx context.Context, input string, r route) *agent.Reply {
	failed := &agent.Reply{Content: fmt.Sprintf(searchErrorReply, input)}

	res := a.CallTool(ctx, toolSearch, map[string]any{"query": input})
	if !res.OK() {
		a.Logger().Warn("search failed", zap.Stringer("route", r), zap.String("error", res.Error))
		return failed
	}
	answer, err := a.Ask(ctx, a.Messages(nil, llm.UserMessage(searchPrompt(r, input, tools.ResultText(res)))))
	if err != nil {
		a.Logger().Warn("search answer failed", zap.Error(err))
		return failed
	}
	a.Append(llm.AssistantMessage(answer))
	return &agent.Reply{Content: answer, ToolsUsed: []string{toolSearch}}
}

func (a *Agent) weather(ctx context.Context, input string) *agent.Reply {
	location := ExtractLocation(input)
	if location == "" {
		return &agent.Reply{Content: needLocationReply}
	}
	a.Logger().Debug("location extracted", zap.String("location", location))

	res := a.CallTool(ctx, toolWeather, map[string]any{"location": location})
	if !res.OK() {
		a.Logger().Warn("weather lookup failed", zap.String("location", location), zap.String("error", res.Error))
		return &agent.Reply{Content: weatherErrorReply}
	}
	answer, err := a.Ask(ctx, a.Messages(nil, llm.UserMessage(weatherPrompt(input, tools.ResultText(res)))))
	if err != nil {
		return &agent.Reply{Content: weatherErrorReply}
	}
	a.Append(llm.AssistantMessage(answer))
	return &agent.Reply{Content: answer, ToolsUsed: []string{toolWeather}}
}

func (a *Agent) dateTime(ctx context.Context, input string) *agent.Reply {
	res := a.CallTool(ctx, toolDateTime, map[string]any{})
	if !res.OK() {
		return &agent.Reply{Content: timeErrorReply}
	}
	answer, err := a.Ask(ctx, a.Messages(nil, llm.UserMessage(dateTimePrompt(input, tools.ResultText(res)))))
	if err != nil {
		return &agent.Reply{Content: timeErrorReply}
	}
	a.Append(llm.AssistantMessage(answer))
	return &agent.Reply{Content: answer, ToolsUsed: []string{toolDateTime}}
}

// functionCalling 把全部工具交给 LLM（tool_choice=auto）
func (a *Agent) functionCalling(ctx context.Context, input string, suggested []string) *agent.Reply {
	prompt := systemPrompt(a.ToolNames(), input, suggested)
	resp, err := a.Complete(ctx, &llm.ChatRequest{
		Messages:   a.Messages([]llm.Message{llm.SystemMessage(prompt)}),
		Tools:      a.Registry().Schemas(),
		ToolChoice: "auto",
	})
	if err != nil {
		a.Logger().Warn("tool request failed, falling back to plain chat", zap.Error(err))
		return &agent.Reply{Content: a.llmOnly(ctx)}
	}

	msg := llm.FirstMessage(resp)
	if len(msg.ToolCalls) == 0 {
		a.Append(llm.AssistantMessage(msg.Content))
		return &agent.Reply{Content: msg.Content}
	}

	lines, used := a.RunToolCalls(ctx, msg.ToolCalls)
	results := strings.Join(lines, "\n\n")
	answer, err := a.Ask(ctx, a.Messages(nil, llm.UserMessage(synthesisPrompt(results, used))))
	if err != nil {
		answer = "Here's what I found:\n\n" + results
	}
	a.Append(llm.AssistantMessage(answer))
	return &agent.Reply{Content: answer, ToolsUsed: used}
}

func (a *Agent) llmOnly(ctx context.Context) string {
	reply, err := a.Ask(ctx, a.Messages(nil))
	if err != nil {
		reply = "Error: " + err.Error()
	}
	a.Append(llm.AssistantMessage(reply))
	return reply
}

// =============================================================================
// 工具统计
// =============================================================================

// ToolUsage 单个工具的使用统计
type ToolUsage struct {
	UsageCount  int64    `json:"usage_count"`
	SuccessRate float64  `json:"success_rate"`
	Keywords    []string `json:"keywords"`
}

// UsageStats 返回每个工具的调用次数、成功率与关键词
func (a *Agent) UsageStats() map[string]ToolUsage {
	reg := a.Registry()
	stats := reg.Stats()
	out := make(map[string]ToolUsage, len(stats))
	for name, s := range stats {
		out[name] = ToolUsage{UsageCount: s.UsageCount, SuccessRate: s.SuccessRate, Keywords: reg.Keywords(name)}
	}
	return out
}

// ShowTools 返回带关键词（前 5 个）与调用次数的工具列表文本
func (a *Agent) ShowTools() string {
	stats := a.UsageStats()
	var b strings.Builder
	b.WriteString("Available tools:\n")
	for _, t := range a.Tools() {
		s := stats[t.Name]
		kw := s.Keywords
		if len(kw) > 5 {
			kw = kw[:5]
		}
		fmt.Fprintf(&b, "• %s: %s\n  Keywords: %s\n  Used: %d times\n\n", t.Name, t.Description, strings.Join(kw, ", "), s.UsageCount)
	}
	return b.String()
}
