// Package autonomous 实现自主规划 Agent：最多 MaxSteps 步，每步让 LLM 输出
// Thought/Action/Reason/Goal Completed，校验并执行动作，直到目标完成或步数耗尽。
package autonomous

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/agent/intelligent"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/tools"
	"go.uber.org/zap"
)

// MaxSteps 单个目标的最大推理步数
const MaxSteps = 8

const (
	plannerTemperature = 0.3
	plannerMaxTokens   = 1200
	analysisMaxTokens  = 1500
	overviewChars      = 200
	detailedMinChars   = 800
)

// ErrNoBuiltins 未提供内置工具依赖
var ErrNoBuiltins = errors.New("autonomous agent requires builtin tools")

// Agent 自主规划 Agent
type Agent struct {
	*agent.Base

	mu    sync.RWMutex
	steps []agent.Step
}

// New 创建 Agent：search_web、get_weather 为真实工具，其余为模拟工具
func New(deps agent.Deps) (agent.Agent, error) {
	if deps.Builtins == nil {
		return nil, ErrNoBuiltins
	}
	a, err := build(deps, func(reg tools.ToolRegistry) error {
		fn, meta := tools.NewWebSearchTool(deps.Builtins.Search)
		meta.Schema.Description = "Search the web for current information"
		if err := reg.Register(toolSearchWeb, fn, meta); err != nil {
			return err
		}
		fn, meta = tools.NewWeatherTool(deps.Builtins.Weather)
		meta.Schema.Description = "Get current weather information for a location"
		return reg.Register(toolGetWeather, fn, meta)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func build(deps agent.Deps, registerReal func(tools.ToolRegistry) error) (*Agent, error) {
	base := agent.NewBase(deps.Config, deps.Provider, deps.Counter, deps.ExecutionObserver(), deps.Logger)
	reg := base.Registry()
	if err := registerReal(reg); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	if err := registerSimulated(reg); err != nil {
		return nil, fmt.Errorf("register simulated tools: %w", err)
	}
	return &Agent{Base: base}, nil
}

func fixed(text string) tools.ToolFunc {
	return func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return tools.TextResult(text)
	}
}

func simulatedMeta(name, desc, param string) tools.ToolMetadata {
	params := `{"type":"object","properties":{}}`
	if param != "" {
		params = fmt.Sprintf(`{"type":"object","properties":{%q:{"type":"string"}}}`, param)
	}
	return tools.ToolMetadata{Schema: llm.ToolSchema{Name: name, Description: desc, Parameters: json.RawMessage(params)}}
}

func registerSimulated(reg *tools.DefaultRegistry) error {
	// search_news 复用已注册的 search_web，查询词加 "news " 前缀
	searchNews := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		var in struct {
			Query string `json:"query"`
		}
		if err := tools.DecodeArgs(args, &in); err != nil {
			return nil, err
		}
		search, _, err := reg.Get(toolSearchWeb)
		if err != nil {
			return nil, err
		}
		q, _ := json.Marshal(map[string]string{"query": "news " + in.Query})
		return search(ctx, q)
	}

	defs := []struct {
		fn   tools.ToolFunc
		meta tools.ToolMetadata
	}{
		{fixed("Weather analysis: Based on current conditions, outdoor activities are recommended."),
			simulatedMeta(toolAnalyze, "Analyze weather conditions for outdoor activities", "weather")},
		{fixed("Air Quality Index moderate - suitable for outdoor activities."),
			simulatedMeta(toolAirQuality, "Get air quality index for a location", "city")},
		{fixed("Current time: Good time for outdoor activities"),
			simulatedMeta(toolGetTime, "Get current time", "")},
		{searchNews, simulatedMeta(toolSearchNews, "Search for recent news or events", "query")},
	}
	for _, d := range defs {
		if err := reg.Register(d.meta.Schema.Name, d.fn, d.meta); err != nil {
			return err
		}
	}
	return nil
}

// WouldUseTools 自主 Agent 不预判工具使用
func (a *Agent) WouldUseTools(string) bool { return false }

// StepHistory 返回最近一个目标的推理步骤
func (a *Agent) StepHistory() []agent.Step {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]agent.Step(nil), a.steps...)
}

// ClearHistory 清空对话与步骤历史
func (a *Agent) ClearHistory() {
	a.Base.ClearHistory()
	a.setSteps(nil)
}

func (a *Agent) setSteps(steps []agent.Step) {
	a.mu.Lock()
	a.steps = append([]agent.Step(nil), steps...)
	a.mu.Unlock()
}

// Chat 以消息为目标运行推理循环
func (a *Agent) Chat(ctx context.Context, goal string) (*agent.Reply, error) {
	a.Append(llm.UserMessage(goal))
	a.setSteps(nil)

	var steps []agent.Step
	for n := 1; n <= MaxSteps; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := a.nextAction(ctx, goal, steps)
		if err != nil {
			a.Logger().Warn("planner call failed", zap.Int("step", n), zap.Error(err))
			return a.finish(thinkingErrorReply, steps), nil
		}
		d := ParseResponse(text)
		step := agent.Step{
			Number:        n,
			Thought:       d.Thought,
			Action:        d.Action,
			Reason:        d.Reason,
			GoalCompleted: d.Completed(),
		}

		if d.Action != ActionNone && a.Registry().Has(d.Action) {
			action := d.Action
			if !ValidateAction(action, goal, steps) {
				action = CorrectAction(goal)
				a.Logger().Debug("action overridden", zap.String("from", d.Action), zap.String("to", action))
			}
			step.Action = action
			step.Result = a.execute(ctx, action, goal)
		}
		a.Logger().Debug("step done",
			zap.Int("step", n),
			zap.String("action", step.Action),
			zap.Bool("goal_completed", step.GoalCompleted))

		if d.Completed() {
			answer := defaultFinalAnswer
			if d.HasFinalAnswer {
				answer = d.FinalAnswer
			}
			step.FinalAnswer = answer
			steps = append(steps, step)
			a.setSteps(steps)
			if wantsDetail(goal) {
				answer = enhance(answer, steps)
			}
			return a.finish(answer, steps), nil
		}

		steps = append(steps, step)
		a.setSteps(steps)

		if results := searchResults(steps); len(results) > 0 {
			a.Logger().Debug("search produced results, completing", zap.Int("step", n))
			return a.finish(a.analyze(ctx, goal, results[0], steps), steps), nil
		}
	}
	return a.finish(exhaustedReply, steps), nil
}

func (a *Agent) nextAction(ctx context.Context, goal string, steps []agent.Step) (string, error) {
	resp, err := a.Complete(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			llm.SystemMessage(plannerPrompt),
			llm.UserMessage(plannerUserPrompt(goal, steps)),
		},
		Temperature: plannerTemperature,
		MaxTokens:   plannerMaxTokens,
	})
	if err != nil {
		return "", err
	}
	text := llm.FirstContent(resp)
	if strings.TrimSpace(text) == "" {
		return "", agent.ErrEmptyResponse
	}
	return text, nil
}

// execute 按动作从目标中推导参数；工具失败以文本形式返回
func (a *Agent) execute(ctx context.Context, action, goal string) string {
	var args map[string]any
	switch action {
	case toolGetWeather:
		args = map[string]any{"location": locationOr(goal, defaultLocation)}
	case toolSearchWeb:
		args = map[string]any{"query": SearchQuery(goal)}
	case toolSearchNews:
		args = map[string]any{"query": goal}
	case toolAirQuality:
		args = map[string]any{"city": locationOr(goal, defaultAQISource)}
	default:
		args = map[string]any{}
	}

	res := a.CallTool(ctx, action, args)
	if !res.OK() {
		return fmt.Sprintf("Tool %s execution failed: %s", action, res.Error)
	}
	return tools.ResultText(res)
}

func locationOr(goal, fallback string) string {
	if loc := intelligent.ExtractLocation(goal); loc != "" {
		return loc
	}
	return fallback
}

func searchResults(steps []agent.Step) []string {
	var out []string
	for _, s := range steps {
		if isSearch(s.Action) && s.Result != "" {
			out = append(out, s.Result)
		}
	}
	return out
}

// analyze 让 LLM 分析第一条搜索结果；失败时使用结构化模板
func (a *Agent) analyze(ctx context.Context, goal, results string, steps []agent.Step) string {
	resp, err := a.Complete(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			llm.SystemMessage(analystSystemPrompt),
			llm.UserMessage(analysisPrompt(goal, results)),
		},
		Temperature: plannerTemperature,
		MaxTokens:   analysisMaxTokens,
	})
	if err == nil {
		if text := llm.FirstContent(resp); text != "" {
			return text
		}
	}
	a.Logger().Warn("search analysis failed, using template", zap.Error(err))
	return enhance("Based on search results: "+truncate(results, overviewChars)+"...", steps)
}

// enhance 在有搜索结果且答案不足 detailedMinChars 时套用结构化模板
func enhance(answer string, steps []agent.Step) string {
	results := searchResults(steps)
	if len(results) == 0 || len([]rune(answer)) > detailedMinChars {
		return answer
	}
	return detailedTemplate(answer, results[0])
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (a *Agent) finish(answer string, steps []agent.Step) *agent.Reply {
	a.Append(llm.AssistantMessage(answer))

	var used []string
	seen := make(map[string]bool)
	for _, s := range steps {
		if s.Result != "" && !seen[s.Action] {
			seen[s.Action] = true
			used = append(used, s.Action)
		}
	}
	return &agent.Reply{Content: answer, ToolsUsed: used, Steps: append([]agent.Step(nil), steps...)}
}
