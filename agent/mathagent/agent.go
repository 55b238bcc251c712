// Package mathagent 实现算术 Agent：检测到数学关键词时把六个算术工具交给 LLM
// （tool_choice=auto），执行返回的工具调用后再让 LLM 组织答案；否则直接对话。
package mathagent

import (
	"context"
	"strings"

	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/tools"
	"go.uber.org/zap"
)

const systemPrompt = `You are a helpful assistant with access to mathematical tools.
When users ask for calculations, always use the appropriate tool rather than doing the math yourself.

You must detect math operations whether they are:
- Written using digits (e.g., "8 + 9", "25 divided by 5")
- Written in words (e.g., "eight plus nine", "twenty-five divided by five")
- Mixed forms (e.g., "8 plus nine", "twenty minus 4")

Always convert number words into their numerical values before passing them to the tool.
Examples:
- "Add eight and nine" → tool(input="8 + 9")
- "What is twenty times four?" → tool(input="20 × 4")
- "7 plus six" → tool(input="7 + 6")

If a request involves a mathematical operation, call the right tool via tool_choice="auto".
Do not calculate in your own reasoning — always delegate to tools.
Be concise and clear in your final responses.`

const followUpPrompt = "Please provide a clear, concise answer based on the tool results."

// 出现任意关键词即走工具路径，数字写成单词时也能交给 LLM 识别
var mathKeywords = []string{
	"add", "plus", "sum", "addition", "+",
	"multiply", "times", "product", "*", "x",
	"divide", "division", "/", "÷",
	"subtract", "minus", "difference", "-",
	"power", "exponent", "^", "**",
	"square root", "sqrt", "root",
	"calculate", "compute", "math",
}

// ShouldUseTool 报告输入是否包含数学关键词
func ShouldUseTool(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range mathKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Agent 算术 Agent
type Agent struct {
	*agent.Base
}

// New 创建算术 Agent 并注册算术工具
func New(deps agent.Deps) (agent.Agent, error) {
	base := agent.NewBase(deps.Config, deps.Provider, deps.Counter, deps.ExecutionObserver(), deps.Logger)
	if err := tools.RegisterMathTools(base.Registry()); err != nil {
		return nil, err
	}
	return &Agent{Base: base}, nil
}

// WouldUseTools 实现 agent.Agent
func (a *Agent) WouldUseTools(message string) bool { return ShouldUseTool(message) }

// Chat 实现 agent.Agent
func (a *Agent) Chat(ctx context.Context, message string) (*agent.Reply, error) {
	a.Append(llm.UserMessage(message))

	if ShouldUseTool(message) {
		a.Logger().Debug("math detected, offering tools")
		return a.withTools(ctx)
	}
	return &agent.Reply{Content: a.llmOnly(ctx)}, nil
}

func (a *Agent) withTools(ctx context.Context) (*agent.Reply, error) {
	resp, err := a.Complete(ctx, &llm.ChatRequest{
		Messages:   a.Messages([]llm.Message{llm.SystemMessage(systemPrompt)}),
		Tools:      a.Registry().Schemas(),
		ToolChoice: "auto",
	})
	if err != nil {
		a.Logger().Warn("tool request failed, falling back to plain chat", zap.Error(err))
		return &agent.Reply{Content: a.llmOnly(ctx)}, nil
	}

	msg := llm.FirstMessage(resp)
	if len(msg.ToolCalls) == 0 {
		a.Append(llm.AssistantMessage(msg.Content))
		return &agent.Reply{Content: msg.Content}, nil
	}

	lines, used := a.RunToolCalls(ctx, msg.ToolCalls)
	results := strings.Join(lines, "; ")
	a.Append(llm.AssistantMessage("Tool results: " + results))

	answer, err := a.Ask(ctx, a.Messages(nil, llm.UserMessage(followUpPrompt)))
	if err != nil {
		answer = "Calculation complete: " + results
	}
	a.Append(llm.AssistantMessage(answer))
	return &agent.Reply{Content: answer, ToolsUsed: used}, nil
}

func (a *Agent) llmOnly(ctx context.Context) string {
	reply, err := a.Ask(ctx, a.Messages(nil))
	if err != nil {
		reply = "Error: " + err.Error()
	}
	a.Append(llm.AssistantMessage(reply))
	return reply
}

// ShowTools 返回工具列表文本
func (a *Agent) ShowTools() string {
	var b strings.Builder
	b.WriteString("Available tools:")
	for _, t := range a.Tools() {
		b.WriteString("\n• " + t.Name + ": " + t.Description)
	}
	return b.String()
}
