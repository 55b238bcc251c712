package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/BaSui01/agentlab/llm/tools"
)

// Type Agent 类型
type Type string

const (
	TypeMath        Type = "math"
	TypeIntelligent Type = "intelligent"
	TypeAutonomous  Type = "autonomous"
	TypeResearcher  Type = "researcher"
)

// Types 返回所有内置类型
func Types() []Type {
	return []Type{TypeMath, TypeIntelligent, TypeAutonomous, TypeResearcher}
}

// ParseType 解析类型名（忽略大小写）；未知类型按 math 处理
func ParseType(s string) Type {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeIntelligent, TypeAutonomous, TypeResearcher:
		return t
	default:
		return TypeMath
	}
}

// Agent 聊天型 Agent 的统一接口
type Agent interface {
	// Chat 处理一条用户消息并返回回复；LLM/工具失败降级为回复文本，
	// 只有调用方取消等不可恢复的情况才返回 error
	Chat(ctx context.Context, message string) (*Reply, error)

	// ClearHistory 清空对话历史
	ClearHistory()

	// Tools 返回已注册工具（按名称排序）
	Tools() []ToolInfo

	// RegisterTool 注册额外工具
	RegisterTool(name string, fn tools.ToolFunc, meta tools.ToolMetadata) error

	// Type 返回 Agent 类型
	Type() Type

	// WouldUseTools 报告该消息是否会走工具路径
	WouldUseTools(message string) bool
}

// Reply 一次对话的结果
type Reply struct {
	Content   string   `json:"content"`
	ToolsUsed []string `json:"tools_used,omitempty"`
	Steps     []Step   `json:"steps,omitempty"`
}

// Step 自主 Agent 的一步推理记录
type Step struct {
	Number        int    `json:"step"`
	Thought       string `json:"thought"`
	Action        string `json:"action"`
	Reason        string `json:"reason,omitempty"`
	Result        string `json:"result,omitempty"`
	GoalCompleted bool   `json:"goal_completed"`
	FinalAnswer   string `json:"final_answer,omitempty"`
}

// ToolInfo 对外展示的工具描述
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}
