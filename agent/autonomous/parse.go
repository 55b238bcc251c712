package autonomous

import (
	"regexp"
	"strings"
)

// Action 为 none 时本步不执行工具
const ActionNone = "none"

var (
	thoughtRe   = regexp.MustCompile(`(?s)Thought:\s*(.*?)(?:\nAction:|$)`)
	actionRe    = regexp.MustCompile(`(?s)Action:\s*(.*?)(?:\nReason:|$)`)
	reasonRe    = regexp.MustCompile(`(?s)Reason:\s*(.*?)(?:\nGoal Completed:|$)`)
	completedRe = regexp.MustCompile(`(?s)Goal Completed:\s*(.*?)(?:\nFinal Answer|$)`)
	answerRe    = regexp.MustCompile(`(?s)Final Answer[^:]*:\s*(.*)`)
)

// Decision LLM 一步输出的结构化字段
type Decision struct {
	Thought        string
	Action         string
	Reason         string
	GoalCompleted  string
	FinalAnswer    string
	HasFinalAnswer bool
}

// Completed 报告 Goal Completed 是否为 yes（忽略大小写）
func (d Decision) Completed() bool {
	return strings.ToLower(d.GoalCompleted) == "yes"
}

func capture(re *regexp.Regexp, s, fallback string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return fallback, false
	}
	return strings.TrimSpace(m[1]), true
}

// ParseResponse 解析 Thought/Action/Reason/Goal Completed/Final Answer 格式的文本；
// 缺失字段使用默认值
func ParseResponse(text string) Decision {
	var d Decision
	d.Thought, _ = capture(thoughtRe, text, "No thought provided")
	d.Action, _ = capture(actionRe, text, ActionNone)
	d.Reason, _ = capture(reasonRe, text, "No reason provided")
	d.GoalCompleted, _ = capture(completedRe, text, "no")
	d.FinalAnswer, d.HasFinalAnswer = capture(answerRe, text, "")
	return d
}
