package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BaSui01/agentlab/llm"
)

// DateTimeKeywords get_current_datetime 的意图关键词
var DateTimeKeywords = []string{"time", "date", "now", "current", "today", "when", "what time"}

// FormatDateTime 格式化为 "Current date and time: YYYY-MM-DD HH:MM:SS ZONE"
func FormatDateTime(t time.Time) string {
	return "Current date and time: " + t.Format("2006-01-02 15:04:05 MST")
}

// NewDateTimeTool 构造 get_current_datetime 工具；now 为空时使用 time.Now
func NewDateTimeTool(now func() time.Time) (ToolFunc, ToolMetadata) {
	if now == nil {
		now = time.Now
	}
	fn := func(context.Context, json.RawMessage) (json.RawMessage, error) {
		return TextResult(FormatDateTime(now()))
	}
	meta := ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        "get_current_datetime",
			Description: "Get the current date and time",
			Parameters:  objectSchema(""),
		},
		Timeout:  time.Second,
		Keywords: DateTimeKeywords,
	}
	return fn, meta
}
