package tokenizer

import (
	"fmt"
	"sync"

	"github.com/BaSui01/agentlab/llm"
	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// DefaultEncoding 用于 Llama/Groq 模型的近似计数
const DefaultEncoding = "cl100k_base"

const (
	perMessageOverhead      = 4 // <|start|>role\n ... <|end|>\n
	perConversationOverhead = 3
)

// Counter 统计文本 Token 数
type Counter interface {
	CountTokens(text string) int
	Name() string
}

// TiktokenCounter 懒加载 tiktoken 编码，初始化失败后固定使用估算器
type TiktokenCounter struct {
	encoding string
	logger   *zap.Logger

	once     sync.Once
	enc      *tiktoken.Tiktoken
	fallback *EstimatorCounter
}

// NewTiktokenCounter 创建计数器；encoding 为空时使用 cl100k_base
func NewTiktokenCounter(encoding string, logger *zap.Logger) *TiktokenCounter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TiktokenCounter{encoding: encoding, logger: logger}
}

func (t *TiktokenCounter) init() {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.logger.Warn("tiktoken unavailable, using estimator",
				zap.String("encoding", t.encoding), zap.Error(err))
			t.fallback = NewEstimatorCounter()
			return
		}
		t.enc = enc
	})
}

func (t *TiktokenCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	t.init()
	if t.enc == nil {
		return t.fallback.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

func (t *TiktokenCounter) Name() string {
	t.init()
	if t.enc == nil {
		return "estimator"
	}
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}

// CountMessage 返回单条消息的 Token 数（含角色与分隔开销）
func CountMessage(c Counter, m llm.Message) int {
	n := perMessageOverhead + c.CountTokens(string(m.Role)) + c.CountTokens(m.Content)
	for _, tc := range m.ToolCalls {
		n += c.CountTokens(tc.Name) + c.CountTokens(string(tc.Arguments))
	}
	return n
}

// CountMessages 返回消息列表的总 Token 数
func CountMessages(c Counter, msgs []llm.Message) int {
	total := perConversationOverhead
	for _, m := range msgs {
		total += CountMessage(c, m)
	}
	return total
}

// TrimHistory 从最新消息向前保留，直到总量超过 maxTokens。
// 最新一条消息总是保留；开头的孤立 tool 消息会被丢弃。
func TrimHistory(c Counter, msgs []llm.Message, maxTokens int) []llm.Message {
	if len(msgs) == 0 || maxTokens <= 0 {
		return msgs
	}

	used := perConversationOverhead
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := CountMessage(c, msgs[i])
		if used+cost > maxTokens && start < len(msgs) {
			break
		}
		used += cost
		start = i
	}
	for start < len(msgs)-1 && msgs[start].Role == llm.RoleTool {
		start++
	}

	out := make([]llm.Message, len(msgs)-start)
	copy(out, msgs[start:])
	return out
}
