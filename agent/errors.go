package agent

import (
	"errors"
	"fmt"

	"github.com/BaSui01/agentlab/types"
)

var (
	// ErrProviderNotSet LLM Provider 未设置
	ErrProviderNotSet = errors.New("llm provider not set")

	// ErrEmptyResponse LLM 没有返回内容
	ErrEmptyResponse = errors.New("llm returned no content")

	// ErrUnknownType 没有注册该类型的构造器
	ErrUnknownType = errors.New("unknown agent type")
)

// NotFound 返回 404 AGENT_NOT_FOUND
func NotFound(id string) *types.Error {
	return types.NewError(types.ErrAgentNotFound, "Agent not found").
		WithHTTPStatus(404).
		WithCause(fmt.Errorf("agent %s", id))
}
