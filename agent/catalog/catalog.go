// Package catalog 把内置的四种 Agent 类型注册到 agent.Registry。
package catalog

import (
	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/agent/autonomous"
	"github.com/BaSui01/agentlab/agent/intelligent"
	"github.com/BaSui01/agentlab/agent/mathagent"
	"github.com/BaSui01/agentlab/agent/researcher"
	"go.uber.org/zap"
)

// Register 注册 math、intelligent、autonomous、researcher 构造器
func Register(r *agent.Registry) {
	r.Register(agent.TypeMath, mathagent.New)
	r.Register(agent.TypeIntelligent, intelligent.New)
	r.Register(agent.TypeAutonomous, autonomous.New)
	r.Register(agent.TypeResearcher, researcher.New)
}

// NewRegistry 返回已注册全部内置类型的 Registry
func NewRegistry(logger *zap.Logger) *agent.Registry {
	r := agent.NewRegistry(logger)
	Register(r)
	return r
}
