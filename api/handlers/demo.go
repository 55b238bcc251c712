package handlers

import (
	"net/http"

	"github.com/BaSui01/agentlab/agent"
)

// =============================================================================
// 🎬 演示 Agent
// =============================================================================

var demoAgents = []struct {
	path string
	req  agent.CreateRequest
}{
	{"create-sample-agent", agent.CreateRequest{
		Name:        "Math Calculator Agent",
		Description: "A sample agent that can perform mathematical calculations",
		AgentType:   string(agent.TypeMath),
	}},
	{"create-intelligent-agent", agent.CreateRequest{
		Name:        "Intelligent Web Agent",
		Description: "An intelligent agent that can search the web, get weather, fetch news, and access current information",
		AgentType:   string(agent.TypeIntelligent),
	}},
	{"create-autonomous-agent", agent.CreateRequest{
		Name:        "Autonomous Planning Agent",
		Description: "An autonomous agent that can break down goals into steps, think through problems, and make decisions using simulated tools",
		AgentType:   string(agent.TypeAutonomous),
	}},
	{"create-researcher-agent", agent.CreateRequest{
		Name:        "AI Research Agent",
		Description: "A research agent that searches arXiv, analyzes papers, identifies research gaps and writes a LaTeX proposal",
		AgentType:   string(agent.TypeResearcher),
	}},
}

// DemoRoutes 返回 /demo/* 路由；演示 Agent 使用服务端配置的 API Key
func (h *AgentHandler) DemoRoutes() map[string]http.HandlerFunc {
	routes := make(map[string]http.HandlerFunc, len(demoAgents))
	for _, d := range demoAgents {
		req := d.req
		routes["POST /demo/"+d.path] = func(w http.ResponseWriter, r *http.Request) {
			h.create(w, r, req)
		}
	}
	return routes
}
