package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/agent/sandbox"
	"github.com/BaSui01/agentlab/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🔧 工具接口 Handler
// =============================================================================

// ToolsResponse 工具列表响应
type ToolsResponse struct {
	Tools []agent.ToolInfo `json:"tools"`
}

// ToolHandler 管理 Agent 的工具；每个 Agent 持有独立的沙箱注册表
type ToolHandler struct {
	manager *agent.Manager
	config  sandbox.ExecutorConfig

	mu         sync.Mutex
	registries map[string]*sandbox.Registry

	logger *zap.Logger
}

// NewToolHandler 创建工具处理器
func NewToolHandler(manager *agent.Manager, config sandbox.ExecutorConfig, logger *zap.Logger) *ToolHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ToolHandler{
		manager:    manager,
		config:     config,
		registries: make(map[string]*sandbox.Registry),
		logger:     logger,
	}
}

// HandleList 列出 Agent 的工具
// @Summary 工具列表
// @Tags tools
// @Produce json
// @Param id path string true "Agent ID"
// @Success 200 {object} ToolsResponse
// @Failure 404 {object} Response
// @Router /agents/{id}/tools [get]
func (h *ToolHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	rec, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	list := rec.Agent.Tools()
	if list == nil {
		list = []agent.ToolInfo{}
	}
	WriteJSON(w, http.StatusOK, ToolsResponse{Tools: list})
}

// HandleRegister 校验用户提交的 Lua 工具并注册到 Agent
// @Summary 注册自定义工具
// @Tags tools
// @Accept json
// @Produce json
// @Param id path string true "Agent ID"
// @Param request body sandbox.ToolSpec true "工具定义"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Router /agents/{id}/tools [post]
func (h *ToolHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	rec, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	if rec.Info.OwnerID != "" {
		if userID, _ := types.UserID(r.Context()); userID != rec.Info.OwnerID {
			WriteError(w, types.NewForbiddenError("Only the agent owner can register tools"), h.logger)
			return
		}
	}

	var spec sandbox.ToolSpec
	if err := DecodeJSONBody(w, r, &spec, h.logger); err != nil {
		return
	}

	reg := h.registry(rec.Info.ID)
	tool, err := reg.Register(spec)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	fn, meta, err := reg.Tool(tool.Name)
	if err == nil {
		err = rec.Agent.RegisterTool(tool.Name, fn, meta)
	}
	if err != nil {
		reg.Remove(tool.Name)
		if _, ok := types.AsError(err); !ok {
			err = types.NewError(types.ErrToolValidation, "Tool registration failed: "+err.Error()).
				WithHTTPStatus(http.StatusBadRequest).WithCause(err)
		}
		HandleError(w, err, h.logger)
		return
	}

	h.logger.Info("user tool attached",
		zap.String("agent_id", rec.Info.ID),
		zap.String("tool", tool.Name))
	WriteJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Tool '%s' registered successfully", tool.Name)})
}

// Forget 删除 Agent 时释放其沙箱注册表
func (h *ToolHandler) Forget(_ context.Context, agentID string) {
	h.mu.Lock()
	delete(h.registries, agentID)
	h.mu.Unlock()
}

// Stats 汇总所有沙箱的执行统计
func (h *ToolHandler) Stats() sandbox.ExecutorStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	var total sandbox.ExecutorStats
	for _, reg := range h.registries {
		s := reg.Stats()
		total.TotalExecutions += s.TotalExecutions
		total.SuccessExecutions += s.SuccessExecutions
		total.FailedExecutions += s.FailedExecutions
		total.TimeoutExecutions += s.TimeoutExecutions
		total.TotalDuration += s.TotalDuration
	}
	return total
}

func (h *ToolHandler) registry(agentID string) *sandbox.Registry {
	h.mu.Lock()
	defer h.mu.Unlock()
	reg, ok := h.registries[agentID]
	if !ok {
		reg = sandbox.NewRegistry(h.config, h.logger)
		h.registries[agentID] = reg
	}
	return reg
}
