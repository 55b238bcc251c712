package handlers

import (
	"context"
	"net/http"

	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🤖 Agent 管理 Handler
// =============================================================================

// AgentHandler Agent 增删查
type AgentHandler struct {
	manager  *agent.Manager
	onDelete []func(ctx context.Context, id string)
	logger   *zap.Logger
}

// NewAgentHandler 创建 Agent 处理器；onDelete 在 Agent 删除成功后依次调用
func NewAgentHandler(manager *agent.Manager, logger *zap.Logger, onDelete ...func(ctx context.Context, id string)) *AgentHandler {
	return &AgentHandler{manager: manager, onDelete: onDelete, logger: logger}
}

// HandleCreate 创建 Agent
// @Summary 创建 Agent
// @Tags agent
// @Accept json
// @Produce json
// @Param request body agent.CreateRequest true "创建参数"
// @Success 200 {object} agent.Info
// @Failure 400 {object} Response
// @Router /agents [post]
func (h *AgentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req agent.CreateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	h.create(w, r, req)
}

func (h *AgentHandler) create(w http.ResponseWriter, r *http.Request, req agent.CreateRequest) {
	if owner, ok := types.UserID(r.Context()); ok {
		req.OwnerID = owner
	}
	info, err := h.manager.Create(r.Context(), req)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// HandleList 列出所有 Agent
// @Summary 列出 Agent
// @Tags agent
// @Produce json
// @Success 200 {array} agent.Info
// @Router /agents [get]
func (h *AgentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.manager.List())
}

// HandleGet 返回单个 Agent
// @Summary 查询 Agent
// @Tags agent
// @Produce json
// @Param id path string true "Agent ID"
// @Success 200 {object} agent.Info
// @Failure 404 {object} Response
// @Router /agents/{id} [get]
func (h *AgentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	info, err := h.manager.Info(r.PathValue("id"))
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// HandleDelete 删除 Agent
// @Summary 删除 Agent
// @Tags agent
// @Produce json
// @Param id path string true "Agent ID"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} Response
// @Router /agents/{id} [delete]
func (h *AgentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.manager.Delete(r.Context(), id); err != nil {
		HandleError(w, err, h.logger)
		return
	}
	for _, fn := range h.onDelete {
		fn(r.Context(), id)
	}
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Agent deleted successfully"})
}
