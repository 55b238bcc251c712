package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/security"
	"github.com/BaSui01/agentlab/types"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

// =============================================================================
// 💬 聊天接口 Handler
// =============================================================================

// SessionStore 持久化对话记录（database.ChatSessionStore 实现了该接口）
type SessionStore interface {
	AppendExchange(ctx context.Context, agentID, userID, message, response string, toolsUsed []string) (string, error)
}

// ChatObserver 记录对话指标（metrics.Collector 实现了该接口）
type ChatObserver interface {
	RecordAgentChat(agentType string, ok bool, duration time.Duration)
}

// ChatConfig 聊天接口配置
type ChatConfig struct {
	MaxMessageLength int
	// ChunkDelay 流式输出时每个词之间的间隔
	ChunkDelay time.Duration
	// AllowedOrigins WebSocket 握手允许的来源（host 模式），为空时只允许同源
	AllowedOrigins []string
}

// ChatRequest 聊天请求
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse 聊天响应
type ChatResponse struct {
	Response  string   `json:"response"`
	AgentID   string   `json:"agent_id"`
	ToolsUsed bool     `json:"tools_used"`
	Tools     []string `json:"tools,omitempty"`
}

// StreamEvent 流式事件（SSE 与 WebSocket 共用）
type StreamEvent struct {
	Type      string   `json:"type"` // start / chunk / end / error
	Content   string   `json:"content,omitempty"`
	ToolsUsed []string `json:"tools_used,omitempty"`
	Message   string   `json:"message,omitempty"`
}

// ChatHandler 聊天接口处理器
type ChatHandler struct {
	manager  *agent.Manager
	cfg      ChatConfig
	sessions SessionStore
	observer ChatObserver
	logger   *zap.Logger
}

// ChatOption 配置 ChatHandler
type ChatOption func(*ChatHandler)

// WithSessionStore 设置对话记录存储
func WithSessionStore(s SessionStore) ChatOption {
	return func(h *ChatHandler) { h.sessions = s }
}

// WithChatObserver 设置指标记录器
func WithChatObserver(o ChatObserver) ChatOption {
	return func(h *ChatHandler) { h.observer = o }
}

// NewChatHandler 创建聊天处理器
func NewChatHandler(manager *agent.Manager, cfg ChatConfig, logger *zap.Logger, opts ...ChatOption) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ChatHandler{manager: manager, cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleChat 发送消息并返回完整回复
// @Summary 与 Agent 对话
// @Tags chat
// @Accept json
// @Produce json
// @Param id path string true "Agent ID"
// @Param request body ChatRequest true "消息"
// @Success 200 {object} ChatResponse
// @Failure 404 {object} Response
// @Failure 422 {object} Response
// @Router /agents/{id}/chat [post]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	rec, msg, ok := h.prepare(w, r)
	if !ok {
		return
	}
	reply, err := h.chat(r.Context(), rec, msg)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, ChatResponse{
		Response:  reply.Content,
		AgentID:   rec.Info.ID,
		ToolsUsed: len(reply.ToolsUsed) > 0,
		Tools:     reply.ToolsUsed,
	})
}

// HandleStream 以 SSE 按词输出回复
// @Summary 流式对话
// @Tags chat
// @Accept json
// @Produce text/event-stream
// @Param id path string true "Agent ID"
// @Param request body ChatRequest true "消息"
// @Success 200 {string} string "SSE 流"
// @Router /agents/{id}/chat/stream [post]
func (h *ChatHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, types.NewInternalError("streaming not supported"), h.logger)
		return
	}
	rec, msg, ok := h.prepare(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(ev StreamEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	ctx := r.Context()
	if err := h.stream(ctx, rec, msg, send); err != nil {
		h.logger.Debug("sse stream stopped", zap.String("agent_id", rec.Info.ID), zap.Error(err))
		return
	}
	_, _ = w.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}

// HandleWebSocket 在 WebSocket 上对话：收 {"message":...}，回 start/chunk/end 帧
// @Summary WebSocket 对话
// @Tags chat
// @Param id path string true "Agent ID"
// @Router /agents/{id}/chat/ws [get]
func (h *ChatHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	rec, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.cfg.AllowedOrigins})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	h.serveWebSocket(r.Context(), conn, rec)
	conn.Close(websocket.StatusNormalClosure, "closing")
}

func (h *ChatHandler) serveWebSocket(ctx context.Context, conn *websocket.Conn, rec *agent.Record) {
	send := func(ev StreamEvent) error { return wsjson.Write(ctx, conn, ev) }
	for {
		var req ChatRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && !errors.Is(err, context.Canceled) {
				h.logger.Debug("websocket read stopped", zap.String("agent_id", rec.Info.ID), zap.Error(err))
			}
			return
		}
		msg, err := security.ValidateChatMessage(req.Message, h.cfg.MaxMessageLength)
		if err != nil {
			if werr := send(StreamEvent{Type: "error", Message: errorMessage(err)}); werr != nil {
				return
			}
			continue
		}
		if err := h.stream(ctx, rec, msg, send); err != nil {
			return
		}
	}
}

// HandleClearHistory 清空对话历史
// @Summary 清空对话历史
// @Tags chat
// @Param id path string true "Agent ID"
// @Success 200 {object} MessageResponse
// @Router /agents/{id}/clear-history [post]
func (h *ChatHandler) HandleClearHistory(w http.ResponseWriter, r *http.Request) {
	rec, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	rec.Agent.ClearHistory()
	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Agent history cleared successfully"})
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// prepare 查找 Agent 并校验消息；失败时已写出错误响应
func (h *ChatHandler) prepare(w http.ResponseWriter, r *http.Request) (*agent.Record, string, bool) {
	rec, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		HandleError(w, err, h.logger)
		return nil, "", false
	}
	var req ChatRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return nil, "", false
	}
	msg, err := security.ValidateChatMessage(req.Message, h.cfg.MaxMessageLength)
	if err != nil {
		HandleError(w, err, h.logger)
		return nil, "", false
	}
	return rec, msg, true
}

// chat 调用 Agent、记录指标并持久化对话
func (h *ChatHandler) chat(ctx context.Context, rec *agent.Record, msg string) (*agent.Reply, error) {
	start := time.Now()
	reply, err := rec.Agent.Chat(ctx, msg)
	if h.observer != nil {
		h.observer.RecordAgentChat(string(rec.Info.AgentType), err == nil, time.Since(start))
	}
	if err != nil {
		h.logger.Error("agent chat failed", zap.String("agent_id", rec.Info.ID), zap.Error(err))
		if _, ok := types.AsError(err); ok {
			return nil, err
		}
		return nil, types.NewInternalError("Error chatting with agent: " + err.Error()).WithCause(err)
	}

	if h.sessions != nil {
		userID, _ := types.UserID(ctx)
		if _, err := h.sessions.AppendExchange(ctx, rec.Info.ID, userID, msg, reply.Content, reply.ToolsUsed); err != nil {
			h.logger.Warn("chat session not saved", zap.String("agent_id", rec.Info.ID), zap.Error(err))
		}
	}
	return reply, nil
}

// stream 发送 start、逐词 chunk 与 end；Agent 出错时发送 error 事件
func (h *ChatHandler) stream(ctx context.Context, rec *agent.Record, msg string, send func(StreamEvent) error) error {
	if err := send(StreamEvent{Type: "start"}); err != nil {
		return err
	}
	reply, err := h.chat(ctx, rec, msg)
	if err != nil {
		return send(StreamEvent{Type: "error", Message: errorMessage(err)})
	}

	for i, word := range strings.Fields(reply.Content) {
		if i > 0 {
			word = " " + word
		}
		if err := send(StreamEvent{Type: "chunk", Content: word}); err != nil {
			return err
		}
		if h.cfg.ChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(h.cfg.ChunkDelay):
			}
		}
	}
	return send(StreamEvent{Type: "end", ToolsUsed: reply.ToolsUsed})
}

func errorMessage(err error) string {
	if typed, ok := types.AsError(err); ok {
		return typed.Message
	}
	return err.Error()
}
