package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// AgentCounter 返回当前存活的 Agent 数量（agent.Manager 实现了该接口）
type AgentCounter interface {
	Count() int
}

// HealthCheck 健康检查接口
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status      string                 `json:"status"` // "healthy", "degraded", "unhealthy"
	AgentsCount int                    `json:"agents_count"`
	Version     string                 `json:"version"`
	Checks      map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// IndexResponse 根路径响应
type IndexResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	agents  AgentCounter
	version string
	timeout time.Duration

	mu     sync.RWMutex
	checks []HealthCheck

	logger *zap.Logger
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(agents AgentCounter, version string, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		agents:  agents,
		version: version,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// RegisterCheck 注册健康检查
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleIndex 返回 API 名称与主要入口
// @Summary API 信息
// @Tags 健康
// @Produce json
// @Success 200 {object} IndexResponse
// @Router / [get]
func (h *HealthHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, IndexResponse{
		Message: "AI Agents API",
		Version: h.version,
		Endpoints: map[string]string{
			"agents": "/agents",
			"chat":   "/agents/{agent_id}/chat",
			"tools":  "/agents/{agent_id}/tools",
		},
	})
}

// HandleHealth 处理 /health 请求；依赖检查失败时状态为 degraded，仍返回 200
// @Summary 健康检查
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务正常"
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status, ok := h.run(r.Context())
	if !ok {
		status.Status = "degraded"
	}
	WriteJSON(w, http.StatusOK, status)
}

// HandleHealthz 处理 /healthz 请求（Kubernetes 活跃度探针，只检查进程是否运行）
// @Summary Kubernetes 活跃度探针
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务处于活动状态"
// @Router /healthz [get]
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:      "healthy",
		AgentsCount: h.count(),
		Version:     h.version,
	})
}

// HandleReady 处理 /ready 请求（就绪检查）
// @Summary 准备情况检查
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "服务已准备就绪"
// @Failure 503 {object} HealthStatus "服务尚未准备好"
// @Router /ready [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	status, ok := h.run(r.Context())
	if !ok {
		status.Status = "unhealthy"
		WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} map[string]string "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, map[string]string{
			"version":    h.version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

func (h *HealthHandler) count() int {
	if h.agents == nil {
		return 0
	}
	return h.agents.Count()
}

// run 依次执行所有检查
func (h *HealthHandler) run(ctx context.Context) (HealthStatus, bool) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := make([]HealthCheck, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	status := HealthStatus{
		Status:      "healthy",
		AgentsCount: h.count(),
		Version:     h.version,
	}
	if len(checks) == 0 {
		return status, true
	}

	status.Checks = make(map[string]CheckResult, len(checks))
	allHealthy := true
	for _, check := range checks {
		start := time.Now()
		err := check.Check(ctx)
		latency := time.Since(start)

		result := CheckResult{Status: "pass", Latency: latency.String()}
		if err != nil {
			result.Status = "fail"
			result.Message = err.Error()
			allHealthy = false

			h.logger.Warn("health check failed",
				zap.String("check", check.Name()),
				zap.Error(err),
				zap.Duration("latency", latency),
			)
		}
		status.Checks[check.Name()] = result
	}
	return status, allHealthy
}

// =============================================================================
// 🔧 内置健康检查实现
// =============================================================================

// PingCheck 以 ping 函数实现的检查（数据库、Redis 等）
type PingCheck struct {
	name string
	ping func(ctx context.Context) error
}

// NewPingCheck 创建检查
func NewPingCheck(name string, ping func(ctx context.Context) error) *PingCheck {
	return &PingCheck{name: name, ping: ping}
}

func (c *PingCheck) Name() string {
	return c.name
}

func (c *PingCheck) Check(ctx context.Context) error {
	return c.ping(ctx)
}
