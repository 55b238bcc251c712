// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	llmTokensUsed      *prometheus.CounterVec

	// 工具与 Agent 指标
	toolExecutionsTotal *prometheus.CounterVec
	toolDuration        *prometheus.HistogramVec
	agentChatsTotal     *prometheus.CounterVec
	agentChatDuration   *prometheus.HistogramVec
	agentsActive        prometheus.Gauge

	// 研究流水线指标
	researchStagesTotal *prometheus.CounterVec
	researchAPICalls    prometheus.Counter

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 数据库指标
	dbQueryDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewCollector 在默认 Registry 上创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, prometheus.DefaultGatherer, logger)
}

// NewCollectorWithRegistry 在指定 Registry 上创建指标收集器
func NewCollectorWithRegistry(namespace string, reg prometheus.Registerer, gatherer prometheus.Gatherer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := promauto.With(reg)
	c := &Collector{
		gatherer: gatherer,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	c.httpRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	c.httpResponseSize = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
	}, []string{"method", "route"})

	// LLM 指标
	c.llmRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_requests_total",
		Help:      "Total number of LLM requests",
	}, []string{"provider", "model", "status"})

	c.llmRequestDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "llm_request_duration_seconds",
		Help:      "LLM request duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider", "model"})

	c.llmTokensUsed = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_tokens_used_total",
		Help:      "Total number of tokens used",
	}, []string{"provider", "model", "type"}) // type: prompt, completion

	// 工具与 Agent 指标
	c.toolExecutionsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_executions_total",
		Help:      "Total number of tool executions",
	}, []string{"tool", "status"})

	c.toolDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tool_execution_duration_seconds",
		Help:      "Tool execution duration in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15, 30},
	}, []string{"tool"})

	c.agentChatsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agent_chats_total",
		Help:      "Total number of agent chat turns",
	}, []string{"agent_type", "status"})

	c.agentChatDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "agent_chat_duration_seconds",
		Help:      "Agent chat turn duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"agent_type"})

	c.agentsActive = f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "agents_active",
		Help:      "Number of live agent instances",
	})

	// 研究流水线指标
	c.researchStagesTotal = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "research_stages_total",
		Help:      "Total number of research pipeline stages run",
	}, []string{"stage", "status"})

	c.researchAPICalls = f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "research_api_calls_total",
		Help:      "External calls made by the research pipeline",
	})

	// 缓存指标
	c.cacheHits = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Total number of cache hits",
	}, []string{"cache_type"})

	c.cacheMisses = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Total number of cache misses",
	}, []string{"cache_type"})

	// 数据库指标
	c.dbQueryDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_seconds",
		Help:      "Database query duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, route).Observe(float64(responseSize))
}

// =============================================================================
// 🤖 LLM 指标记录
// =============================================================================

// RecordLLMRequest 记录 LLM 请求
func (c *Collector) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, model).Observe(duration.Seconds())
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// =============================================================================
// 🛠️ 工具 / Agent 指标记录
// =============================================================================

// RecordToolExecution 记录工具执行
func (c *Collector) RecordToolExecution(tool string, ok bool, duration time.Duration) {
	c.toolExecutionsTotal.WithLabelValues(tool, okLabel(ok)).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordAgentChat 记录一次 Agent 对话
func (c *Collector) RecordAgentChat(agentType string, ok bool, duration time.Duration) {
	c.agentChatsTotal.WithLabelValues(agentType, okLabel(ok)).Inc()
	c.agentChatDuration.WithLabelValues(agentType).Observe(duration.Seconds())
}

// SetActiveAgents 设置当前存活的 Agent 数
func (c *Collector) SetActiveAgents(n int) {
	c.agentsActive.Set(float64(n))
}

// RecordResearchStage 记录研究流水线阶段
func (c *Collector) RecordResearchStage(stage string, ok bool) {
	c.researchStagesTotal.WithLabelValues(stage, okLabel(ok)).Inc()
}

// RecordResearchAPICall 记录研究流水线的外部调用
func (c *Collector) RecordResearchAPICall() {
	c.researchAPICalls.Inc()
}

// =============================================================================
// 💾 缓存 / 数据库指标记录
// =============================================================================

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordDBQuery 记录数据库查询
func (c *Collector) RecordDBQuery(operation string, duration time.Duration) {
	c.dbQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusClass 将 HTTP 状态码归类为 2xx/3xx/4xx/5xx
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

func okLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
