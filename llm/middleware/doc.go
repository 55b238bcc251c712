// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 middleware 为 llm.Provider 的 Completion 调用提供可组合的中间件链。

# 核心类型

  - Handler：func(ctx, *ChatRequest) (*ChatResponse, error)
  - Middleware：func(Handler) Handler
  - Chain：中间件链，第一个中间件在最外层
  - Provider / Wrap：把 Chain 套在任意 llm.Provider 外面
  - RequestRewriter / RewriterChain：发送前的参数改写

# 内置中间件

  - LoggingMiddleware：zap 记录模型、消息数、耗时与 token 用量
  - MetricsMiddleware：按 provider+model 上报 Prometheus 指标
  - TracingMiddleware：每次 Completion 一个 OpenTelemetry client span
  - RecoveryMiddleware：provider panic 转为 *PanicError
  - TimeoutMiddleware：请求级超时
  - RewriteMiddleware：EmptyToolsCleaner、DefaultModel 等改写器
*/
package middleware
