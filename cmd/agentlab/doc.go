// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 agentlab 服务端程序入口。

# 概述

cmd/agentlab 组装配置、日志、遥测、数据库、Redis、LLM provider、
Agent 管理器与全部 HTTP handler，并提供数据库迁移、健康检查和版本查询子命令。

# 核心类型

  - Server       — 持有 HTTP 与 Metrics 两个服务器，负责组件装配与优雅关闭
  - Middleware   — HTTP 中间件函数签名 func(http.Handler) http.Handler
  - statusWriter — 包装 http.ResponseWriter 以捕获状态码，支持 Flush 与 Hijack

# 主要能力

  - 子命令：serve（默认）、migrate、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、Metrics、
    OTelTracing、CORS、RateLimiter（按 IP 的令牌桶）、OptionalJWT
  - LLM 中间件：每个 provider 包裹 Recovery、Metrics、Tracing、Logging 与请求改写
  - 数据库与 Redis 均为可选依赖，不可用时相应功能降级
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
