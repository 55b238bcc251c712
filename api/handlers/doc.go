// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 agentlab HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 Agent 管理、对话、用户工具、博客与认证等端点的请求处理逻辑。
所有 Handler 均遵循标准 net/http 接口（Go 1.22 路由模式，r.PathValue 读取路径参数），
通过 Swagger 注解生成 API 文档。

# 核心类型

  - AgentHandler   — Agent 创建、列表、查询、删除，以及 /demo 快捷创建
  - ChatHandler    — 同步对话、SSE 逐词流式输出、WebSocket 对话、清空历史
  - ToolHandler    — 工具列表；用户 Lua 工具校验后注册到沙箱并挂到 Agent
  - BlogHandler    — /api/blog 下的文章、评论、分类、标签、统计、搜索与 RSS
  - AuthHandler    — 注册、登录（JWT）与当前用户
  - HealthHandler  — /、/health、/healthz、/ready、/version
  - Response       — 统一 JSON 信封（success + data + error + timestamp）

# 响应格式

错误一律使用 Response 信封，error.code 为 types.ErrorCode。
Agent、对话、工具、博客与健康检查的成功响应直接返回资源 JSON；
/auth 下的成功响应使用 Response 信封。

# 主要能力

  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 对话记录持久化：SessionStore（database.ChatSessionStore）
  - 可扩展健康检查：RegisterCheck 注册 PingCheck（数据库、Redis）
*/
package handlers
