// Copyright 2024 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a MIT license that can be
// found in the LICENSE file.

/*
Package agent 提供 agentlab 聊天型 Agent 的公共抽象与进程内管理。

# 概述

每个 Agent 拥有独立的对话历史、工具注册表与 LLM Provider。
四种内置类型分别在子包中实现：

	┌──────────────────────────────────────────────────────────┐
	│                        Manager                           │
	│   (id → Record, 创建/查询/删除, 可选持久化 Recorder)      │
	├──────────────────────────────────────────────────────────┤
	│                        Factory                           │
	│   (Type + API Key → Agent, 共享内置工具与 Provider)       │
	├──────────────────────────────────────────────────────────┤
	│  mathagent │ intelligent │ autonomous │ researcher       │
	├──────────────────────────────────────────────────────────┤
	│                          Base                            │
	│   (历史裁剪, 工具执行, Complete / Ask)                    │
	└──────────────────────────────────────────────────────────┘

# 核心类型

  - Agent    — Chat / ClearHistory / Tools 等统一接口
  - Base     — 被各实现嵌入，负责历史、工具与 LLM 调用
  - Registry — Type 到构造函数的映射，由 agent/catalog 填充
  - Factory  — 按类型与请求携带的 API Key 组装 Agent
  - Manager  — 线程安全的 Agent 表，支持数量回调与审计记录

# 错误

查找失败返回 NotFound（AGENT_NOT_FOUND），由 api/handlers 映射为 404。
*/
package agent
