// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 是具体 Provider 实现的公共基础层：HTTP 错误映射、
错误体解析以及 OpenAI 兼容线格式与 llm 类型之间的转换。

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - ReadErrorMessage — 解析 {"error":{"message"}} 错误体，失败时回退原文
  - ConvertMessagesToOpenAI / ConvertToolsToOpenAI / ToLLMChatResponse — 线格式转换
  - ChooseModel — 请求模型 > 默认模型 > 兜底模型
*/
package providers
