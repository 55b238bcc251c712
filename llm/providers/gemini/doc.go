// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 gemini 基于官方 google.golang.org/genai SDK 实现 llm.Provider，
供研究型 Agent 的论文分析、缺口识别与 LaTeX 生成使用。

system 消息合并为 SystemInstruction，assistant 映射为 "model" 角色；
genai.APIError 按 HTTP 状态映射为 llm.Error，RESOURCE_EXHAUSTED 视为可重试的限流。
*/
package gemini
