// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 定义 agentlab 使用的大语言模型接入抽象。

# 概述

上层 Agent 只依赖 [Provider] 接口与统一的请求/响应模型
（[ChatRequest]、[ChatResponse]、[Message]、[ToolSchema]），
具体服务商（Groq 的 OpenAI 兼容接口、Gemini）在 llm/providers 子包中实现。

# 子包

  - providers：HTTP 错误映射与 OpenAI 兼容线格式转换
  - providers/openaicompat：OpenAI 兼容 Provider 与 Groq 构造函数
  - providers/gemini：基于 google.golang.org/genai 的 Gemini Provider
  - retry：指数退避重试与调用配额 [retry.Budget]
  - tokenizer：tiktoken 计数与历史裁剪
  - tools：工具注册表、并发执行器与内置工具

# 错误

Provider 返回的错误统一为 *[Error]，Code 字段取值见 [ErrorCode]，
Retryable 标记决定上层是否退避重试。
*/
package llm
