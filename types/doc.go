/*
Package types 提供 agentlab 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包，为 agent、llm、blog、auth、
api 等上层模块提供统一的错误码与 context 传播约定。

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - NewNotFoundError / NewConflictError 等常用构造函数
  - Context 传播：WithRequestID / WithUserID / WithUsername / WithAgentID / WithTraceID
*/
package types
