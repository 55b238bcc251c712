/*
Package workflow 提供顺序工作流与执行事件。

# 核心类型

  - Runnable      — 通用执行接口 Execute(ctx, input) (output, error)
  - Step          — 具名步骤；FuncStep 把函数包装为步骤
  - ChainWorkflow — 顺序执行步骤，前一步的输出作为后一步的输入

# 执行事件

调用方通过 WithWorkflowStreamEmitter 在 context 中注册回调，
步骤内部使用 EmitWorkflowEvent 上报开始、完成与失败事件。
研究流水线用它向 SSE/WebSocket 推送阶段进度。
*/
package workflow
