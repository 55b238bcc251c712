/*
包 server 提供 agentlab HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭、关闭钩子与系统信号监听。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/WaitForShutdown 生命周期方法。
  - Config：监听地址、读写超时、空闲超时、最大请求头与关闭超时。
    ConfigFromServer / MetricsConfig 从全局配置构建 API 与 metrics 服务器配置。

# 关闭顺序

Shutdown 先在超时内排空 HTTP 请求，再按注册顺序执行 OnShutdown 钩子
（metrics 服务器、遥测、Redis、数据库），所有错误通过 errors.Join 汇总返回。
*/
package server
