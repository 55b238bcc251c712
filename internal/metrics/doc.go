/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖 HTTP、LLM、
工具执行、Agent 对话、研究流水线、缓存与数据库。

Collector 通过 promauto.With 注册到指定 Registry；测试使用独立的
prometheus.NewRegistry 避免重复注册。Handler 返回 metrics 端口上的
promhttp 处理器。
*/
package metrics
