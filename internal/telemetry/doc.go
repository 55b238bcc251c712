// Package telemetry 初始化 OpenTelemetry 的 TracerProvider 与 MeterProvider，
// 并提供研究流水线等组件使用的 Tracer 与 span 辅助函数。
// 关闭时保持全局 noop 实现，不连接任何外部服务。
package telemetry
