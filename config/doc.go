// Package config 提供 agentlab 的配置管理功能。
//
// 配置按 默认值 → YAML → .env → AGENTLAB_* 环境变量 → 部署约定变量 的顺序合并，
// 并由 Config.Validate 执行生产环境校验。
package config
