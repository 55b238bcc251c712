/*
包 migration 提供 agentlab 的数据库 Schema 迁移管理，支持 PostgreSQL、
MySQL 与 SQLite，基于 golang-migrate 实现。

迁移文件通过 embed.FS 内嵌（migrations/<方言>/NNNNNN_name.{up,down}.sql），
包含 users、agents、chat_sessions 三张表。

  - Migrator / DefaultMigrator：Up、Down、DownAll、Steps、Goto、Force、
    Version、Status、Info；ctx 取消时通过 GracefulStop 停止。
  - NewMigratorFromDatabaseConfig：从 config.DatabaseConfig 构建 DSN。
  - CLI：agentlab migrate 子命令的输出与参数解析。
*/
package migration
