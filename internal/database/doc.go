/*
包 database 提供 agentlab 的关系型持久化：gorm 连接（sqlite/postgres/mysql）、
连接池管理、数据模型与存储。

# 核心类型

  - Open：按驱动类型创建 *gorm.DB，sqlite 使用纯 Go 的 glebarez/sqlite。
  - PoolManager：连接池配置、后台健康检查、WithTransaction 与
    WithTransactionRetry（死锁、锁超时、SQLITE_BUSY 时指数退避重试）。
  - UserModel / AgentModel / ChatSessionModel：users、agents、chat_sessions 表。
  - AgentStore：Agent 创建/删除审计记录（软删除）。
  - ChatSessionStore：按 (agent, user) 追加对话消息。
  - UserStore：用户注册、按用户名或邮箱查找、记录最后登录时间。

表结构的生产变更由 internal/migration 管理；AutoMigrate 仅用于开发环境。
*/
package database
