package database

import (
	"time"

	"gorm.io/gorm"
)

// =============================================================================
// 📋 数据模型
// =============================================================================

// UserModel 用户表
type UserModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	Username       string `gorm:"size:50;uniqueIndex;not null"`
	Email          string `gorm:"size:255;uniqueIndex;not null"`
	FullName       string `gorm:"size:100"`
	HashedPassword string `gorm:"size:255;not null"`
	IsActive       bool   `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastLogin      *time.Time
}

// TableName 表名
func (UserModel) TableName() string { return "users" }

// AgentModel Agent 审计记录（实例本身只存活于进程内）
type AgentModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	Name        string `gorm:"size:100;not null"`
	Description string `gorm:"type:text"`
	AgentType   string `gorm:"size:20;not null;index"`
	// JSON 数组：工具名
	Tools     string `gorm:"type:text"`
	OwnerID   string `gorm:"size:36;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName 表名
func (AgentModel) TableName() string { return "agents" }

// ChatSessionModel 对话记录，每个 (agent, user) 一条，messages 为 JSON 数组
type ChatSessionModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"size:36;uniqueIndex;not null"`
	AgentID   string `gorm:"size:36;index;not null"`
	UserID    string `gorm:"size:36;index;not null"`
	Messages  string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 表名
func (ChatSessionModel) TableName() string { return "chat_sessions" }

// AllModels 返回需要迁移的全部模型
func AllModels() []any {
	return []any{&UserModel{}, &AgentModel{}, &ChatSessionModel{}}
}
