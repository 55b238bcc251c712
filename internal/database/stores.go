package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// =============================================================================
// 🤖 Agent 审计记录
// =============================================================================

// AgentRecord 写入 agents 表的数据
type AgentRecord struct {
	ID          string
	Name        string
	Description string
	AgentType   string
	Tools       []string
	OwnerID     string
}

// AgentStore 持久化 Agent 创建/删除记录
type AgentStore struct {
	pool *PoolManager
}

// NewAgentStore 创建 AgentStore
func NewAgentStore(pool *PoolManager) *AgentStore {
	return &AgentStore{pool: pool}
}

// SaveAgent 插入或更新一条 Agent 记录
func (s *AgentStore) SaveAgent(ctx context.Context, rec AgentRecord) error {
	tools, err := json.Marshal(rec.Tools)
	if err != nil {
		return fmt.Errorf("marshal tools: %w", err)
	}
	model := AgentModel{
		ID:          rec.ID,
		Name:        rec.Name,
		Description: rec.Description,
		AgentType:   rec.AgentType,
		Tools:       string(tools),
		OwnerID:     rec.OwnerID,
	}
	return s.pool.WithTransaction(ctx, "agent_save", func(tx *gorm.DB) error {
		return tx.Save(&model).Error
	})
}

// DeleteAgent 软删除 Agent 记录
func (s *AgentStore) DeleteAgent(ctx context.Context, id string) error {
	return s.pool.WithTransaction(ctx, "agent_delete", func(tx *gorm.DB) error {
		return tx.Delete(&AgentModel{}, "id = ?", id).Error
	})
}

// ListAgents 返回未删除的 Agent 记录，按创建时间排序
func (s *AgentStore) ListAgents(ctx context.Context) ([]AgentModel, error) {
	var out []AgentModel
	err := s.pool.DB().WithContext(ctx).Order("created_at asc").Find(&out).Error
	return out, err
}

// =============================================================================
// 💬 对话记录
// =============================================================================

// SessionMessage 对话记录中的一条消息
type SessionMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ToolsUsed []string  `json:"tools_used,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSessionStore 将对话追加到 chat_sessions 表
type ChatSessionStore struct {
	pool       *PoolManager
	maxRetries int
}

// NewChatSessionStore 创建 ChatSessionStore
func NewChatSessionStore(pool *PoolManager) *ChatSessionStore {
	return &ChatSessionStore{pool: pool, maxRetries: 3}
}

// AppendExchange 追加一轮 用户消息 + Agent 回复，返回会话 ID
func (s *ChatSessionStore) AppendExchange(ctx context.Context, agentID, userID, message, response string, toolsUsed []string) (string, error) {
	if userID == "" {
		userID = "anonymous"
	}
	now := time.Now().UTC()

	var sessionID string
	err := s.pool.WithTransactionRetry(ctx, "chat_session_append", s.maxRetries, func(tx *gorm.DB) error {
		var sess ChatSessionModel
		err := tx.Where("agent_id = ? AND user_id = ?", agentID, userID).First(&sess).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			sess = ChatSessionModel{
				SessionID: uuid.NewString(),
				AgentID:   agentID,
				UserID:    userID,
				Messages:  "[]",
			}
		case err != nil:
			return err
		}

		var msgs []SessionMessage
		if err := json.Unmarshal([]byte(sess.Messages), &msgs); err != nil {
			return fmt.Errorf("corrupt session %s: %w", sess.SessionID, err)
		}
		msgs = append(msgs,
			SessionMessage{Role: "user", Content: message, Timestamp: now},
			SessionMessage{Role: "assistant", Content: response, ToolsUsed: toolsUsed, Timestamp: now},
		)
		data, err := json.Marshal(msgs)
		if err != nil {
			return err
		}
		sess.Messages = string(data)
		sessionID = sess.SessionID
		return tx.Save(&sess).Error
	})
	return sessionID, err
}

// History 返回某个 (agent, user) 的全部对话消息
func (s *ChatSessionStore) History(ctx context.Context, agentID, userID string) ([]SessionMessage, error) {
	if userID == "" {
		userID = "anonymous"
	}
	var sess ChatSessionModel
	err := s.pool.DB().WithContext(ctx).Where("agent_id = ? AND user_id = ?", agentID, userID).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var msgs []SessionMessage
	if err := json.Unmarshal([]byte(sess.Messages), &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteForAgent 删除某个 Agent 的全部对话记录
func (s *ChatSessionStore) DeleteForAgent(ctx context.Context, agentID string) error {
	return s.pool.WithTransaction(ctx, "chat_session_delete", func(tx *gorm.DB) error {
		return tx.Where("agent_id = ?", agentID).Delete(&ChatSessionModel{}).Error
	})
}

// =============================================================================
// 👤 用户
// =============================================================================

// ErrUserNotFound 用户不存在
var ErrUserNotFound = errors.New("user not found")

// UserStore users 表的读写
type UserStore struct {
	pool *PoolManager
}

// NewUserStore 创建 UserStore
func NewUserStore(pool *PoolManager) *UserStore {
	return &UserStore{pool: pool}
}

// CreateUser 插入用户；ID 为空时生成 UUID
func (s *UserStore) CreateUser(ctx context.Context, u *UserModel) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return s.pool.WithTransaction(ctx, "user_create", func(tx *gorm.DB) error {
		return tx.Create(u).Error
	})
}

// UserByID 按 ID 查找
func (s *UserStore) UserByID(ctx context.Context, id string) (*UserModel, error) {
	return s.first(ctx, "id = ?", id)
}

// UserByLogin 按用户名或邮箱查找
func (s *UserStore) UserByLogin(ctx context.Context, login string) (*UserModel, error) {
	return s.first(ctx, "username = ? OR email = ?", login, login)
}

// UsernameOrEmailTaken 分别报告用户名、邮箱是否已被占用
func (s *UserStore) UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, bool, error) {
	var users []UserModel
	err := s.pool.DB().WithContext(ctx).
		Where("username = ? OR email = ?", username, email).
		Find(&users).Error
	if err != nil {
		return false, false, err
	}
	var nameTaken, emailTaken bool
	for _, u := range users {
		nameTaken = nameTaken || u.Username == username
		emailTaken = emailTaken || u.Email == email
	}
	return nameTaken, emailTaken, nil
}

// TouchLogin 更新最后登录时间
func (s *UserStore) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return s.pool.WithTransaction(ctx, "user_touch_login", func(tx *gorm.DB) error {
		res := tx.Model(&UserModel{}).Where("id = ?", id).Update("last_login", at)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

func (s *UserStore) first(ctx context.Context, query string, args ...any) (*UserModel, error) {
	var u UserModel
	err := s.pool.DB().WithContext(ctx).Where(query, args...).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
