package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/agentlab/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupSQLite(t *testing.T) *PoolManager {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Name: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	pm, err := NewPoolManager(db, PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { pm.Close() })
	return pm
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpen_SQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "app.db")
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Name: path}, nil)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	require.NoError(t, sqlDB.Ping())
	assert.DirExists(t, filepath.Dir(path))
}

func TestAgentStore(t *testing.T) {
	pm := setupSQLite(t)
	store := NewAgentStore(pm)
	ctx := context.Background()

	require.NoError(t, store.SaveAgent(ctx, AgentRecord{ID: "a1", Name: "Math", AgentType: "math", Tools: []string{"add_numbers"}}))
	require.NoError(t, store.SaveAgent(ctx, AgentRecord{ID: "a2", Name: "Web", AgentType: "intelligent"}))
	// 再次保存同一 ID 为更新
	require.NoError(t, store.SaveAgent(ctx, AgentRecord{ID: "a1", Name: "Math v2", AgentType: "math", Tools: []string{"add_numbers"}}))

	agents, err := store.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "Math v2", agents[0].Name)
	assert.JSONEq(t, `["add_numbers"]`, agents[0].Tools)

	require.NoError(t, store.DeleteAgent(ctx, "a2"))
	agents, err = store.ListAgents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents, 1)
}

func TestChatSessionStore_AppendExchange(t *testing.T) {
	pm := setupSQLite(t)
	store := NewChatSessionStore(pm)
	ctx := context.Background()

	id1, err := store.AppendExchange(ctx, "agent-1", "", "what is 2+2", "4", []string{"add_numbers"})
	require.NoError(t, err)
	id2, err := store.AppendExchange(ctx, "agent-1", "", "thanks", "you're welcome", nil)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	other, err := store.AppendExchange(ctx, "agent-1", "user-9", "hi", "hello", nil)
	require.NoError(t, err)
	assert.NotEqual(t, id1, other)

	msgs, err := store.History(ctx, "agent-1", "anonymous")
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "what is 2+2", msgs[0].Content)
	assert.Equal(t, []string{"add_numbers"}, msgs[1].ToolsUsed)

	require.NoError(t, store.DeleteForAgent(ctx, "agent-1"))
	msgs, err = store.History(ctx, "agent-1", "")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestUserStore(t *testing.T) {
	pm := setupSQLite(t)
	store := NewUserStore(pm)
	ctx := context.Background()

	u := &UserModel{Username: "alice", Email: "alice@example.com", HashedPassword: "hash", IsActive: true}
	require.NoError(t, store.CreateUser(ctx, u))
	assert.Len(t, u.ID, 36)

	// 唯一索引
	dup := &UserModel{Username: "alice", Email: "other@example.com", HashedPassword: "hash", IsActive: true}
	assert.Error(t, store.CreateUser(ctx, dup))

	byName, err := store.UserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)
	byEmail, err := store.UserByLogin(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)
	assert.Nil(t, byEmail.LastLogin)

	_, err = store.UserByLogin(ctx, "bob")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = store.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	nameTaken, emailTaken, err := store.UsernameOrEmailTaken(ctx, "alice", "new@example.com")
	require.NoError(t, err)
	assert.True(t, nameTaken)
	assert.False(t, emailTaken)
	nameTaken, emailTaken, err = store.UsernameOrEmailTaken(ctx, "bob", "alice@example.com")
	require.NoError(t, err)
	assert.False(t, nameTaken)
	assert.True(t, emailTaken)

	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.TouchLogin(ctx, u.ID, at))
	got, err := store.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, at.Equal(*got.LastLogin))

	assert.ErrorIs(t, store.TouchLogin(ctx, "missing", at), ErrUserNotFound)
}
