package agent

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/agentlab/internal/database"
	"github.com/BaSui01/agentlab/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Info 对外展示的 Agent 元数据
type Info struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	AgentType   Type      `json:"agent_type"`
	Tools       []string  `json:"tools"`
	OwnerID     string    `json:"owner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record 一个存活的 Agent
type Record struct {
	Info  Info
	Agent Agent
}

// CreateRequest 创建 Agent 的参数
type CreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	APIKey      string `json:"api_key,omitempty"`
	AgentType   string `json:"agent_type"`
	OwnerID     string `json:"-"`
}

// Recorder 持久化 Agent 创建/删除（database.AgentStore 实现了该接口）
type Recorder interface {
	SaveAgent(ctx context.Context, rec database.AgentRecord) error
	DeleteAgent(ctx context.Context, id string) error
}

// ManagerOption 配置 Manager
type ManagerOption func(*Manager)

// WithRecorder 设置审计记录器
func WithRecorder(r Recorder) ManagerOption {
	return func(m *Manager) { m.recorder = r }
}

// WithCountGauge 在 Agent 数量变化时回调（例如更新 Prometheus gauge）
func WithCountGauge(fn func(n int)) ManagerOption {
	return func(m *Manager) { m.gauge = fn }
}

// Manager 进程内的 Agent 表；进程退出即销毁
type Manager struct {
	factory  *Factory
	recorder Recorder
	gauge    func(int)
	now      func() time.Time

	mu      sync.RWMutex
	records map[string]*Record

	logger *zap.Logger
}

// NewManager 创建 Manager
func NewManager(factory *Factory, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		factory: factory,
		now:     time.Now,
		records: make(map[string]*Record),
		logger:  logger.With(zap.String("component", "agent_manager")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create 创建 Agent；未知类型按 math 处理
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Info, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, types.NewInvalidRequestError("name is required")
	}

	id := uuid.NewString()
	t := ParseType(req.AgentType)
	a, err := m.factory.Build(id, name, t, req.APIKey)
	if err != nil {
		m.logger.Warn("agent creation failed", zap.String("type", string(t)), zap.Error(err))
		return nil, types.NewError(types.ErrInvalidRequest, "Failed to create agent: "+err.Error()).
			WithHTTPStatus(400).WithCause(err)
	}

	rec := &Record{
		Info: Info{
			ID:          id,
			Name:        name,
			Description: req.Description,
			AgentType:   t,
			OwnerID:     req.OwnerID,
			CreatedAt:   m.now().UTC(),
		},
		Agent: a,
	}

	m.mu.Lock()
	m.records[id] = rec
	n := len(m.records)
	m.mu.Unlock()

	m.logger.Info("agent created", zap.String("id", id), zap.String("type", string(t)), zap.String("owner", req.OwnerID))
	m.report(n)

	info := infoOf(rec)
	if m.recorder != nil {
		err := m.recorder.SaveAgent(ctx, database.AgentRecord{
			ID:          info.ID,
			Name:        info.Name,
			Description: info.Description,
			AgentType:   string(info.AgentType),
			Tools:       info.Tools,
			OwnerID:     info.OwnerID,
		})
		if err != nil {
			m.logger.Warn("agent record not saved", zap.String("id", id), zap.Error(err))
		}
	}
	return &info, nil
}

// Get 返回 Record；不存在时返回 AGENT_NOT_FOUND
func (m *Manager) Get(id string) (*Record, error) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, NotFound(id)
	}
	return rec, nil
}

// Info 返回 Agent 元数据（工具列表实时读取）
func (m *Manager) Info(id string) (*Info, error) {
	rec, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	info := infoOf(rec)
	return &info, nil
}

// List 按创建时间返回所有 Agent
func (m *Manager) List() []Info {
	m.mu.RLock()
	recs := make([]*Record, 0, len(m.records))
	for _, r := range m.records {
		recs = append(recs, r)
	}
	m.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].Info.CreatedAt.Equal(recs[j].Info.CreatedAt) {
			return recs[i].Info.CreatedAt.Before(recs[j].Info.CreatedAt)
		}
		return recs[i].Info.ID < recs[j].Info.ID
	})
	out := make([]Info, 0, len(recs))
	for _, r := range recs {
		out = append(out, infoOf(r))
	}
	return out
}

// Delete 删除 Agent
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	_, ok := m.records[id]
	if ok {
		delete(m.records, id)
	}
	n := len(m.records)
	m.mu.Unlock()

	if !ok {
		return NotFound(id)
	}
	m.logger.Info("agent deleted", zap.String("id", id))
	m.report(n)

	if m.recorder != nil {
		if err := m.recorder.DeleteAgent(ctx, id); err != nil {
			m.logger.Warn("agent record not deleted", zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

// Count 返回存活 Agent 数量
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Manager) report(n int) {
	if m.gauge != nil {
		m.gauge(n)
	}
}

func infoOf(rec *Record) Info {
	info := rec.Info
	tools := rec.Agent.Tools()
	info.Tools = make([]string, 0, len(tools))
	for _, t := range tools {
		info.Tools = append(info.Tools, t.Name)
	}
	return info
}
