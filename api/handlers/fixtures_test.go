package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/llm"
	"github.com/BaSui01/agentlab/llm/tools"
	"github.com/BaSui01/agentlab/testutil/mocks"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 🧪 测试用 Agent
// =============================================================================

// stubAgent 回显消息；含 "calc" 时报告使用了 calculator，消息为 "explode" 时返回错误
type stubAgent struct {
	cfg agent.Config

	mu       sync.Mutex
	tools    map[string]agent.ToolInfo
	funcs    map[string]tools.ToolFunc
	messages []string
	cleared  int
}

func newStubAgent(deps agent.Deps) (agent.Agent, error) {
	return &stubAgent{
		cfg: deps.Config,
		tools: map[string]agent.ToolInfo{
			"calculator": {Name: "calculator", Description: "Evaluates arithmetic", Parameters: json.RawMessage(`{"type":"object"}`)},
		},
		funcs: map[string]tools.ToolFunc{},
	}, nil
}

func (a *stubAgent) Chat(_ context.Context, message string) (*agent.Reply, error) {
	a.mu.Lock()
	a.messages = append(a.messages, message)
	a.mu.Unlock()

	if message == "explode" {
		return nil, errors.New("provider exploded")
	}
	reply := &agent.Reply{Content: "echo: " + message}
	if strings.Contains(message, "calc") {
		reply.ToolsUsed = []string{"calculator"}
	}
	return reply, nil
}

func (a *stubAgent) ClearHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = nil
	a.cleared++
}

func (a *stubAgent) Tools() []agent.ToolInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]agent.ToolInfo, 0, len(a.tools))
	for _, t := range a.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (a *stubAgent) RegisterTool(name string, fn tools.ToolFunc, meta tools.ToolMetadata) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.tools[name]; ok {
		return fmt.Errorf("tool %s already registered", name)
	}
	a.tools[name] = agent.ToolInfo{Name: name, Description: meta.Schema.Description, Parameters: meta.Schema.Parameters}
	a.funcs[name] = fn
	return nil
}

func (a *stubAgent) Type() agent.Type { return a.cfg.Type }

func (a *stubAgent) WouldUseTools(message string) bool { return strings.Contains(message, "calc") }

func (a *stubAgent) history() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages...)
}

type fixedCounter struct{}

func (fixedCounter) CountTokens(text string) int { return len(text) / 4 }
func (fixedCounter) Name() string                { return "fixed" }

func newTestManager(t *testing.T) *agent.Manager {
	t.Helper()
	reg := agent.NewRegistry(nil)
	for _, typ := range agent.Types() {
		reg.Register(typ, newStubAgent)
	}
	f := agent.NewFactory(reg, agent.FactoryOptions{
		ChatProvider: func(string) (llm.Provider, error) { return mocks.NewMockProvider(), nil },
		Counter:      fixedCounter{},
	}, nil)
	return agent.NewManager(f, nil)
}

func createAgent(t *testing.T, m *agent.Manager, req agent.CreateRequest) (*agent.Info, *stubAgent) {
	t.Helper()
	info, err := m.Create(context.Background(), req)
	require.NoError(t, err)
	rec, err := m.Get(info.ID)
	require.NoError(t, err)
	return info, rec.Agent.(*stubAgent)
}

// serve 通过 ServeMux 路由请求，使 r.PathValue 可用
func serve(pattern string, h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func jsonBody(t *testing.T, v any) *strings.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return strings.NewReader(string(data))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *ErrorInfo {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}
