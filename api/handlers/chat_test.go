package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/agentlab/agent"
	"github.com/BaSui01/agentlab/types"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

type exchange struct {
	agentID, userID, message, response string
	tools                              []string
}

type fakeSessions struct {
	mu        sync.Mutex
	exchanges []exchange
	err       error
}

func (f *fakeSessions) AppendExchange(_ context.Context, agentID, userID, message, response string, toolsUsed []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, exchange{agentID, userID, message, response, toolsUsed})
	return "session-1", f.err
}

type chatObservation struct {
	agentType string
	ok        bool
}

type fakeObserver struct {
	mu  sync.Mutex
	obs []chatObservation
}

func (f *fakeObserver) RecordAgentChat(agentType string, ok bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.obs = append(f.obs, chatObservation{agentType, ok})
}

func newChatFixture(t *testing.T, opts ...ChatOption) (*ChatHandler, *agent.Info, *stubAgent) {
	t.Helper()
	m := newTestManager(t)
	info, a := createAgent(t, m, agent.CreateRequest{Name: "chatty", AgentType: "intelligent"})
	h := NewChatHandler(m, ChatConfig{MaxMessageLength: 50}, zap.NewNop(), opts...)
	return h, info, a
}

// readSSE 读取所有 data: 行
func readSSE(t *testing.T, body string) []string {
	t.Helper()
	var frames []string
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		if line, ok := strings.CutPrefix(sc.Text(), "data: "); ok {
			frames = append(frames, line)
		}
	}
	require.NoError(t, sc.Err())
	return frames
}

// =============================================================================
// 🧪 ChatHandler 测试
// =============================================================================

func TestChatHandler_Chat(t *testing.T) {
	sessions := &fakeSessions{}
	observer := &fakeObserver{}
	h, info, a := newChatFixture(t, WithSessionStore(sessions), WithChatObserver(observer))

	r := httptest.NewRequest(http.MethodPost, "/agents/"+info.ID+"/chat", strings.NewReader(`{"message":"  calc 2+2  "}`))
	r = r.WithContext(types.WithUserID(r.Context(), "user-1"))
	w := serve("POST /agents/{id}/chat", h.HandleChat, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ChatResponse{
		Response:  "echo: calc 2+2",
		AgentID:   info.ID,
		ToolsUsed: true,
		Tools:     []string{"calculator"},
	}, resp)
	assert.Equal(t, []string{"calc 2+2"}, a.history())

	require.Len(t, sessions.exchanges, 1)
	assert.Equal(t, exchange{info.ID, "user-1", "calc 2+2", "echo: calc 2+2", []string{"calculator"}}, sessions.exchanges[0])
	assert.Equal(t, []chatObservation{{"intelligent", true}}, observer.obs)
}

func TestChatHandler_ChatWithoutTools(t *testing.T) {
	h, info, _ := newChatFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/agents/"+info.ID+"/chat", strings.NewReader(`{"message":"hello"}`))
	w := serve("POST /agents/{id}/chat", h.HandleChat, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"echo: hello","agent_id":"`+info.ID+`","tools_used":false}`, w.Body.String())
}

func TestChatHandler_ChatSessionFailureIsNotFatal(t *testing.T) {
	sessions := &fakeSessions{err: errors.New("db down")}
	h, info, _ := newChatFixture(t, WithSessionStore(sessions))

	r := httptest.NewRequest(http.MethodPost, "/agents/"+info.ID+"/chat", strings.NewReader(`{"message":"hi"}`))
	w := serve("POST /agents/{id}/chat", h.HandleChat, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, sessions.exchanges, 1)
}

func TestChatHandler_ChatErrors(t *testing.T) {
	observer := &fakeObserver{}
	h, info, _ := newChatFixture(t, WithChatObserver(observer))

	tests := []struct {
		name       string
		agentID    string
		body       string
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"unknown agent", "missing", `{"message":"hi"}`, http.StatusNotFound, string(types.ErrAgentNotFound), ""},
		{"empty message", info.ID, `{"message":"   "}`, http.StatusUnprocessableEntity, string(types.ErrValidation), ""},
		{"too long", info.ID, `{"message":"` + strings.Repeat("x", 51) + `"}`, http.StatusUnprocessableEntity, string(types.ErrValidation), ""},
		{"bad json", info.ID, `{"message":`, http.StatusBadRequest, string(types.ErrInvalidRequest), ""},
		{"agent failure", info.ID, `{"message":"explode"}`, http.StatusInternalServerError, string(types.ErrInternalError), "Error chatting with agent: provider exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/agents/"+tt.agentID+"/chat", strings.NewReader(tt.body))
			w := serve("POST /agents/{id}/chat", h.HandleChat, r)
			assert.Equal(t, tt.wantStatus, w.Code)
			e := decodeError(t, w)
			assert.Equal(t, tt.wantCode, e.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, e.Message)
			}
		})
	}
	assert.Equal(t, []chatObservation{{"intelligent", false}}, observer.obs)
}

func TestChatHandler_Stream(t *testing.T) {
	h, info, _ := newChatFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/agents/"+info.ID+"/chat/stream", strings.NewReader(`{"message":"calc one two"}`))
	w := serve("POST /agents/{id}/chat/stream", h.HandleStream, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	assert.Equal(t, []string{
		`{"type":"start"}`,
		`{"type":"chunk","content":"echo:"}`,
		`{"type":"chunk","content":" calc"}`,
		`{"type":"chunk","content":" one"}`,
		`{"type":"chunk","content":" two"}`,
		`{"type":"end","tools_used":["calculator"]}`,
		`[DONE]`,
	}, readSSE(t, w.Body.String()))
}

func TestChatHandler_StreamAgentError(t *testing.T) {
	h, info, _ := newChatFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/agents/"+info.ID+"/chat/stream", strings.NewReader(`{"message":"explode"}`))
	w := serve("POST /agents/{id}/chat/stream", h.HandleStream, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{
		`{"type":"start"}`,
		`{"type":"error","message":"Error chatting with agent: provider exploded"}`,
		`[DONE]`,
	}, readSSE(t, w.Body.String()))
}

func TestChatHandler_StreamValidatesBeforeStreaming(t *testing.T) {
	h, info, _ := newChatFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/agents/"+info.ID+"/chat/stream", strings.NewReader(`{"message":""}`))
	w := serve("POST /agents/{id}/chat/stream", h.HandleStream, r)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEqual(t, "text/event-stream", w.Header().Get("Content-Type"))
}

func TestChatHandler_StreamHonoursCancellation(t *testing.T) {
	m := newTestManager(t)
	info, _ := createAgent(t, m, agent.CreateRequest{Name: "slow"})
	h := NewChatHandler(m, ChatConfig{MaxMessageLength: 100, ChunkDelay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodPost, "/agents/"+info.ID+"/chat/stream", strings.NewReader(`{"message":"a b c"}`)).WithContext(ctx)

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- serve("POST /agents/{id}/chat/stream", h.HandleStream, r) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case w := <-done:
		frames := readSSE(t, w.Body.String())
		assert.Equal(t, []string{`{"type":"start"}`, `{"type":"chunk","content":"echo:"}`}, frames)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after cancellation")
	}
}

func TestChatHandler_WebSocket(t *testing.T) {
	h, info, _ := newChatFixture(t)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /agents/{id}/chat/ws", h.HandleWebSocket)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/agents/" + info.ID + "/chat/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	readUntilEnd := func() []StreamEvent {
		var events []StreamEvent
		for {
			var ev StreamEvent
			require.NoError(t, wsjson.Read(ctx, conn, &ev))
			events = append(events, ev)
			if ev.Type == "end" || ev.Type == "error" {
				return events
			}
		}
	}

	require.NoError(t, wsjson.Write(ctx, conn, ChatRequest{Message: "calc now"}))
	assert.Equal(t, []StreamEvent{
		{Type: "start"},
		{Type: "chunk", Content: "echo:"},
		{Type: "chunk", Content: " calc"},
		{Type: "chunk", Content: " now"},
		{Type: "end", ToolsUsed: []string{"calculator"}},
	}, readUntilEnd())

	// 校验失败不断开连接
	require.NoError(t, wsjson.Write(ctx, conn, ChatRequest{Message: ""}))
	events := readUntilEnd()
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Type)

	require.NoError(t, wsjson.Write(ctx, conn, ChatRequest{Message: "again"}))
	events = readUntilEnd()
	assert.Equal(t, StreamEvent{Type: "end"}, events[len(events)-1])

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, "bye"))
}

func TestChatHandler_WebSocketUnknownAgent(t *testing.T) {
	h, _, _ := newChatFixture(t)
	r := httptest.NewRequest(http.MethodGet, "/agents/missing/chat/ws", nil)
	w := serve("GET /agents/{id}/chat/ws", h.HandleWebSocket, r)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatHandler_ClearHistory(t *testing.T) {
	h, info, a := newChatFixture(t)
	_, err := a.Chat(context.Background(), "remember me")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/agents/"+info.ID+"/clear-history", nil)
	w := serve("POST /agents/{id}/clear-history", h.HandleClearHistory, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Agent history cleared successfully"}`, w.Body.String())
	assert.Empty(t, a.history())
	assert.Equal(t, 1, a.cleared)
}
