package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentlab/config"
	"github.com/BaSui01/agentlab/internal/metrics"
)

// newTestServer 组装不含数据库与 Redis 的 handler
func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Auth.SecretKey = "test-secret-key-for-server-tests"
	cfg.Content.SeedBlog = true

	s := NewServer(cfg, zap.NewNop(), nil, nil, nil)
	reg := prometheus.NewRegistry()
	s.collector = metrics.NewCollectorWithRegistry("srvtest", reg, reg, zap.NewNop())
	require.NoError(t, s.initHandler())
	t.Cleanup(s.rateLimiterCancel)
	return s
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 0, body["agents_count"])
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/version", http.StatusOK},
		{http.MethodGet, "/agents", http.StatusOK},
		{http.MethodGet, "/api/blog/posts", http.StatusOK},
		{http.MethodGet, "/agents/missing", http.StatusNotFound},
		// 没有数据库时认证路由不注册
		{http.MethodPost, "/auth/login", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	s := newTestServer(t)

	r := httptest.NewRequest(http.MethodOptions, "/agents", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	r.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAgentTypeNames(t *testing.T) {
	assert.Equal(t, []string{"math", "intelligent", "autonomous", "researcher"}, agentTypeNames())
}
