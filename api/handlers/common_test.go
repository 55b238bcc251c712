package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BaSui01/agentlab/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.JSONEq(t, `{"message":"hello"}`, w.Body.String())
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set("X-Request-ID", "req-42")

	WriteSuccess(w, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, map[string]any{"key": "value"}, resp.Data)
	assert.Nil(t, resp.Error)
	assert.False(t, resp.Timestamp.IsZero())
	assert.Equal(t, "req-42", resp.RequestID)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         *types.Error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name:        "invalid request",
			err:         types.NewInvalidRequestError("name is required"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    "INVALID_REQUEST",
			wantMessage: "name is required",
		},
		{
			name:        "validation",
			err:         types.NewValidationError("Message is too long"),
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    "VALIDATION_ERROR",
			wantMessage: "Message is too long",
		},
		{
			name:        "agent not found",
			err:         types.NewError(types.ErrAgentNotFound, "Agent not found"),
			wantStatus:  http.StatusNotFound,
			wantCode:    string(types.ErrAgentNotFound),
			wantMessage: "Agent not found",
		},
		{
			name:        "explicit status wins",
			err:         types.NewError(types.ErrToolValidation, "bad tool").WithHTTPStatus(http.StatusTeapot),
			wantStatus:  http.StatusTeapot,
			wantCode:    string(types.ErrToolValidation),
			wantMessage: "bad tool",
		},
		{
			name:        "empty message uses default",
			err:         types.NewInternalError(""),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    string(types.ErrInternalError),
			wantMessage: DefaultMessage(http.StatusInternalServerError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err, zap.NewNop())

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Data)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMessage, resp.Error.Message)
		})
	}
}

func TestHandleError(t *testing.T) {
	w := httptest.NewRecorder()
	HandleError(w, types.NewConflictError("Tag already exists"), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	HandleError(w, errors.New("disk on fire"), nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// 内部错误细节不外泄
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestDefaultMessage(t *testing.T) {
	assert.Equal(t, "Too many requests. Please try again later.", DefaultMessage(http.StatusTooManyRequests))
	assert.Equal(t, http.StatusText(http.StatusTeapot), DefaultMessage(http.StatusTeapot))
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrToolValidation, http.StatusBadRequest},
		{types.ErrValidation, http.StatusUnprocessableEntity},
		{types.ErrAuthentication, http.StatusUnauthorized},
		{types.ErrUnauthorized, http.StatusUnauthorized},
		{types.ErrForbidden, http.StatusForbidden},
		{types.ErrToolNotFound, http.StatusNotFound},
		{types.ErrConflict, http.StatusConflict},
		{types.ErrRateLimited, http.StatusTooManyRequests},
		{types.ErrQuotaExceeded, http.StatusPaymentRequired},
		{types.ErrUpstreamTimeout, http.StatusGatewayTimeout},
		{types.ErrUpstreamError, http.StatusBadGateway},
		{types.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{types.ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapErrorCodeToHTTPStatus(tt.code), tt.code)
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	tests := []struct {
		name       string
		body       string
		wantErr    bool
		wantStatus int
	}{
		{name: "valid", body: `{"name":"x","value":1}`},
		{name: "empty", body: ``, wantErr: true, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"name":`, wantErr: true, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"name":"x","extra":true}`, wantErr: true, wantStatus: http.StatusBadRequest},
		{name: "trailing object", body: `{"name":"x"}{"name":"y"}`, wantErr: true, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst payload
			err := DecodeJSONBody(w, r, &dst, zap.NewNop())
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, payload{Name: "x", Value: 1}, dst)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestDecodeJSONBody_MaxBodySize(t *testing.T) {
	body := `{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))

	var dst map[string]string
	require.Error(t, DecodeJSONBody(w, r, &dst, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestValidateContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"text/plain", false},
		{"", false},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		if tt.contentType != "" {
			r.Header.Set("Content-Type", tt.contentType)
		}
		assert.Equal(t, tt.want, ValidateContentType(w, r, nil), tt.contentType)
		if !tt.want {
			assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		}
	}
}

func TestPathInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.SetPathValue("id", "12")
	n, ok := pathInt(r, "id")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	for _, raw := range []string{"", "0", "-3", "abc"} {
		r.SetPathValue("id", raw)
		_, ok := pathInt(r, "id")
		assert.False(t, ok, raw)
	}
}
