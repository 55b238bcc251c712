package handlers

import (
	"net/http"

	"github.com/BaSui01/agentlab/auth"
	"github.com/BaSui01/agentlab/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🔐 认证接口 Handler
// =============================================================================

// LoginRequest 登录请求；username 也可以填邮箱
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	auth.Token
	User *auth.User `json:"user"`
}

// AuthHandler 注册、登录与当前用户
type AuthHandler struct {
	service *auth.Service
	logger  *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(service *auth.Service, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{service: service, logger: logger}
}

// HandleRegister 注册新用户
// @Summary 注册
// @Tags auth
// @Accept json
// @Produce json
// @Param request body auth.UserCreate true "用户信息"
// @Success 201 {object} Response{data=auth.User}
// @Failure 409 {object} Response
// @Failure 422 {object} Response
// @Router /auth/register [post]
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var in auth.UserCreate
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	writeSuccessStatus(w, http.StatusCreated, user)
}

// HandleLogin 校验口令并签发访问令牌
// @Summary 登录
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "凭据"
// @Success 200 {object} Response{data=LoginResponse}
// @Failure 401 {object} Response
// @Router /auth/login [post]
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if err := DecodeJSONBody(w, r, &in, h.logger); err != nil {
		return
	}
	if in.Username == "" || in.Password == "" {
		WriteError(w, types.NewValidationError("username and password are required"), h.logger)
		return
	}
	tok, user, err := h.service.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		HandleError(w, err, h.logger)
		return
	}
	WriteSuccess(w, LoginResponse{Token: tok, User: user})
}

// HandleMe 返回令牌对应的用户
// @Summary 当前用户
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=auth.User}
// @Failure 401 {object} Response
// @Router /auth/me [get]
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		WriteError(w, types.NewAuthenticationError("Not authenticated"), h.logger)
		return
	}
	user, err := h.service.CurrentUser(r.Context(), token)
	if err != nil {
		w.Header().Set("WWW-Authenticate", "Bearer")
		HandleError(w, err, h.logger)
		return
	}
	WriteSuccess(w, user)
}
