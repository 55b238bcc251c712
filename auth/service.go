package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/internal/database"
	"github.com/BaSui01/agentlab/security"
	"github.com/BaSui01/agentlab/types"
	"go.uber.org/zap"
)

// UserStore 用户持久化
type UserStore interface {
	CreateUser(ctx context.Context, u *database.UserModel) error
	UserByID(ctx context.Context, id string) (*database.UserModel, error)
	UserByLogin(ctx context.Context, login string) (*database.UserModel, error)
	UsernameOrEmailTaken(ctx context.Context, username, email string) (bool, bool, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// User 对外返回的用户信息（不含口令散列）
type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name,omitempty"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// UserCreate 注册参数
type UserCreate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

func userFromModel(m *database.UserModel) *User {
	return &User{
		ID:        m.ID,
		Username:  m.Username,
		Email:     m.Email,
		FullName:  m.FullName,
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		LastLogin: m.LastLogin,
	}
}

const badCredentials = "Incorrect username or password"

// Service 用户注册与登录
type Service struct {
	store  UserStore
	tokens *TokenManager
	logger *zap.Logger
	now    func() time.Time
}

// NewService 创建 Service
func NewService(store UserStore, tokens *TokenManager, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		tokens: tokens,
		logger: logger.With(zap.String("component", "auth")),
		now:    time.Now,
	}
}

// Tokens 返回令牌管理器
func (s *Service) Tokens() *TokenManager { return s.tokens }

// Register 校验并创建用户；用户名或邮箱重复时返回 409
func (s *Service) Register(ctx context.Context, in UserCreate) (*User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := security.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := security.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := security.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	fullName := security.SanitizeInput(in.FullName, 0)
	if err := security.ValidateLength("Full name", fullName, 0, 100); err != nil {
		return nil, err
	}

	nameTaken, emailTaken, err := s.store.UsernameOrEmailTaken(ctx, username, email)
	if err != nil {
		return nil, types.NewInternalError("Failed to register user").WithCause(err)
	}
	if nameTaken {
		return nil, types.NewConflictError("Username already registered")
	}
	if emailTaken {
		return nil, types.NewConflictError("Email already registered")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		if isPasswordTooLong(err) {
			return nil, types.NewValidationError("Password must be at most 72 bytes long")
		}
		return nil, types.NewInternalError("Failed to register user").WithCause(err)
	}

	m := &database.UserModel{
		Username:       username,
		Email:          email,
		FullName:       fullName,
		HashedPassword: hash,
		IsActive:       true,
	}
	if err := s.store.CreateUser(ctx, m); err != nil {
		return nil, types.NewInternalError("Failed to register user").WithCause(err)
	}
	s.logger.Info("user registered", zap.String("user_id", m.ID), zap.String("username", username))
	return userFromModel(m), nil
}

// Authenticate 校验用户名（或邮箱）与口令，成功后记录登录时间
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	m, err := s.store.UserByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, types.NewAuthenticationError(badCredentials)
	}
	if err != nil {
		return nil, types.NewInternalError("Failed to authenticate").WithCause(err)
	}
	if !VerifyPassword(m.HashedPassword, password) {
		s.logger.Debug("password mismatch", zap.String("user_id", m.ID))
		return nil, types.NewAuthenticationError(badCredentials)
	}
	if !m.IsActive {
		return nil, types.NewInvalidRequestError("Inactive user")
	}

	now := s.now().UTC()
	if err := s.store.TouchLogin(ctx, m.ID, now); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", m.ID), zap.Error(err))
	} else {
		m.LastLogin = &now
	}
	return userFromModel(m), nil
}

// Login 认证并签发访问令牌
func (s *Service) Login(ctx context.Context, login, password string) (Token, *User, error) {
	u, err := s.Authenticate(ctx, login, password)
	if err != nil {
		return Token{}, nil, err
	}
	tok, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return Token{}, nil, types.NewInternalError("Failed to issue token").WithCause(err)
	}
	return tok, u, nil
}

// CurrentUser 解析令牌并返回对应的活跃用户
func (s *Service) CurrentUser(ctx context.Context, token string) (*User, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, types.NewAuthenticationError("Could not validate credentials").WithCause(err)
	}
	m, err := s.store.UserByID(ctx, claims.Subject)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, types.NewAuthenticationError("Could not validate credentials")
	}
	if err != nil {
		return nil, types.NewInternalError("Failed to load user").WithCause(err)
	}
	if !m.IsActive {
		return nil, types.NewInvalidRequestError("Inactive user")
	}
	return userFromModel(m), nil
}
