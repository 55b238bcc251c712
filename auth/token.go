package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/agentlab/config"
	"github.com/golang-jwt/jwt/v5"
)

// Token 登录返回的访问令牌
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"` // 秒
}

// Claims 访问令牌的声明；Subject 为用户 ID
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// ErrInvalidToken 令牌无法解析、签名错误或已过期
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenManager 签发与校验访问令牌
type TokenManager struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager 按 AuthConfig 创建 TokenManager
func NewTokenManager(cfg config.AuthConfig) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("auth: secret key is required")
	}
	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("auth: unsupported jwt algorithm %q", cfg.Algorithm)
	}
	ttl := cfg.AccessTokenExpire
	if ttl <= 0 {
		ttl = config.DefaultAuthConfig().AccessTokenExpire
	}
	return &TokenManager{secret: []byte(cfg.SecretKey), method: method, ttl: ttl, now: time.Now}, nil
}

// Issue 为用户签发访问令牌
func (m *TokenManager) Issue(userID, username string) (Token, error) {
	now := m.now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(m.method, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, TokenType: "bearer", ExpiresIn: int(m.ttl.Seconds())}, nil
}

// Parse 校验令牌并返回声明；只接受配置的签名算法
func (m *TokenManager) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// BearerToken 从 Authorization 头中取出 Bearer 令牌
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
