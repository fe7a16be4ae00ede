package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CookieName is the browser cookie carrying the signed session token.
const CookieName = "flier_session"

const issuer = "flierbuilder"

// SessionService 负责签发与校验会话令牌。
type SessionService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// SessionClaims 表示会话令牌中的业务字段。
type SessionClaims struct {
	SessionID string `json:"sid"`
	Editor    bool   `json:"editor"`
	jwt.RegisteredClaims
}

// NewSessionService 使用 HMAC 密钥构造服务实例。
func NewSessionService(secret []byte, ttl time.Duration) (*SessionService, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &SessionService{secret: secret, ttl: ttl, now: time.Now}, nil
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Issue 为会话签发令牌；editor 表示已通过口令校验。
func (s *SessionService) Issue(sessionID string, editor bool) (string, error) {
	if sessionID == "" {
		return "", errors.New("session id is required")
	}
	now := s.now()
	claims := SessionClaims{
		SessionID: sessionID,
		Editor:    editor,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sessionID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate 解析并验证会话令牌。
func (s *SessionService) Validate(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// TTL 暴露令牌有效期。
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}
