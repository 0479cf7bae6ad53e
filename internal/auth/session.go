package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docchat-platform/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrInvalidSession = errors.New("invalid session")

// SessionClaims is the payload of the signed session cookie.
type SessionClaims struct {
	AccountID  string `json:"account_id"`
	Email      string `json:"email"`
	VectorDBID string `json:"vector_db_id"`
	jwt.RegisteredClaims
}

// SessionManager issues and validates the signed httponly session
// cookie. Sessions are JWTs whose JTI is mirrored in Redis so logout can
// revoke them before expiry.
type SessionManager struct {
	secret   []byte
	duration time.Duration
	rdb      *redis.Client
}

func NewSessionManager(cfg *config.Config, rdb *redis.Client) (*SessionManager, error) {
	if len(cfg.SessionSecret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 characters")
	}
	return &SessionManager{
		secret:   []byte(cfg.SessionSecret),
		duration: time.Duration(cfg.SessionDuration) * time.Second,
		rdb:      rdb,
	}, nil
}

// Issue creates a session token for an account that finished login.
func (m *SessionManager) Issue(ctx context.Context, accountID, email, vectorDBID string) (string, error) {
	now := time.Now()
	jti := uuid.NewString()

	claims := SessionClaims{
		AccountID:  accountID,
		Email:      email,
		VectorDBID: vectorDBID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "docchat-platform",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}

	// Store JTI in Redis for revocation capability
	if err := m.rdb.Set(ctx, "session:"+jti, accountID, m.duration).Err(); err != nil {
		return "", err
	}

	return signed, nil
}

// Validate parses the cookie value and checks it against the revocation
// store. Returns ErrInvalidSession for anything a caller should treat as
// "not signed in".
func (m *SessionManager) Validate(ctx context.Context, tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	exists, err := m.rdb.Exists(ctx, "session:"+claims.ID).Result()
	if err != nil || exists != 1 {
		return nil, ErrInvalidSession
	}

	return claims, nil
}

// Revoke drops the session from the revocation store (logout).
func (m *SessionManager) Revoke(ctx context.Context, jti string) error {
	return m.rdb.Del(ctx, "session:"+jti).Err()
}
