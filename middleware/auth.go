package middleware

import (
	"context"

	"docchat-platform/internal/auth"
	"docchat-platform/utils"

	"github.com/gin-gonic/gin"
)

const (
	ContextAccountID  = "account_id"
	ContextEmail      = "email"
	ContextVectorDBID = "vector_db_id"
)

// SessionValidator checks a session cookie value. Satisfied by
// auth.SessionManager; an interface so handler tests can stub sessions.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*auth.SessionClaims, error)
}

// AuthMiddleware validates the session cookie and loads the account
// identity into the request context. Requests without a valid session
// get a 401 and never reach the handler.
func AuthMiddleware(sessions SessionValidator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			utils.RespondWithUnauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		claims, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired session")
			c.Abort()
			return
		}

		c.Set(ContextAccountID, claims.AccountID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextVectorDBID, claims.VectorDBID)
		c.Next()
	}
}

// GetAccountID returns the authenticated account's public id, empty when
// the request is unauthenticated.
func GetAccountID(c *gin.Context) string {
	if v, ok := c.Get(ContextAccountID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func GetEmail(c *gin.Context) string {
	if v, ok := c.Get(ContextEmail); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func GetVectorDBID(c *gin.Context) string {
	if v, ok := c.Get(ContextVectorDBID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
