package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"collegepay/internal/identity"
)

const sessionKey = "session"

// Sessions resolves access tokens.
type Sessions interface {
	CurrentSession(ctx context.Context, token string) (*identity.Session, error)
}

// RequireSession enforces a valid, non-revoked bearer token.
func RequireSession(sessions Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		s, err := sessions.CurrentSession(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// RequireAdmin lets administrators through. Everyone else is pointed at the
// admin login path: 401 when anonymous, 403 when signed in without admin rights.
func RequireAdmin(sessions Sessions, guard *Guard, loginPath string) gin.HandlerFunc {
	deny := func(c *gin.Context, status int, msg string) {
		c.Header("Location", loginPath)
		c.AbortWithStatusJSON(status, gin.H{"error": msg, "redirect": loginPath})
	}
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			deny(c, http.StatusUnauthorized, "admin sign in required")
			return
		}
		s, err := sessions.CurrentSession(c.Request.Context(), tokenStr)
		if err != nil {
			deny(c, http.StatusUnauthorized, "admin sign in required")
			return
		}
		if !guard.IsAdmin(c.Request.Context(), s) {
			deny(c, http.StatusForbidden, "admin access required")
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// SessionFrom returns the session stored by RequireSession or RequireAdmin.
func SessionFrom(c *gin.Context) *identity.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*identity.Session)
	return s
}

func bearer(c *gin.Context) (string, bool) {
	authz := c.GetHeader("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return "", false
	}
	tokenStr := strings.TrimSpace(authz[len("bearer "):])
	return tokenStr, tokenStr != ""
}
