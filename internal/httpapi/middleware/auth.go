package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/coding-arena/internal/auth"
	"github.com/suPer8Hu/coding-arena/internal/common"
)

const UserIDKey = "user_id"

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			common.Fail(c, http.StatusUnauthorized, 40100, "missing token")
			return
		}
		uid, err := auth.ParseToken(secret, raw)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40101, "invalid token")
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// OptionalAuth records the identity when a valid token is present and lets
// anonymous requests through.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			if uid, err := auth.ParseToken(secret, raw); err == nil {
				c.Set(UserIDKey, uid)
			}
		}
		c.Next()
	}
}

func UserIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
