package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"eventreg/internal/auth"
	"eventreg/internal/dto"
)

func LoggingMiddleware() gin.HandlerFunc {
	return func(c *ginext.Context) {
		start := time.Now()
		c.Next()

		ev := zlog.Logger.Info()
		if c.Writer.Status() >= 500 {
			ev = zlog.Logger.Error()
		}
		ev.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

func bearerToken(c *ginext.Context) string {
	h := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequireAdmin rejects requests without a valid, signed-in session token
// and stores the token claims under auth.ClaimsKey.
func RequireAdmin(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *ginext.Context) {
		raw := bearerToken(c)
		if raw == "" {
			dto.UnauthorizedError(c)
			c.Abort()
			return
		}
		claims, err := tokens.Parse(raw)
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("admin token rejected")
			dto.UnauthorizedError(c)
			c.Abort()
			return
		}
		c.Set(auth.ClaimsKey, claims)
		c.Next()
	}
}
