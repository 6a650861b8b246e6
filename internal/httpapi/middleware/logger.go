package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/coding-arena/internal/logger"
)

// AccessLog writes one structured line per request, including requests
// whose stream was aborted.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			logger.FromContext(c.Request.Context()).Info("http request",
				"method", c.Request.Method,
				"path", c.FullPath(),
				"status", c.Writer.Status(),
				"bytes", c.Writer.Size(),
				"client_ip", c.ClientIP(),
				"latency", time.Since(start).String(),
			)
		}()
		c.Next()
	}
}
