package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/coding-arena/internal/common"
	"github.com/suPer8Hu/coding-arena/internal/logger"
)

// Recovery turns panics into 500s. http.ErrAbortHandler is passed on so
// net/http can drop the connection of a stream that failed mid-flight.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			logger.FromContext(c.Request.Context()).Error("panic recovered",
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
		}()
		c.Next()
	}
}
