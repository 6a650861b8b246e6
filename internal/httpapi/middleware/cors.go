package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS echoes allowed origins and permits credentialed requests. A "*" entry
// allows any origin while still echoing it, since credentials forbid a
// literal wildcard.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	if wildcard || len(origins) == 0 {
		cfg.AllowOriginFunc = func(origin string) bool { return wildcard }
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
