package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/coding-arena/internal/common"
	"github.com/suPer8Hu/coding-arena/internal/config"
	"github.com/suPer8Hu/coding-arena/internal/httpapi/handlers"
	"github.com/suPer8Hu/coding-arena/internal/httpapi/middleware"
)

// NewRouter wires the API. limiter may be nil to disable rate limiting.
func NewRouter(h *handlers.Handler, cfg config.Config, limiter middleware.Limiter) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/api/v1")

	// chat stream
	stream := []gin.HandlerFunc{middleware.OptionalAuth(cfg.JWTSecret)}
	if cfg.ChatStreamRequireAuth {
		stream = []gin.HandlerFunc{middleware.AuthRequired(cfg.JWTSecret)}
	}
	if limiter != nil {
		stream = append(stream, middleware.RateLimit(limiter, "chat"))
	}
	api.POST("/ai/chat-stream", append(stream, h.ChatStream)...)

	// content generation (JWT required)
	authGroup := api.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.POST("/ai/generate-lesson", h.GenerateLesson)
	authGroup.POST("/ai/generate-outline", h.GenerateOutline)
	authGroup.POST("/ai/generate-course", h.GenerateCourse)
	authGroup.POST("/ai/generate-course/async", h.GenerateCourseAsync)
	authGroup.GET("/ai/jobs/:job_id", h.GetJob)
	authGroup.GET("/courses/:course_id", h.GetCourse)
	return r
}
