package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/coding-arena/internal/chat"
	"github.com/suPer8Hu/coding-arena/internal/common"
	"github.com/suPer8Hu/coding-arena/internal/config"
	"github.com/suPer8Hu/coding-arena/internal/course"
	"github.com/suPer8Hu/coding-arena/internal/httpapi/middleware"
)

// JobPublisher enqueues course jobs for the worker.
type JobPublisher interface {
	PublishJob(ctx context.Context, jobID string) error
}

type Handler struct {
	Cfg     config.Config
	Relay   *chat.Relay
	Courses *course.Service
	Jobs    JobPublisher
}

func NewHandler(cfg config.Config, relay *chat.Relay, courses *course.Service, jobs JobPublisher) *Handler {
	return &Handler{Cfg: cfg, Relay: relay, Courses: courses, Jobs: jobs}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func requireUser(c *gin.Context) (uint64, bool) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
	}
	return uid, ok
}
