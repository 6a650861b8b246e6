package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/coding-arena/internal/common"
	"github.com/suPer8Hu/coding-arena/internal/course"
	"github.com/suPer8Hu/coding-arena/internal/logger"
)

func (h *Handler) GenerateCourseAsync(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req course.OutlineInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "job queue unavailable")
		return
	}

	// read idempotency key
	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}

	log := logger.FromContext(c.Request.Context()).With("user_id", uid)

	j, err := h.Courses.NewJob(uid, req, idempoKey)
	if err != nil {
		if errors.Is(err, course.ErrTopicRequired) {
			common.Fail(c, http.StatusBadRequest, 10002, "topic is required")
			return
		}
		log.Error("new job failed", "error", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	j, created, err := h.Courses.CreateJob(c.Request.Context(), j)
	if err != nil {
		log.Error("create job failed", "error", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// Enqueue only when a new job was created
	if created {
		if err := h.Jobs.PublishJob(c.Request.Context(), j.ID); err != nil {
			log.Error("publish job failed", "job_id", j.ID, "error", err)
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": j.ID})
}

func (h *Handler) GetJob(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.Courses.GetJob(c.Request.Context(), uid, jobID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		logger.FromContext(c.Request.Context()).Error("get job failed", "job_id", jobID, "error", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{"job": j})
}
