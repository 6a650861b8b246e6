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

// contentError maps a course service error onto the response envelope.
func contentError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, course.ErrTopicRequired):
		common.Fail(c, http.StatusBadRequest, 10002, "topic is required")
	case errors.Is(err, course.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40403, "course not found")
	case errors.Is(err, course.ErrEmptyOutline):
		common.Fail(c, http.StatusBadGateway, 50201, "model returned an empty outline")
	default:
		logger.FromContext(c.Request.Context()).Error(op+" failed", "error", err)
		common.Fail(c, http.StatusInternalServerError, 50003, "generation failed")
	}
}

func (h *Handler) GenerateLesson(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req course.LessonInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	l, err := h.Courses.GenerateLesson(c.Request.Context(), uid, req)
	if err != nil {
		contentError(c, "generate lesson", err)
		return
	}
	common.OK(c, gin.H{"lesson": l})
}

func (h *Handler) GenerateOutline(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req course.OutlineInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	co, err := h.Courses.GenerateOutline(c.Request.Context(), uid, req)
	if err != nil {
		contentError(c, "generate outline", err)
		return
	}
	common.OK(c, gin.H{"course": co, "lessons": strings.Split(co.Outline, "\n")})
}

func (h *Handler) GenerateCourse(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	var req course.OutlineInput
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	co, err := h.Courses.GenerateCourse(c.Request.Context(), uid, req)
	if err != nil {
		contentError(c, "generate course", err)
		return
	}
	common.OK(c, gin.H{"course": co})
}

func (h *Handler) GetCourse(c *gin.Context) {
	uid, ok := requireUser(c)
	if !ok {
		return
	}
	co, err := h.Courses.GetCourse(c.Request.Context(), uid, c.Param("course_id"))
	if err != nil {
		contentError(c, "get course", err)
		return
	}
	common.OK(c, gin.H{"course": co})
}
