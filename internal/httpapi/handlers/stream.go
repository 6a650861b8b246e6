package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/coding-arena/internal/chat"
)

var errStreamingUnsupported = errors.New("response writer cannot flush")

// ginResponder adapts a gin response to the relay's two-phase contract.
type ginResponder struct {
	c *gin.Context
}

func (r *ginResponder) Reject(status int, body any) {
	r.c.AbortWithStatusJSON(status, body)
}

func (r *ginResponder) Commit() (chat.Stream, error) {
	flusher, ok := r.c.Writer.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := r.c.Writer.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no") // helpful if behind nginx

	r.c.Status(http.StatusOK)
	r.c.Writer.WriteHeaderNow()
	flusher.Flush()
	return &ginStream{w: r.c.Writer, flusher: flusher}, nil
}

type ginStream struct {
	w       gin.ResponseWriter
	flusher http.Flusher
}

func (s *ginStream) Write(fragment string) error {
	if _, err := s.w.WriteString(fragment); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
