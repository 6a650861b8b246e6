package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/coding-arena/internal/chat"
)

// ChatStream relays one chat turn as a chunked text/plain body.
//
// A stream that fails after the first fragment is aborted at the connection
// level, so the body ends without its terminating chunk and the client sees
// an unexpected EOF instead of a clean end.
func (h *Handler) ChatStream(c *gin.Context) {
	var req chat.StreamRequest
	// a body that does not carry a string message is answered like an
	// empty one; an empty body reaches the relay, which rejects it the same way
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": chat.ValidationMessage})
		return
	}

	out := h.Relay.Run(c.Request.Context(), req, &ginResponder{c: c})
	if out.State == chat.StateFailedDuringStream {
		panic(http.ErrAbortHandler)
	}
}
