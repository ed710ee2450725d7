package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// requestLogger logs each request with method, path, status, duration_ms and response size.
func (h *Handler) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	if h.log == nil {
		return
	}
	h.log.Debugw("request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration_ms", time.Since(start).Milliseconds(),
		"size", c.Writer.Size(),
	)
}
