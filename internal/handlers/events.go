package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"nest_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errLimitInvalid = "invalid 'limit'; use a non-negative integer"
	errListEvents   = "failed to load events"
)

// @Summary      Activity feed
// @Description  Latest device events, newest first. Unknown kinds are included.
// @Tags         nest
// @Produce      json
// @Param        kind     query   string  false  "Event kind (case-insensitive)"  Enums(UOVO,Entrata,Uscita)
// @Param        subject  query   string  false  "Subject label"  example(A1. Bianca)
// @Param        limit    query   int     false  "Max entries, 0 for the 500 cap"  example(20)
// @Success      200  {object}  map[string]interface{}  "count, events"
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/nest/events [get]
func (h *Handler) getEvents(c *gin.Context) {
	f := service.LogFilter{
		Kind:    strings.TrimSpace(c.Query("kind")),
		Subject: strings.TrimSpace(c.Query("subject")),
	}
	if qs := c.Query("limit"); qs != "" {
		n, err := strconv.Atoi(qs)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
			return
		}
		f.Limit = n
	}

	events, err := h.services.EventLog.List(c.Request.Context(), f)
	if err != nil {
		if errors.Is(err, service.ErrInvalidLimit) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errListEvents, "events_list_failed", err,
			"kind", f.Kind, "subject", f.Subject, "limit", f.Limit)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(events),
		"events": events,
	})
}
