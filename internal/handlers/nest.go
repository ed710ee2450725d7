package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errGetState      = "failed to load state"
	errGetProduction = "failed to load production"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Dashboard state
// @Description  Acquisition mode (LOADING, LIVE, DEMO), connectivity, nest status, environment and hourly production.
// @Tags         nest
// @Produce      json
// @Success      200  {object}  models.Dashboard
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/nest/state [get]
func (h *Handler) getState(c *gin.Context) {
	d, err := h.services.Monitoring.GetDashboard(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      Hourly production
// @Description  Eggs per subject for each hour from 06:00 to 20:00.
// @Tags         nest
// @Produce      json
// @Success      200  {object}  models.ProductionSeries
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/nest/production [get]
func (h *Handler) getProduction(c *gin.Context) {
	p, err := h.services.Monitoring.GetProduction(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetProduction, "get_production_failed", err)
		return
	}
	c.JSON(http.StatusOK, p)
}
