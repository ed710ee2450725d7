package handlers

import (
	"time"

	_ "nest_dashboard/docs"
	"nest_dashboard/internal/logger"
	"nest_dashboard/internal/metrics"
	"nest_dashboard/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services   *service.Service
	log        *logger.Logger
	metrics    *metrics.Metrics
	wsInterval time.Duration
}

// NewHandler constructs a new HTTP handler with dependencies. log and m may be nil.
func NewHandler(services *service.Service, log *logger.Logger, m *metrics.Metrics) *Handler {
	return &Handler{services: services, log: log, metrics: m, wsInterval: defaultInterval}
}

// SetStreamInterval sets the WebSocket push interval used when the client does not ask for one.
func (h *Handler) SetStreamInterval(d time.Duration) {
	if d > 0 && d <= maxInterval {
		h.wsInterval = d
	}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	if h.metrics != nil {
		router.Use(metrics.RequestMiddleware(h.metrics))
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Versioned API endpoints (read-only)
	h.registerAPIRoutes(router)

	// Live dashboard stream (HTTP upgrade), same port
	router.GET("/ws", h.streamDashboard)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerNestRoutes(api)
	}
}

func (h *Handler) registerNestRoutes(api *gin.RouterGroup) {
	nest := api.Group("/nest")
	{
		nest.GET("/state", h.getState)
		nest.GET("/production", h.getProduction)
		// Query example: ?kind=UOVO&subject=A1.%20Bianca&limit=20
		nest.GET("/events", h.getEvents)
	}
}
