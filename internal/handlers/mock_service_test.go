package handlers

import (
	"context"
	"sync"

	"nest_dashboard/internal/models"
	"nest_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockMonitoring struct {
	mu         sync.Mutex
	dashboard  models.Dashboard
	production models.ProductionSeries
	err        error
	calls      int
}

func (m *mockMonitoring) GetDashboard(ctx context.Context) (models.Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.dashboard, m.err
}

func (m *mockMonitoring) GetProduction(ctx context.Context) (models.ProductionSeries, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.production, m.err
}

type mockEventLog struct {
	resp       []models.ActivityEntry
	err        error
	lastFilter service.LogFilter
	calls      int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.ActivityEntry, error) {
	m.calls++
	m.lastFilter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, nil)
	return h.InitRoutes()
}
