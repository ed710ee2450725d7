package service

import (
	"context"
	"time"

	"nest_dashboard/internal/models"
)

// Acquisition exposes the reconciled feed state.
type Acquisition interface {
	State() models.AcquisitionState
}

// Monitoring exposes the renderer view (status, environment, production).
type Monitoring interface {
	GetDashboard(ctx context.Context) (models.Dashboard, error)
	GetProduction(ctx context.Context) (models.ProductionSeries, error)
}

// EventLog exposes the activity feed with filtering.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.ActivityEntry, error)
}

// Simulator runs the background loop that plays the nest device.
// Stop via context cancellation in main() for graceful shutdown.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates the read services consumed by the handlers.
type Service struct {
	Monitoring
	EventLog
}

// NewService wires the read services onto one acquisition state.
func NewService(acq Acquisition) *Service {
	return &Service{
		Monitoring: NewMonitoringService(acq),
		EventLog:   NewEventLogService(acq),
	}
}
