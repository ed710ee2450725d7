package service

import (
	"context"
	"sync"
	"time"

	"nest_dashboard/internal/models"
)

// UnknownGuestLabel is shown when the nest is occupied but the device sent no guest.
const UnknownGuestLabel = "Gallina ignota"

// MonitoringService builds the renderer view from the acquisition state.
// The production series is recomputed only when the snapshot revision changes.
type MonitoringService struct {
	acq Acquisition

	mu       sync.Mutex
	cacheRev uint64
	cacheOK  bool
	cached   models.ProductionSeries
}

func NewMonitoringService(acq Acquisition) *MonitoringService {
	return &MonitoringService{acq: acq}
}

// GetDashboard returns everything the renderer needs for one frame.
// Status is nil while the controller is still loading.
func (s *MonitoringService) GetDashboard(ctx context.Context) (models.Dashboard, error) {
	if err := ctx.Err(); err != nil {
		return models.Dashboard{}, err
	}
	st := s.acq.State()
	d := models.Dashboard{
		Mode:       st.Mode,
		Demo:       st.IsDemo(),
		Connected:  st.Connected,
		Revision:   st.Revision,
		Production: s.production(st),
		UpdatedAt:  toUTC(st.UpdatedAt),
	}
	if st.Snapshot != nil {
		d.Status = buildStatus(st.Snapshot)
	}
	return d, nil
}

// GetProduction returns the hourly series of the current snapshot.
func (s *MonitoringService) GetProduction(ctx context.Context) (models.ProductionSeries, error) {
	if err := ctx.Err(); err != nil {
		return models.ProductionSeries{}, err
	}
	return s.production(s.acq.State()), nil
}

func (s *MonitoringService) production(st models.AcquisitionState) models.ProductionSeries {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cacheOK && s.cacheRev == st.Revision {
		return s.cached
	}
	var log map[string]models.HistoryEvent
	if st.Snapshot != nil {
		log = st.Snapshot.EventLog
	}
	s.cached = AggregateProduction(log)
	s.cacheRev = st.Revision
	s.cacheOK = true
	return s.cached
}

func buildStatus(snap *models.NestSnapshot) *models.NestStatus {
	st := &models.NestStatus{
		Occupancy:    snap.Occupancy,
		Occupied:     snap.IsOccupied(),
		TotalEggs:    snap.Statistics.TotalEggs,
		TemperatureC: snap.Environment.TemperatureC,
		HumidityPct:  snap.Environment.HumidityPct,
		PressureHPa:  snap.Environment.PressureHPa,
	}
	if st.Occupied {
		st.GuestLabel = snap.GuestLabel
		if st.GuestLabel == "" {
			st.GuestLabel = UnknownGuestLabel
		}
	}
	return st
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
