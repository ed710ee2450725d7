package service

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"nest_dashboard/internal/config"
	"nest_dashboard/internal/logger"
	"nest_dashboard/internal/models"

	"github.com/google/uuid"
)

// ----------- Simulation constants -----------
const (
	BaseTempC       = 22.0   // starting temperature °C
	BaseHumidityPct = 55.0   // starting relative humidity %
	BasePressureHPa = 1013.0 // starting pressure hPa

	TempDriftC       = 0.4 // max °C change per tick
	HumidityDriftPct = 1.5 // max % change per tick
	PressureDriftHPa = 0.6 // max hPa change per tick

	MinTempC = -5.0
	MaxTempC = 40.0

	EntryChance = 0.30 // per tick while free
	LayChance   = 0.35 // per tick while occupied
	ExitChance  = 0.25 // per tick while occupied

	MaxLogEvents = 200 // oldest events are dropped beyond this

	defaultSimTick = 5 * time.Second
)

// Publisher is where the simulator writes; *feed.Memory satisfies it.
type Publisher interface {
	Publish(key string, snap *models.NestSnapshot)
	SetConnected(connected bool)
}

// randSource is the part of *rand.Rand the simulator needs.
type randSource interface {
	Float64() float64
	Intn(n int) int
}

// SimulatorService plays the nest device: it drifts the environment, moves
// hens in and out and lays eggs, publishing a new snapshot every tick.
type SimulatorService struct {
	pub        Publisher
	key        string
	subjects   []string
	startupLag time.Duration
	log        *logger.Logger

	rnd   randSource
	now   func() time.Time
	newID func() string

	last *models.NestSnapshot
}

var _ Simulator = (*SimulatorService)(nil)

// NewSimulatorService returns a simulator starting from a free nest.
func NewSimulatorService(pub Publisher, key string, cfg config.SimulatorConfig, log *logger.Logger) *SimulatorService {
	subjects := cfg.Subjects
	if len(subjects) == 0 {
		subjects = []string{"A1. Bianca"}
	}
	return &SimulatorService{
		pub:        pub,
		key:        key,
		subjects:   subjects,
		startupLag: cfg.StartupLag,
		log:        log,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		now:        time.Now,
		newID:      uuid.NewString,
		last: &models.NestSnapshot{
			Occupancy:  models.OccupancyFree,
			Statistics: models.Statistics{TotalEggs: cfg.InitialEggs},
			Environment: models.Environment{
				TemperatureC: BaseTempC,
				HumidityPct:  BaseHumidityPct,
				PressureHPa:  BasePressureHPa,
			},
		},
	}
}

// Run publishes after the startup lag and then once per tick until ctx is canceled.
func (s *SimulatorService) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = defaultSimTick
	}
	if s.startupLag > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.startupLag):
		}
	}

	s.pub.SetConnected(true)
	s.pub.Publish(s.key, s.last)
	s.log.Infow("simulator_started", "key", s.key, "tick", tick.String(), "subjects", len(s.subjects))

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Infow("simulator_stopped", "key", s.key)
			return
		case now := <-t.C:
			s.pub.Publish(s.key, s.step(now))
		}
	}
}

// step derives the next snapshot. The previous one is never mutated.
func (s *SimulatorService) step(now time.Time) *models.NestSnapshot {
	next := cloneSnapshot(s.last)
	s.driftEnvironment(&next.Environment)

	if !next.IsOccupied() {
		if s.chance(EntryChance) {
			guest := s.subjects[s.rnd.Intn(len(s.subjects))]
			next.Occupancy = models.OccupancyOccupied
			next.GuestLabel = guest
			s.appendEvent(next, models.EventEntry, guest, now)
		}
	} else {
		guest := next.GuestLabel
		if s.chance(LayChance) {
			next.Statistics.TotalEggs++
			s.appendEvent(next, models.EventEgg, guest, now)
		}
		if s.chance(ExitChance) {
			next.Occupancy = models.OccupancyFree
			next.GuestLabel = ""
			s.appendEvent(next, models.EventExit, guest, now)
		}
	}

	trimLog(next.EventLog, MaxLogEvents)
	s.last = next
	return next
}

func (s *SimulatorService) chance(p float64) bool {
	return s.rnd.Float64() < p
}

func (s *SimulatorService) drift(maxDelta float64) float64 {
	return (s.rnd.Float64()*2 - 1) * maxDelta
}

func (s *SimulatorService) driftEnvironment(env *models.Environment) {
	env.TemperatureC = round1(clamp(env.TemperatureC+s.drift(TempDriftC), MinTempC, MaxTempC))
	env.HumidityPct = round1(clamp(env.HumidityPct+s.drift(HumidityDriftPct), 0, 100))
	env.PressureHPa = round1(env.PressureHPa + s.drift(PressureDriftHPa))
}

func (s *SimulatorService) appendEvent(snap *models.NestSnapshot, kind models.EventKind, subject string, now time.Time) {
	if snap.EventLog == nil {
		snap.EventLog = make(map[string]models.HistoryEvent)
	}
	local := now.Local()
	snap.EventLog[s.newID()] = models.HistoryEvent{
		Kind:      kind,
		Subject:   subject,
		TimeOfDay: local.Format("15:04"),
		Timestamp: now.UnixMilli(),
	}
}

// cloneSnapshot copies the snapshot including its event log map.
func cloneSnapshot(in *models.NestSnapshot) *models.NestSnapshot {
	out := *in
	if in.EventLog != nil {
		out.EventLog = make(map[string]models.HistoryEvent, len(in.EventLog)+2)
		for k, v := range in.EventLog {
			out.EventLog[k] = v
		}
	}
	return &out
}

// trimLog drops the oldest events (by ts) until at most limit remain.
func trimLog(log map[string]models.HistoryEvent, limit int) {
	if len(log) <= limit {
		return
	}
	ids := make([]string, 0, len(log))
	for id := range log {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := log[ids[i]], log[ids[j]]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return ids[i] < ids[j]
	})
	for _, id := range ids[:len(ids)-limit] {
		delete(log, id)
	}
}

// helpers
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
