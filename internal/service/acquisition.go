package service

import (
	"sync"
	"time"

	"nest_dashboard/internal/feed"
	"nest_dashboard/internal/logger"
	"nest_dashboard/internal/models"

	"github.com/google/uuid"
)

// Fallback reasons reported to the recorder and the logs.
const (
	FallbackDeadline       = "deadline"
	FallbackTransportError = "transport_error"
)

// AcquisitionRecorder observes controller transitions (metrics).
type AcquisitionRecorder interface {
	ModeChanged(mode models.AcquisitionMode)
	ConnectivityChanged(connected bool)
	SnapshotReceived()
	TransportError()
	FallbackActivated(reason string)
}

type nopRecorder struct{}

func (nopRecorder) ModeChanged(models.AcquisitionMode) {}
func (nopRecorder) ConnectivityChanged(bool)           {}
func (nopRecorder) SnapshotReceived()                  {}
func (nopRecorder) TransportError()                    {}
func (nopRecorder) FallbackActivated(string)           {}

// stopper is the part of *time.Timer the controller needs.
type stopper interface {
	Stop() bool
}

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// AcquisitionController reconciles the data subscription, the connectivity
// signal and the fallback deadline into one AcquisitionState.
//
// Every handler runs under mu, so transitions never interleave. Once Close has
// been called, late deliveries and a late deadline are dropped.
type AcquisitionController struct {
	source   feed.Source
	key      string
	deadline time.Duration
	fallback *models.NestSnapshot
	log      *logger.Logger
	rec      AcquisitionRecorder
	session  string

	afterFunc func(time.Duration, func()) stopper
	now       func() time.Time

	mu        sync.Mutex
	state     models.AcquisitionState
	started   bool
	alive     bool
	received  bool // any data-update seen, absent or not
	timer     stopper
	unsubData feed.Unsubscribe
	unsubConn feed.Unsubscribe
}

var _ Acquisition = (*AcquisitionController)(nil)

// NewAcquisitionController returns a controller in LOADING mode. A nil fallback
// uses the bundled demo snapshot; a nil recorder records nothing.
func NewAcquisitionController(src feed.Source, key string, deadline time.Duration, fallback *models.NestSnapshot, log *logger.Logger, rec AcquisitionRecorder) *AcquisitionController {
	if fallback == nil {
		fallback = MustFallbackSnapshot()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AcquisitionController{
		source:    src,
		key:       key,
		deadline:  deadline,
		fallback:  fallback,
		log:       log,
		rec:       rec,
		session:   uuid.NewString(),
		afterFunc: realAfterFunc,
		now:       time.Now,
		state:     models.AcquisitionState{Mode: models.ModeLoading},
		alive:     true,
	}
}

// Start arms the deadline and subscribes to the source. It does not block and
// is a no-op when called again or after Close.
func (c *AcquisitionController) Start() {
	c.mu.Lock()
	if c.started || !c.alive {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.state.UpdatedAt = c.now().UTC()
	c.timer = c.afterFunc(c.deadline, c.onDeadline)
	c.mu.Unlock()

	c.log.Infow("acquisition_started", "session", c.session, "key", c.key, "deadline", c.deadline.String())

	// sources may deliver synchronously from inside the subscribe calls,
	// so mu must not be held here
	unsubConn := c.source.OnConnected(c.onConnected)
	unsubData := c.source.OnValue(c.key, c.onData, c.onError)

	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		unsubData()
		unsubConn()
		return
	}
	c.unsubConn, c.unsubData = unsubConn, unsubData
	c.mu.Unlock()
}

// State returns a copy of the current state. The snapshot is shared and must not be mutated.
func (c *AcquisitionController) State() models.AcquisitionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session identifies this controller in the logs.
func (c *AcquisitionController) Session() string {
	return c.session
}

// Close cancels the deadline and detaches both subscriptions. It is safe to
// call at any time, more than once.
func (c *AcquisitionController) Close() {
	c.mu.Lock()
	if !c.alive {
		c.mu.Unlock()
		return
	}
	c.alive = false
	c.stopTimerLocked()
	unsubData, unsubConn := c.unsubData, c.unsubConn
	c.unsubData, c.unsubConn = nil, nil
	c.mu.Unlock()

	if unsubData != nil {
		unsubData()
	}
	if unsubConn != nil {
		unsubConn()
	}
	c.log.Infow("acquisition_closed", "session", c.session)
}

func (c *AcquisitionController) onData(snap *models.NestSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		return
	}
	c.received = true
	c.stopTimerLocked()
	if snap == nil {
		// absent value: keep whatever is shown
		c.log.Debugw("acquisition_empty_payload", "session", c.session, "key", c.key, "mode", string(c.state.Mode))
		return
	}

	prev := c.state.Mode
	c.state.Snapshot = snap
	c.state.Mode = models.ModeLive
	c.state.Revision++
	c.state.UpdatedAt = c.now().UTC()
	c.rec.SnapshotReceived()

	if prev != models.ModeLive {
		c.log.Infow("acquisition_live", "session", c.session, "from", string(prev), "revision", c.state.Revision)
		c.rec.ModeChanged(models.ModeLive)
	}
}

func (c *AcquisitionController) onError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		return
	}
	c.rec.TransportError()
	if c.received || c.state.Mode != models.ModeLoading {
		c.log.Warnw("feed_transport_error", "session", c.session, "mode", string(c.state.Mode), "err", err)
		return
	}
	c.log.Errorw("feed_transport_error", "session", c.session, "mode", string(c.state.Mode), "err", err)
	c.stopTimerLocked()
	c.fallbackLocked(FallbackTransportError)
}

func (c *AcquisitionController) onDeadline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer = nil
	if !c.alive || c.received || c.state.Mode != models.ModeLoading {
		return
	}
	c.fallbackLocked(FallbackDeadline)
}

func (c *AcquisitionController) onConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		return
	}
	if c.state.Connected != connected {
		c.log.Infow("feed_connectivity", "session", c.session, "connected", connected)
	}
	c.state.Connected = connected
	c.rec.ConnectivityChanged(connected)
}

func (c *AcquisitionController) fallbackLocked(reason string) {
	c.state.Snapshot = c.fallback
	c.state.Mode = models.ModeDemo
	c.state.Revision++
	c.state.UpdatedAt = c.now().UTC()
	c.log.Warnw("acquisition_fallback", "session", c.session, "key", c.key, "reason", reason)
	c.rec.FallbackActivated(reason)
	c.rec.ModeChanged(models.ModeDemo)
}

func (c *AcquisitionController) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
