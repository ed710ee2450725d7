package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"nest_dashboard/internal/feed"
	"nest_dashboard/internal/logger"
	"nest_dashboard/internal/models"
)

const testKey = "nido_01"

// ---- Test doubles ----

// manualTimer replaces time.AfterFunc; fire runs the callback on demand.
type manualTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
	armed   int
}

func (m *manualTimer) afterFunc(d time.Duration, f func()) stopper {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d, m.f = d, f
	m.armed++
	return m
}

func (m *manualTimer) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := !m.stopped
	m.stopped = true
	return was
}

// fire runs the callback even when stopped, like a timer that already fired
// while Stop was racing with it.
func (m *manualTimer) fire() {
	m.mu.Lock()
	f := m.f
	m.mu.Unlock()
	if f != nil {
		f()
	}
}

func (m *manualTimer) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

// recorderStub counts recorder calls.
type recorderStub struct {
	mu        sync.Mutex
	modes     []models.AcquisitionMode
	conns     []bool
	snapshots int
	errors    int
	fallbacks []string
}

func (r *recorderStub) ModeChanged(m models.AcquisitionMode) {
	r.mu.Lock()
	r.modes = append(r.modes, m)
	r.mu.Unlock()
}
func (r *recorderStub) ConnectivityChanged(c bool) {
	r.mu.Lock()
	r.conns = append(r.conns, c)
	r.mu.Unlock()
}
func (r *recorderStub) SnapshotReceived() {
	r.mu.Lock()
	r.snapshots++
	r.mu.Unlock()
}
func (r *recorderStub) TransportError() {
	r.mu.Lock()
	r.errors++
	r.mu.Unlock()
}
func (r *recorderStub) FallbackActivated(reason string) {
	r.mu.Lock()
	r.fallbacks = append(r.fallbacks, reason)
	r.mu.Unlock()
}

// countingSource wraps a Memory source and counts live subscriptions.
type countingSource struct {
	*feed.Memory
	mu    sync.Mutex
	conns int
}

func (s *countingSource) OnConnected(fn feed.ConnectivityHandler) feed.Unsubscribe {
	s.mu.Lock()
	s.conns++
	s.mu.Unlock()
	unsub := s.Memory.OnConnected(fn)
	return func() {
		s.mu.Lock()
		s.conns--
		s.mu.Unlock()
		unsub()
	}
}

func (s *countingSource) connSubscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

type fixture struct {
	src   *feed.Memory
	timer *manualTimer
	rec   *recorderStub
	ctrl  *AcquisitionController
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	src := feed.NewMemory()
	timer := &manualTimer{}
	rec := &recorderStub{}
	ctrl := NewAcquisitionController(src, testKey, 2500*time.Millisecond, nil, logger.Nop(), rec)
	ctrl.afterFunc = timer.afterFunc
	t.Cleanup(ctrl.Close)
	return &fixture{src: src, timer: timer, rec: rec, ctrl: ctrl}
}

func liveSnapshot(eggs int) *models.NestSnapshot {
	return &models.NestSnapshot{
		Occupancy:  models.OccupancyFree,
		Statistics: models.Statistics{TotalEggs: eggs},
	}
}

// ---- Tests ----

func TestAcquisition_StartsLoading(t *testing.T) {
	f := newFixture(t)
	st := f.ctrl.State()
	if st.Mode != models.ModeLoading || st.Snapshot != nil || st.Connected || st.Revision != 0 {
		t.Fatalf("unexpected initial state %+v", st)
	}

	f.ctrl.Start()
	if f.timer.d != 2500*time.Millisecond {
		t.Fatalf("deadline: want 2.5s, got %v", f.timer.d)
	}
	if f.src.Subscribers(testKey) != 1 {
		t.Fatalf("expected one data subscription")
	}
	if f.ctrl.State().Mode != models.ModeLoading {
		t.Fatalf("start must not resolve the mode")
	}
}

func TestAcquisition_StartTwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Start()
	f.ctrl.Start()
	if f.timer.armed != 1 {
		t.Fatalf("deadline armed %d times", f.timer.armed)
	}
	if f.src.Subscribers(testKey) != 1 {
		t.Fatalf("want 1 subscription, got %d", f.src.Subscribers(testKey))
	}
}

func TestAcquisition_DataBeforeDeadlineGoesLive(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Start()

	// connectivity flips do not affect the outcome
	f.src.SetConnected(true)
	f.src.SetConnected(false)
	snap := liveSnapshot(3)
	f.src.Publish(testKey, snap)
	f.src.SetConnected(true)

	st := f.ctrl.State()
	if st.Mode != models.ModeLive || st.Snapshot != snap {
		t.Fatalf("want LIVE with published snapshot, got %+v", st)
	}
	if !st.Connected {
		t.Fatalf("expected connected")
	}
	if !f.timer.isStopped() {
		t.Fatalf("deadline should be cancelled by data")
	}

	// a late deadline callback must not override LIVE
	f.timer.fire()
	if got := f.ctrl.State(); got.Mode != models.ModeLive || got.Snapshot != snap {
		t.Fatalf("deadline overrode live data: %+v", got)
	}
}

func TestAcquisition_DeadlineFallsBackToDemo(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Start()
	f.timer.fire()

	st := f.ctrl.State()
	if st.Mode != models.ModeDemo || !st.IsDemo() {
		t.Fatalf("want DEMO, got %s", st.Mode)
	}
	want := MustFallbackSnapshot()
	if st.Snapshot == nil || st.Snapshot.GuestLabel != want.GuestLabel ||
		st.Snapshot.Statistics.TotalEggs != want.Statistics.TotalEggs ||
		len(st.Snapshot.EventLog) != len(want.EventLog) {
		t.Fatalf("expected the fallback snapshot, got %+v", st.Snapshot)
	}
	if len(f.rec.fallbacks) != 1 || f.rec.fallbacks[0] != FallbackDeadline {
		t.Fatalf("unexpected fallbacks %v", f.rec.fallbacks)
	}
}

func TestAcquisition_LateDataLeavesDemo(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Start()
	f.timer.fire()

	snap := liveSnapshot(9)
	f.src.Publish(testKey, snap)

	st := f.ctrl.State()
	if st.Mode != models.ModeLive || st.Snapshot != snap {
		t.Fatalf("want LIVE with late payload, got %+v", st)
	}
	if want := []models.AcquisitionMode{models.ModeDemo, models.ModeLive}; !equalModes(f.rec.modes, want) {
		t.Fatalf("mode history: want %v, got %v", want, f.rec.modes)
	}
}

func TestAcquisition_FurtherDataReplacesSnapshot(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Start()

	first, second := liveSnapshot(1), liveSnapshot(2)
	f.src.Publish(testKey, first)
	rev := f.ctrl.State().Revision
	f.src.Publish(testKey, second)

	st := f.ctrl.State()
	if st.Snapshot != second || st.Revision != rev+1 {
		t.Fatalf("want second snapshot at revision %d, got %+v", rev+1, st)
	}
	if f.rec.snapshots != 2 {
		t.Fatalf("want 2 recorded snapshots, got %d", f.rec.snapshots)
	}
}

func TestAcquisition_AbsentPayloadIsIgnored(t *testing.T) {
	t.Run("while loading it cancels the deadline", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Start()
		f.src.Publish(testKey, nil)

		if st := f.ctrl.State(); st.Mode != models.ModeLoading || st.Snapshot != nil {
			t.Fatalf("absent payload must not resolve, got %+v", st)
		}
		if !f.timer.isStopped() {
			t.Fatalf("absent payload should cancel the deadline")
		}
		f.timer.fire()
		if st := f.ctrl.State(); st.Mode != models.ModeLoading || st.Snapshot != nil {
			t.Fatalf("want LOADING kept after a late deadline, got %+v", st)
		}
		if len(f.rec.fallbacks) != 0 {
			t.Fatalf("want no fallback, got %v", f.rec.fallbacks)
		}
	})

	t.Run("while loading a later transport error is only logged", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Start()
		f.src.Publish(testKey, nil)
		f.src.Fail(testKey, errors.New("permission denied"))

		if st := f.ctrl.State(); st.Mode != models.ModeLoading || st.Snapshot != nil {
			t.Fatalf("want LOADING kept after transport error, got %+v", st)
		}
		if f.rec.errors != 1 || len(f.rec.fallbacks) != 0 {
			t.Fatalf("want 1 error and no fallback, got %d and %v", f.rec.errors, f.rec.fallbacks)
		}
	})

	t.Run("then real data still goes live", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Start()
		f.src.Publish(testKey, nil)
		snap := liveSnapshot(3)
		f.src.Publish(testKey, snap)

		if st := f.ctrl.State(); st.Mode != models.ModeLive || st.Snapshot != snap {
			t.Fatalf("want LIVE, got %+v", st)
		}
	})

	t.Run("while live the last snapshot is kept", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Start()
		snap := liveSnapshot(4)
		f.src.Publish(testKey, snap)
		rev := f.ctrl.State().Revision
		f.src.Publish(testKey, nil)

		st := f.ctrl.State()
		if st.Mode != models.ModeLive || st.Snapshot != snap || st.Revision != rev {
			t.Fatalf("absent payload changed state: %+v", st)
		}
	})
}

func TestAcquisition_RetainedValueDeliveredDuringStart(t *testing.T) {
	src := feed.NewMemory()
	snap := liveSnapshot(5)
	src.Publish(testKey, snap)
	src.SetConnected(true)

	timer := &manualTimer{}
	ctrl := NewAcquisitionController(src, testKey, time.Second, nil, logger.Nop(), nil)
	ctrl.afterFunc = timer.afterFunc
	defer ctrl.Close()
	ctrl.Start()

	st := ctrl.State()
	if st.Mode != models.ModeLive || st.Snapshot != snap || !st.Connected {
		t.Fatalf("want LIVE and connected from retained values, got %+v", st)
	}
	if !timer.isStopped() {
		t.Fatalf("deadline should be cancelled")
	}
}

func TestAcquisition_TransportError(t *testing.T) {
	t.Run("during loading falls back immediately", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Start()
		f.src.Fail(testKey, errors.New("permission denied"))

		if st := f.ctrl.State(); st.Mode != models.ModeDemo || st.Snapshot == nil {
			t.Fatalf("want DEMO after transport error, got %+v", st)
		}
		if !f.timer.isStopped() {
			t.Fatalf("deadline should be cancelled")
		}
		if len(f.rec.fallbacks) != 1 || f.rec.fallbacks[0] != FallbackTransportError {
			t.Fatalf("unexpected fallbacks %v", f.rec.fallbacks)
		}
	})

	t.Run("after data only logs", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Start()
		snap := liveSnapshot(2)
		f.src.Publish(testKey, snap)
		f.src.Fail(testKey, errors.New("connection reset"))

		if st := f.ctrl.State(); st.Mode != models.ModeLive || st.Snapshot != snap {
			t.Fatalf("error after data changed state: %+v", st)
		}
		if f.rec.errors != 1 {
			t.Fatalf("want 1 recorded error, got %d", f.rec.errors)
		}
	})

	t.Run("in demo only logs", func(t *testing.T) {
		f := newFixture(t)
		f.ctrl.Start()
		f.timer.fire()
		rev := f.ctrl.State().Revision
		f.src.Fail(testKey, errors.New("still down"))

		if st := f.ctrl.State(); st.Mode != models.ModeDemo || st.Revision != rev {
			t.Fatalf("error in demo changed state: %+v", st)
		}
		if len(f.rec.fallbacks) != 1 {
			t.Fatalf("fallback applied twice")
		}
	})
}

func TestAcquisition_ConnectivityOnlyTouchesConnected(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Start()

	f.src.SetConnected(true)
	st := f.ctrl.State()
	if !st.Connected || st.Mode != models.ModeLoading || st.Snapshot != nil || st.Revision != 0 {
		t.Fatalf("connectivity changed more than the flag: %+v", st)
	}
	f.src.SetConnected(false)
	if f.ctrl.State().Connected {
		t.Fatalf("expected disconnected")
	}
}

func TestAcquisition_CloseStopsEverything(t *testing.T) {
	src := &countingSource{Memory: feed.NewMemory()}
	timer := &manualTimer{}
	ctrl := NewAcquisitionController(src, testKey, time.Second, nil, logger.Nop(), nil)
	ctrl.afterFunc = timer.afterFunc
	ctrl.Start()

	if src.connSubscribers() != 1 || src.Subscribers(testKey) != 1 {
		t.Fatalf("expected both subscriptions before close")
	}
	ctrl.Close()
	ctrl.Close()

	if src.connSubscribers() != 0 || src.Subscribers(testKey) != 0 {
		t.Fatalf("subscriptions left after close: conn=%d data=%d", src.connSubscribers(), src.Subscribers(testKey))
	}
	if !timer.isStopped() {
		t.Fatalf("deadline not cancelled")
	}

	before := ctrl.State()
	timer.fire()
	ctrl.onData(liveSnapshot(1))
	ctrl.onConnected(true)
	ctrl.onError(errors.New("late"))
	if after := ctrl.State(); after != before {
		t.Fatalf("state mutated after close: before %+v after %+v", before, after)
	}
}

func TestAcquisition_CloseBeforeStart(t *testing.T) {
	f := newFixture(t)
	f.ctrl.Close()
	f.ctrl.Start()

	if f.timer.armed != 0 {
		t.Fatalf("start after close armed the deadline")
	}
	if f.src.Subscribers(testKey) != 0 {
		t.Fatalf("start after close subscribed")
	}
	if st := f.ctrl.State(); st.Mode != models.ModeLoading {
		t.Fatalf("want LOADING, got %s", st.Mode)
	}
}

func TestAcquisition_ConcurrentDeliveriesEndInValidMode(t *testing.T) {
	for i := 0; i < 20; i++ {
		src := feed.NewMemory()
		timer := &manualTimer{}
		ctrl := NewAcquisitionController(src, testKey, time.Second, nil, logger.Nop(), nil)
		ctrl.afterFunc = timer.afterFunc
		ctrl.Start()

		snap := liveSnapshot(i)
		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); timer.fire() }()
		go func() { defer wg.Done(); src.SetConnected(i%2 == 0) }()
		go func() { defer wg.Done(); src.Publish(testKey, snap) }()
		wg.Wait()

		// data always wins in the end: either before the deadline or as late data
		st := ctrl.State()
		if st.Mode != models.ModeLive || st.Snapshot != snap {
			t.Fatalf("iteration %d: want LIVE with payload, got %s", i, st.Mode)
		}
		ctrl.Close()
	}
}

func TestAcquisition_ExplicitFallbackIsUsed(t *testing.T) {
	fallback := &models.NestSnapshot{GuestLabel: "demo"}
	timer := &manualTimer{}
	ctrl := NewAcquisitionController(feed.NewMemory(), testKey, time.Second, fallback, logger.Nop(), nil)
	ctrl.afterFunc = timer.afterFunc
	defer ctrl.Close()
	ctrl.Start()
	timer.fire()

	if ctrl.State().Snapshot != fallback {
		t.Fatalf("expected the provided fallback")
	}
}

func TestAcquisition_RealTimerFires(t *testing.T) {
	ctrl := NewAcquisitionController(feed.NewMemory(), testKey, 10*time.Millisecond, nil, logger.Nop(), nil)
	defer ctrl.Close()
	ctrl.Start()

	deadline := time.Now().Add(2 * time.Second)
	for ctrl.State().Mode != models.ModeDemo {
		if time.Now().After(deadline) {
			t.Fatalf("deadline never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func equalModes(a, b []models.AcquisitionMode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
