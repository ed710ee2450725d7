package feed

import (
	"sync"

	"nest_dashboard/internal/models"
)

type valueSub struct {
	id     uint64
	onData DataHandler
	onErr  ErrorHandler
}

// hub is the subscriber registry shared by the transports. Deliveries are
// serialized by deliverMu so a handler never observes two notifications out of
// order; the registry itself is guarded by mu so handlers may unsubscribe freely.
type hub struct {
	deliverMu sync.Mutex

	mu        sync.Mutex
	nextID    uint64
	values    map[string][]valueSub
	conns     map[uint64]ConnectivityHandler
	connected *bool // nil until the transport reports

	retain bool
	last   map[string]*models.NestSnapshot
}

func newHub(retain bool) *hub {
	return &hub{
		values: make(map[string][]valueSub),
		conns:  make(map[uint64]ConnectivityHandler),
		retain: retain,
		last:   make(map[string]*models.NestSnapshot),
	}
}

// addValue registers a value handler and reports whether it is the first one for key.
func (h *hub) addValue(key string, onData DataHandler, onErr ErrorHandler) (uint64, bool) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	first := len(h.values[key]) == 0
	h.values[key] = append(h.values[key], valueSub{id: id, onData: onData, onErr: onErr})
	snap, ok := h.last[key]
	replay := h.retain && ok
	h.mu.Unlock()

	if replay && onData != nil {
		onData(snap)
	}
	return id, first
}

// removeValue drops a value handler and reports whether key has no handlers left.
func (h *hub) removeValue(key string, id uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.values[key]
	for i, s := range subs {
		if s.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(h.values, key)
		return true
	}
	h.values[key] = subs
	return false
}

func (h *hub) keys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.values))
	for k := range h.values {
		out = append(out, k)
	}
	return out
}

func (h *hub) publish(key string, snap *models.NestSnapshot) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	if h.retain {
		h.last[key] = snap
	}
	subs := append([]valueSub(nil), h.values[key]...)
	h.mu.Unlock()

	for _, s := range subs {
		if s.onData != nil {
			s.onData(snap)
		}
	}
}

// fail reports err to the handlers of key, or to every value handler when key is empty.
func (h *hub) fail(key string, err error) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	var subs []valueSub
	if key == "" {
		for _, list := range h.values {
			subs = append(subs, list...)
		}
	} else {
		subs = append(subs, h.values[key]...)
	}
	h.mu.Unlock()

	for _, s := range subs {
		if s.onErr != nil {
			s.onErr(err)
		}
	}
}

func (h *hub) addConn(fn ConnectivityHandler) uint64 {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.conns[id] = fn
	var current *bool
	if h.connected != nil {
		v := *h.connected
		current = &v
	}
	h.mu.Unlock()

	if current != nil {
		fn(*current)
	}
	return id
}

func (h *hub) removeConn(id uint64) {
	h.mu.Lock()
	delete(h.conns, id)
	h.mu.Unlock()
}

// setConnected records the connectivity signal and notifies on change.
func (h *hub) setConnected(v bool) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	if h.connected != nil && *h.connected == v {
		h.mu.Unlock()
		return
	}
	h.connected = &v
	fns := make([]ConnectivityHandler, 0, len(h.conns))
	for _, fn := range h.conns {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (h *hub) isConnected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected != nil && *h.connected
}

// reset drops every handler.
func (h *hub) reset() {
	h.mu.Lock()
	h.values = make(map[string][]valueSub)
	h.conns = make(map[uint64]ConnectivityHandler)
	h.mu.Unlock()
}
