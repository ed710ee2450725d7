package feed

import (
	"sync"

	"nest_dashboard/internal/models"
)

// Memory is an in-process Source. The last value of every key is retained and
// replayed to new subscribers. It backs the device simulator and the tests.
type Memory struct {
	h *hub

	mu     sync.Mutex
	closed bool
}

var _ Source = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{h: newHub(true)}
}

// Publish replaces the value under key and notifies subscribers.
func (m *Memory) Publish(key string, snap *models.NestSnapshot) {
	if m.isClosed() {
		return
	}
	m.h.publish(key, snap)
}

// SetConnected drives the connectivity signal.
func (m *Memory) SetConnected(connected bool) {
	if m.isClosed() {
		return
	}
	m.h.setConnected(connected)
}

// Fail reports a transport error to the subscribers of key (all keys when empty).
func (m *Memory) Fail(key string, err error) {
	if m.isClosed() {
		return
	}
	m.h.fail(key, err)
}

func (m *Memory) OnValue(key string, onData DataHandler, onErr ErrorHandler) Unsubscribe {
	if m.isClosed() {
		if onErr != nil {
			onErr(ErrClosed)
		}
		return func() {}
	}
	id, _ := m.h.addValue(key, onData, onErr)
	return once(func() { m.h.removeValue(key, id) })
}

func (m *Memory) OnConnected(fn ConnectivityHandler) Unsubscribe {
	if m.isClosed() {
		return func() {}
	}
	id := m.h.addConn(fn)
	return once(func() { m.h.removeConn(id) })
}

// Subscribers returns the number of value handlers registered for key.
func (m *Memory) Subscribers(key string) int {
	m.h.mu.Lock()
	defer m.h.mu.Unlock()
	return len(m.h.values[key])
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.h.reset()
	return nil
}

func (m *Memory) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
