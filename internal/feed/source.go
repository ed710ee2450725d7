// Package feed holds the acquisition-channel clients the dashboard subscribes to.
// Every client is explicitly constructed and disposable; nothing is shared globally.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"nest_dashboard/internal/models"
)

// DataHandler receives a decoded snapshot. A nil snapshot means the key holds no value.
type DataHandler func(snap *models.NestSnapshot)

// ErrorHandler receives transport failures (unreachable channel, malformed payload).
type ErrorHandler func(err error)

// ConnectivityHandler receives the transport-level connectivity signal.
type ConnectivityHandler func(connected bool)

// Unsubscribe detaches a handler. It is safe to call more than once.
type Unsubscribe func()

// Source is a push-based publish/subscribe channel for one or more device keys.
// Handlers may be invoked from transport goroutines; subscribers serialize as needed.
type Source interface {
	// OnValue subscribes to the value stored under key.
	OnValue(key string, onData DataHandler, onErr ErrorHandler) Unsubscribe
	// OnConnected subscribes to connectivity changes. Implementations deliver the
	// current value once as soon as it is known.
	OnConnected(fn ConnectivityHandler) Unsubscribe
	// Close releases the transport.
	Close() error
}

var (
	ErrMalformedPayload = errors.New("malformed nest payload")
	ErrClosed           = errors.New("feed source closed")
)

// DecodeSnapshot parses a device payload. Empty bodies and JSON null decode to nil.
func DecodeSnapshot(raw []byte) (*models.NestSnapshot, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var snap models.NestSnapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &snap, nil
}

// EncodeSnapshot is the inverse of DecodeSnapshot; nil encodes to JSON null.
func EncodeSnapshot(snap *models.NestSnapshot) ([]byte, error) {
	if snap == nil {
		return []byte("null"), nil
	}
	return json.Marshal(snap)
}

// once wraps fn so that only the first call runs it.
func once(fn func()) Unsubscribe {
	var o sync.Once
	return func() { o.Do(fn) }
}
