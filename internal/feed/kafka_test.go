package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nest_dashboard/internal/logger"
	"nest_dashboard/internal/models"

	"github.com/segmentio/kafka-go"
)

// scriptedReader replays messages and then blocks until the context ends.
type scriptedReader struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *scriptedReader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func newTestKafkaSource(reader messageReader, dialErr error) *KafkaSource {
	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaSource{
		brokers:       []string{"broker-1:9092"},
		topic:         "nest.snapshots",
		probeInterval: time.Hour,
		log:           logger.Nop(),
		h:             newHub(false),
		newReader:     func() messageReader { return reader },
		dial:          func(context.Context, string) error { return dialErr },
		ctx:           ctx,
		cancel:        cancel,
	}
}

func msg(key, value string, offset int64) kafka.Message {
	return kafka.Message{Key: []byte(key), Value: []byte(value), Offset: offset}
}

func TestKafkaSource_FiltersByKey(t *testing.T) {
	reader := &scriptedReader{msgs: []kafka.Message{
		msg("nido_02", `{"stato":"OCCUPATO"}`, 0),
		msg("nido_01", `{"stato":"LIBERO","statistiche":{"uova_totali":5}}`, 1),
		msg("nido_01", ``, 2),
	}}
	s := newTestKafkaSource(reader, nil)
	defer s.Close()

	snaps := make(chan *models.NestSnapshot, 4)
	s.OnValue("nido_01", func(snap *models.NestSnapshot) { snaps <- snap }, nil)

	first := receiveSnap(t, snaps)
	if first == nil || first.Statistics.TotalEggs != 5 {
		t.Fatalf("unexpected first delivery %+v", first)
	}
	if tomb := receiveSnap(t, snaps); tomb != nil {
		t.Fatalf("tombstone should be delivered as nil, got %+v", tomb)
	}
	select {
	case s := <-snaps:
		t.Fatalf("unexpected extra delivery %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestKafkaSource_MalformedValueReportsError(t *testing.T) {
	reader := &scriptedReader{msgs: []kafka.Message{msg("nido_01", `[1,2`, 0)}}
	s := newTestKafkaSource(reader, nil)
	defer s.Close()

	errs := make(chan error, 4)
	s.OnValue("nido_01", func(*models.NestSnapshot) {
		t.Error("malformed value delivered as data")
	}, func(err error) { errs <- err })

	select {
	case err := <-errs:
		if !errors.Is(err, ErrMalformedPayload) {
			t.Fatalf("expected ErrMalformedPayload, got %v", err)
		}
	case <-time.After(waitFor):
		t.Fatal("malformed value was not reported")
	}
}

func TestKafkaSource_ProbeFailureReachesSubscribers(t *testing.T) {
	s := newTestKafkaSource(&scriptedReader{}, errors.New("connection refused"))
	defer s.Close()

	conns := make(chan bool, 2)
	errs := make(chan error, 2)
	s.OnValue("nido_01", nil, func(err error) { errs <- err })
	s.OnConnected(func(c bool) { conns <- c })

	select {
	case c := <-conns:
		if c {
			t.Fatal("expected disconnected")
		}
	case <-time.After(waitFor):
		t.Fatal("no connectivity report")
	}
	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("expected error")
		}
	case <-time.After(waitFor):
		t.Fatal("probe failure was not reported")
	}
}

func TestKafkaSource_ProbeSuccessConnects(t *testing.T) {
	s := newTestKafkaSource(&scriptedReader{}, nil)
	defer s.Close()

	conns := make(chan bool, 2)
	s.OnConnected(func(c bool) { conns <- c })

	select {
	case c := <-conns:
		if !c {
			t.Fatal("expected connected")
		}
	case <-time.After(waitFor):
		t.Fatal("no connectivity report")
	}
}

func TestKafkaSource_UnsubscribeClosesReader(t *testing.T) {
	reader := &scriptedReader{}
	s := newTestKafkaSource(reader, nil)
	defer s.Close()

	unsub := s.OnValue("nido_01", func(*models.NestSnapshot) {}, nil)
	unsub()

	deadline := time.Now().Add(waitFor)
	for !reader.isClosed() {
		if time.Now().After(deadline) {
			t.Fatal("reader was not closed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestKafkaSource_ProbeWithoutBrokers(t *testing.T) {
	s := newTestKafkaSource(&scriptedReader{}, nil)
	s.brokers = nil
	if err := s.probe(context.Background()); err == nil {
		t.Fatal("expected error with no brokers")
	}
}

func receiveSnap(t *testing.T, ch <-chan *models.NestSnapshot) *models.NestSnapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}
