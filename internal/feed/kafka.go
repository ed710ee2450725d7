package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nest_dashboard/internal/config"
	"nest_dashboard/internal/logger"

	"github.com/segmentio/kafka-go"
)

const kafkaReadBackoff = time.Second

// messageReader is the part of *kafka.Reader the source needs.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource replays a compacted topic where each message is keyed by device
// key and carries the full snapshot; an empty value is a tombstone. Broker
// reachability, probed by dialing, is the connectivity signal.
type KafkaSource struct {
	brokers       []string
	topic         string
	probeInterval time.Duration
	log           *logger.Logger
	h             *hub

	newReader func() messageReader
	dial      func(ctx context.Context, broker string) error

	ctx        context.Context
	cancel     context.CancelFunc
	probeStart sync.Once
}

var _ Source = (*KafkaSource)(nil)

func NewKafkaSource(cfg config.KafkaConfig, log *logger.Logger) *KafkaSource {
	ctx, cancel := context.WithCancel(context.Background())
	s := &KafkaSource{
		brokers:       cfg.Brokers,
		topic:         cfg.Topic,
		probeInterval: cfg.ProbeInterval,
		log:           log,
		h:             newHub(false),
		ctx:           ctx,
		cancel:        cancel,
	}
	s.newReader = func() messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			Topic:       cfg.Topic,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     500 * time.Millisecond,
			StartOffset: kafka.FirstOffset,
		})
	}
	s.dial = func(ctx context.Context, broker string) error {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			return err
		}
		return conn.Close()
	}
	return s
}

func (s *KafkaSource) OnValue(key string, onData DataHandler, onErr ErrorHandler) Unsubscribe {
	ctx, cancel := context.WithCancel(s.ctx)
	id, _ := s.h.addValue(key, nil, onErr)
	go s.consume(ctx, s.newReader(), key, onData, onErr)
	s.startProbe()
	return once(func() {
		cancel()
		s.h.removeValue(key, id)
	})
}

func (s *KafkaSource) consume(ctx context.Context, r messageReader, key string, onData DataHandler, onErr ErrorHandler) {
	defer func() { _ = r.Close() }()
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if onErr != nil {
				onErr(fmt.Errorf("read topic %s: %w", s.topic, err))
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(kafkaReadBackoff):
			}
			continue
		}
		if string(msg.Key) != key {
			continue
		}
		snap, err := DecodeSnapshot(msg.Value)
		if err != nil {
			s.log.Warnw("kafka_payload_rejected", "topic", s.topic, "offset", msg.Offset, "err", err)
			if onErr != nil && ctx.Err() == nil {
				onErr(err)
			}
			continue
		}
		if ctx.Err() == nil && onData != nil {
			onData(snap)
		}
	}
}

// probe succeeds when any broker accepts a connection.
func (s *KafkaSource) probe(ctx context.Context) error {
	var lastErr error
	for _, b := range s.brokers {
		if err := s.dial(ctx, b); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no kafka brokers configured")
	}
	return fmt.Errorf("dial kafka: %w", lastErr)
}

func (s *KafkaSource) startProbe() {
	s.probeStart.Do(func() {
		go probeLoop(s.ctx, s.probeInterval, s.probe, func(err error) {
			s.h.setConnected(err == nil)
			if err != nil {
				s.log.Debugw("kafka_probe_failed", "err", err)
				// readers keep retrying silently; surface the outage to subscribers
				s.h.fail("", err)
			}
		})
	})
}

func (s *KafkaSource) OnConnected(fn ConnectivityHandler) Unsubscribe {
	id := s.h.addConn(fn)
	s.startProbe()
	return once(func() { s.h.removeConn(id) })
}

func (s *KafkaSource) Close() error {
	s.cancel()
	s.h.reset()
	return nil
}
