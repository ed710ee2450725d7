package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nest_dashboard/internal/config"
	"nest_dashboard/internal/logger"

	"github.com/go-redis/redis/v8"
)

const (
	redisRetryInterval    = time.Second
	redisMaxRetryInterval = 30 * time.Second
)

// RedisSource reads snapshots stored as JSON under <channel_prefix><key> and
// follows updates published on the pub/sub channel of the same name.
// Connectivity is a periodic PING.
type RedisSource struct {
	client       *redis.Client
	log          *logger.Logger
	prefix       string
	pingInterval time.Duration
	retryMin     time.Duration
	retryMax     time.Duration
	h            *hub

	ctx       context.Context
	cancel    context.CancelFunc
	pingStart sync.Once
}

var _ Source = (*RedisSource)(nil)

func NewRedisSource(cfg config.RedisConfig, log *logger.Logger) *RedisSource {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisSource(client, cfg.ChannelPrefix, cfg.PingInterval, log)
}

func newRedisSource(client *redis.Client, prefix string, pingInterval time.Duration, log *logger.Logger) *RedisSource {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisSource{
		client:       client,
		log:          log,
		prefix:       prefix,
		pingInterval: pingInterval,
		retryMin:     redisRetryInterval,
		retryMax:     redisMaxRetryInterval,
		h:            newHub(false),
		ctx:          ctx,
		cancel:       cancel,
	}
}

func (s *RedisSource) name(key string) string {
	return s.prefix + key
}

func (s *RedisSource) OnValue(key string, onData DataHandler, onErr ErrorHandler) Unsubscribe {
	ctx, cancel := context.WithCancel(s.ctx)
	go s.watch(ctx, key, onData, onErr)
	return once(cancel)
}

// watch keeps a subscription for key alive until ctx ends. Failed attempts are
// reported and retried with a doubling delay.
func (s *RedisSource) watch(ctx context.Context, key string, onData DataHandler, onErr ErrorHandler) {
	name := s.name(key)
	report := func(err error) {
		if ctx.Err() == nil && onErr != nil {
			onErr(err)
		}
	}
	deliver := func(raw []byte) {
		snap, err := DecodeSnapshot(raw)
		if err != nil {
			s.log.Warnw("redis_payload_rejected", "channel", name, "err", err)
			report(err)
			return
		}
		if ctx.Err() == nil && onData != nil {
			onData(snap)
		}
	}

	delay := s.retryMin
	for {
		err := s.follow(ctx, name, deliver, report)
		if ctx.Err() != nil || err == nil {
			return
		}
		s.log.Warnw("redis_subscribe_failed", "channel", name, "retry_in", delay.String(), "err", err)
		report(err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if delay *= 2; delay > s.retryMax {
			delay = s.retryMax
		}
	}
}

// follow subscribes first and reads the stored value second, so no publish in
// between is lost. It returns an error only when the subscription could not be
// established.
func (s *RedisSource) follow(ctx context.Context, name string, deliver func([]byte), report func(error)) error {
	ps := s.client.Subscribe(ctx, name)
	defer func() { _ = ps.Close() }()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to channel %s: %w", name, err)
	}

	raw, err := s.client.Get(ctx, name).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		deliver(nil)
	case err != nil:
		report(fmt.Errorf("get %s: %w", name, err))
	default:
		deliver(raw)
	}

	// the pub/sub connection reconnects and resubscribes on its own
	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			deliver([]byte(msg.Payload))
		}
	}
}

func (s *RedisSource) OnConnected(fn ConnectivityHandler) Unsubscribe {
	id := s.h.addConn(fn)
	s.pingStart.Do(func() {
		go probeLoop(s.ctx, s.pingInterval, func(ctx context.Context) error {
			return s.client.Ping(ctx).Err()
		}, func(err error) {
			if err != nil {
				s.log.Debugw("redis_ping_failed", "err", err)
			}
			s.h.setConnected(err == nil)
		})
	})
	return once(func() { s.h.removeConn(id) })
}

func (s *RedisSource) Close() error {
	s.cancel()
	s.h.reset()
	return s.client.Close()
}
