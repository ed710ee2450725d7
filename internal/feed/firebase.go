package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nest_dashboard/internal/config"
	"nest_dashboard/internal/logger"

	"github.com/go-resty/resty/v2"
)

const (
	firebaseRetryInterval    = time.Second
	firebaseMaxRetryInterval = 30 * time.Second
	maxEventLine             = 1 << 20
)

var errStreamEnded = errors.New("event stream ended")

// FirebaseSource follows <database_url>/<key>.json on the Realtime Database REST
// API. By default it holds an event stream open (Accept: text/event-stream) and
// reconnects with backoff; with streaming disabled it polls instead. An open
// stream or a successful poll means connected.
type FirebaseSource struct {
	client   *resty.Client
	streamer *resty.Client
	auth     string
	stream   bool
	interval time.Duration
	retryMin time.Duration
	retryMax time.Duration
	log      *logger.Logger
	h        *hub

	ctx    context.Context
	cancel context.CancelFunc
}

var _ Source = (*FirebaseSource)(nil)

func NewFirebaseSource(cfg config.FirebaseConfig, log *logger.Logger) *FirebaseSource {
	base := strings.TrimRight(cfg.DatabaseURL, "/")
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	// no overall timeout: the response body stays open for the stream's lifetime
	streamer := resty.New().
		SetBaseURL(base).
		SetHeader("Accept", "text/event-stream")

	ctx, cancel := context.WithCancel(context.Background())
	return &FirebaseSource{
		client:   client,
		streamer: streamer,
		auth:     cfg.AuthToken,
		stream:   cfg.Stream,
		interval: cfg.PollInterval,
		retryMin: firebaseRetryInterval,
		retryMax: firebaseMaxRetryInterval,
		log:      log,
		h:        newHub(false),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *FirebaseSource) OnValue(key string, onData DataHandler, onErr ErrorHandler) Unsubscribe {
	ctx, cancel := context.WithCancel(s.ctx)
	d := &rtdbDelivery{key: key, log: s.log, onData: onData, onErr: onErr}
	if s.stream {
		go s.follow(ctx, d)
	} else {
		go s.poll(ctx, d)
	}
	return once(cancel)
}

// rtdbDelivery decodes bodies for one subscription and drops unchanged ones.
type rtdbDelivery struct {
	key       string
	log       *logger.Logger
	onData    DataHandler
	onErr     ErrorHandler
	last      []byte
	delivered bool
}

func (d *rtdbDelivery) report(ctx context.Context, err error) {
	if d.onErr != nil && ctx.Err() == nil {
		d.onErr(err)
	}
}

func (d *rtdbDelivery) body(ctx context.Context, raw []byte) {
	if d.delivered && bytes.Equal(raw, d.last) {
		return
	}
	snap, err := DecodeSnapshot(raw)
	if err != nil {
		// reachable but unusable: still connected
		d.log.Warnw("firebase_payload_rejected", "key", d.key, "err", err)
		d.report(ctx, err)
		return
	}
	d.last, d.delivered = append(d.last[:0], raw...), true
	if d.onData != nil && ctx.Err() == nil {
		d.onData(snap)
	}
}

func (s *FirebaseSource) poll(ctx context.Context, d *rtdbDelivery) {
	probeLoop(ctx, s.interval, func(ctx context.Context) error {
		raw, err := s.fetch(ctx, d.key)
		if err != nil {
			return err
		}
		d.body(ctx, raw)
		return nil
	}, func(err error) {
		s.h.setConnected(err == nil)
		if err != nil {
			s.log.Debugw("firebase_poll_failed", "key", d.key, "err", err)
			d.report(ctx, err)
		}
	})
}

// follow keeps an event stream open until ctx ends, reconnecting with a
// doubling delay. A stream that delivered events resets the delay.
func (s *FirebaseSource) follow(ctx context.Context, d *rtdbDelivery) {
	delay := s.retryMin
	for {
		events, err := s.listen(ctx, d)
		if ctx.Err() != nil {
			return
		}
		s.h.setConnected(false)
		s.log.Warnw("firebase_stream_failed", "key", d.key, "retry_in", delay.String(), "err", err)
		d.report(ctx, err)

		if events > 0 {
			delay = s.retryMin
		}
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

// listen runs one stream connection and returns how many events it handled
// and why it ended.
func (s *FirebaseSource) listen(ctx context.Context, d *rtdbDelivery) (int, error) {
	req := s.streamer.R().SetContext(ctx).SetDoNotParseResponse(true)
	if s.auth != "" {
		req.SetQueryParam("auth", s.auth)
	}
	resp, err := req.Get("/" + d.key + ".json")
	if err != nil {
		return 0, fmt.Errorf("stream %s: %w", d.key, err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()
	if resp.IsError() {
		return 0, fmt.Errorf("stream %s: unexpected status %d", d.key, resp.StatusCode())
	}
	s.h.setConnected(true)

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)

	var (
		event string
		data  strings.Builder
		count int
	)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if event == "" && data.Len() == 0 {
				continue
			}
			count++
			if err := s.dispatch(ctx, d, event, data.String()); err != nil {
				return count, err
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := sc.Err(); err != nil {
		return count, fmt.Errorf("stream %s: %w", d.key, err)
	}
	return count, errStreamEnded
}

type rtdbEvent struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// dispatch applies one server event. A put at the root carries the whole
// value; any partial update is resolved by reading the whole value back.
func (s *FirebaseSource) dispatch(ctx context.Context, d *rtdbDelivery, event, data string) error {
	switch event {
	case "put", "patch":
		var ev rtdbEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			d.report(ctx, fmt.Errorf("%w: %v", ErrMalformedPayload, err))
			return nil
		}
		if event == "put" && ev.Path == "/" {
			d.body(ctx, ev.Data)
			return nil
		}
		raw, err := s.fetch(ctx, d.key)
		if err != nil {
			d.report(ctx, err)
			return nil
		}
		d.body(ctx, raw)
		return nil
	case "keep-alive":
		return nil
	case "cancel":
		return fmt.Errorf("stream %s cancelled by server: %s", d.key, data)
	case "auth_revoked":
		return fmt.Errorf("stream %s: credential expired", d.key)
	default:
		s.log.Debugw("firebase_event_ignored", "key", d.key, "event", event)
		return nil
	}
}

func (s *FirebaseSource) fetch(ctx context.Context, key string) ([]byte, error) {
	req := s.client.R().SetContext(ctx)
	if s.auth != "" {
		req.SetQueryParam("auth", s.auth)
	}
	resp, err := req.Get("/" + key + ".json")
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("get %s: unexpected status %d", key, resp.StatusCode())
	}
	return resp.Body(), nil
}

func (s *FirebaseSource) OnConnected(fn ConnectivityHandler) Unsubscribe {
	id := s.h.addConn(fn)
	return once(func() { s.h.removeConn(id) })
}

func (s *FirebaseSource) Close() error {
	s.cancel()
	s.h.reset()
	return nil
}
