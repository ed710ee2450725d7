package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"nest_dashboard/internal/logger"
	"nest_dashboard/internal/models"
	"nest_dashboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMsgSize       = 1 << 12 // 4 KB
	defaultInterval  = 1 * time.Second
	maxInterval      = 10 * time.Second
	maxIntervalMilli = 10_000
)

const frameState = "state"

type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// The stream is read-only, so any origin may subscribe.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// frameKey is what decides whether a dashboard is worth another frame.
type frameKey struct {
	mode      models.AcquisitionMode
	connected bool
	revision  uint64
}

func keyOf(d models.Dashboard) frameKey {
	return frameKey{mode: d.Mode, connected: d.Connected, revision: d.Revision}
}

// dashboardStream is one subscribed renderer.
type dashboardStream struct {
	conn   *websocket.Conn
	mon    service.Monitoring
	log    *logger.Logger
	last   frameKey
	sent   bool
	pushes int
}

// push sends the dashboard when it differs from the last frame, or always when force is set.
func (s *dashboardStream) push(ctx context.Context, force bool) error {
	d, err := s.mon.GetDashboard(ctx)
	if err != nil {
		if s.log != nil {
			s.log.Errorw("ws_get_dashboard_failed", "err", err)
		}
		return err
	}
	k := keyOf(d)
	if !force && s.sent && k == s.last {
		return nil
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(wsEnvelope{Type: frameState, Data: d}); err != nil {
		return err
	}
	s.last, s.sent = k, true
	s.pushes++
	return nil
}

func (s *dashboardStream) ping() error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// drain reads until the peer goes away; control frames are handled by gorilla.
func (s *dashboardStream) drain(done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if s.log != nil {
				s.log.Debugw("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// @Summary      Live dashboard stream
// @Description  WebSocket upgrade. Sends {"type":"state","data":Dashboard} immediately, then again whenever mode, connectivity or revision change. The dashboard is checked every interval.
// @Tags         nest
// @Param        interval     query  string  false  "Check interval, Go duration up to 10s"  example(2s)
// @Param        interval_ms  query  int     false  "Check interval in milliseconds up to 10000"  example(500)
// @Success      101
// @Router       /ws [get]
func (h *Handler) streamDashboard(c *gin.Context) {
	interval := h.streamInterval(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	if h.metrics != nil {
		h.metrics.WSConnected()
		defer h.metrics.WSDisconnected()
	}

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stream := &dashboardStream{conn: conn, mon: h.services.Monitoring, log: h.log}
	done := make(chan struct{})
	go stream.drain(done)

	ctx := c.Request.Context()
	if err := stream.push(ctx, true); err != nil {
		if h.log != nil {
			h.log.Infow("ws_initial_frame_failed", "err", err)
		}
		return
	}

	check := time.NewTicker(interval)
	keepalive := time.NewTicker(pingPeriod)
	defer check.Stop()
	defer keepalive.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if err := stream.ping(); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case <-check.C:
			if err := stream.push(ctx, false); err != nil {
				if h.log != nil {
					h.log.Infow("ws_frame_failed", "revision", stream.last.revision, "frames", stream.pushes, "err", err)
				}
				return
			}
		}
	}
}

// streamInterval reads ?interval=2s or ?interval_ms=2000 within (0, 10s];
// anything else falls back to the handler's configured interval.
func (h *Handler) streamInterval(c *gin.Context) time.Duration {
	if s := c.Query("interval"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 && d <= maxInterval {
			return d
		}
	}
	if ms := c.Query("interval_ms"); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil && v > 0 && v <= maxIntervalMilli {
			return time.Duration(v) * time.Millisecond
		}
	}
	if h.wsInterval > 0 {
		return h.wsInterval
	}
	return defaultInterval
}
