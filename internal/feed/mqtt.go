package feed

import (
	"context"
	"fmt"
	"time"

	"nest_dashboard/internal/config"
	"nest_dashboard/internal/logger"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	mqttRetryInterval   = 5 * time.Second
	mqttDisconnectQuies = 250 // ms
	mqttClientIDPrefix  = "nest-dashboard-"
)

// MQTTSource reads retained device snapshots from <topic_prefix><key>.
// The broker connection is the connectivity signal.
type MQTTSource struct {
	client  mqtt.Client
	log     *logger.Logger
	prefix  string
	qos     byte
	timeout time.Duration
	h       *hub

	cancel context.CancelFunc
}

var _ Source = (*MQTTSource)(nil)

// NewMQTTSource builds the client and starts connecting in the background.
// Connection failures are reported to value subscribers and retried.
func NewMQTTSource(cfg config.MQTTConfig, log *logger.Logger) *MQTTSource {
	s := newMQTTSource(cfg, log)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = mqttClientIDPrefix + uuid.NewString()[:8]
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) { s.onConnect() })
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) { s.onConnectionLost(err) })

	s.client = mqtt.NewClient(opts)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.connectLoop(ctx)
	return s
}

func newMQTTSource(cfg config.MQTTConfig, log *logger.Logger) *MQTTSource {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTSource{
		log:     log,
		prefix:  cfg.TopicPrefix,
		qos:     cfg.QoS,
		timeout: timeout,
		h:       newHub(false),
		cancel:  func() {},
	}
}

// connectLoop retries the first connection; paho's auto-reconnect takes over afterwards.
func (s *MQTTSource) connectLoop(ctx context.Context) {
	for {
		token := s.client.Connect()
		if !token.WaitTimeout(s.timeout) {
			s.reportConnectFailure(fmt.Errorf("connect to mqtt broker: timed out after %s", s.timeout))
		} else if err := token.Error(); err != nil {
			s.reportConnectFailure(fmt.Errorf("connect to mqtt broker: %w", err))
		} else {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(mqttRetryInterval):
		}
	}
}

func (s *MQTTSource) reportConnectFailure(err error) {
	s.log.Warnw("mqtt_connect_failed", "err", err)
	s.h.setConnected(false)
	s.h.fail("", err)
}

func (s *MQTTSource) topic(key string) string {
	return s.prefix + key
}

func (s *MQTTSource) onConnect() {
	s.log.Infow("mqtt_connected")
	s.h.setConnected(true)
	// clean session: subscriptions do not survive a reconnect
	for _, key := range s.h.keys() {
		s.subscribe(key)
	}
}

func (s *MQTTSource) onConnectionLost(err error) {
	s.log.Warnw("mqtt_connection_lost", "err", err)
	s.h.setConnected(false)
}

func (s *MQTTSource) subscribe(key string) {
	topic := s.topic(key)
	token := s.client.Subscribe(topic, s.qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(key, msg.Payload())
	})
	go func() {
		if !token.WaitTimeout(s.timeout) {
			s.h.fail(key, fmt.Errorf("subscribe to topic %s: timed out", topic))
			return
		}
		if err := token.Error(); err != nil {
			s.h.fail(key, fmt.Errorf("subscribe to topic %s: %w", topic, err))
		}
	}()
}

func (s *MQTTSource) handleMessage(key string, payload []byte) {
	snap, err := DecodeSnapshot(payload)
	if err != nil {
		s.log.Warnw("mqtt_payload_rejected", "topic", s.topic(key), "err", err)
		s.h.fail(key, err)
		return
	}
	s.h.publish(key, snap)
}

func (s *MQTTSource) OnValue(key string, onData DataHandler, onErr ErrorHandler) Unsubscribe {
	id, first := s.h.addValue(key, onData, onErr)
	if first && s.client.IsConnectionOpen() {
		s.subscribe(key)
	}
	return once(func() {
		if s.h.removeValue(key, id) && s.client.IsConnectionOpen() {
			s.client.Unsubscribe(s.topic(key))
		}
	})
}

func (s *MQTTSource) OnConnected(fn ConnectivityHandler) Unsubscribe {
	id := s.h.addConn(fn)
	return once(func() { s.h.removeConn(id) })
}

func (s *MQTTSource) Close() error {
	s.cancel()
	s.h.reset()
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(mqttDisconnectQuies)
	}
	return nil
}
