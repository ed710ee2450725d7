package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Feed drivers.
const (
	DriverSimulator = "simulator"
	DriverMQTT      = "mqtt"
	DriverRedis     = "redis"
	DriverKafka     = "kafka"
	DriverFirebase  = "firebase"
)

const envPrefix = "NEST"

type Config struct {
	Port      string          `mapstructure:"port"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	WS        WSConfig        `mapstructure:"ws"`
	Feed      FeedConfig      `mapstructure:"feed"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Firebase  FirebaseConfig  `mapstructure:"firebase"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console | json
}

type HTTPConfig struct {
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type WSConfig struct {
	Interval time.Duration `mapstructure:"interval"` // default push interval
}

// FeedConfig selects the acquisition channel and the fallback policy.
type FeedConfig struct {
	Driver   string        `mapstructure:"driver"`
	Key      string        `mapstructure:"key"`      // device identifier, e.g. nido_01
	Deadline time.Duration `mapstructure:"deadline"` // wait before switching to demo data
}

type MQTTConfig struct {
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"` // random suffix appended when empty
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	QoS            byte          `mapstructure:"qos"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	ChannelPrefix string        `mapstructure:"channel_prefix"`
	PingInterval  time.Duration `mapstructure:"ping_interval"`
}

type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

type FirebaseConfig struct {
	DatabaseURL  string        `mapstructure:"database_url"`
	AuthToken    string        `mapstructure:"auth_token"`
	Stream       bool          `mapstructure:"stream"` // event-stream push; false polls
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type SimulatorConfig struct {
	Tick        time.Duration `mapstructure:"tick"`
	StartupLag  time.Duration `mapstructure:"startup_lag"` // delay before the first publish
	Subjects    []string      `mapstructure:"subjects"`
	InitialEggs int           `mapstructure:"initial_eggs"`
}

var (
	errUnknownDriver = errors.New("unknown feed.driver")
	errBadDeadline   = errors.New("feed.deadline must be > 0")
	errEmptyKey      = errors.New("feed.key is required")
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("http.read_header_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("ws.interval", time.Second)

	v.SetDefault("feed.driver", DriverSimulator)
	v.SetDefault("feed.key", "nido_01")
	v.SetDefault("feed.deadline", 2500*time.Millisecond)

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic_prefix", "henzen/")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.connect_timeout", 5*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "henzen:")
	v.SetDefault("redis.ping_interval", 5*time.Second)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "henzen.nest")
	v.SetDefault("kafka.probe_interval", 5*time.Second)

	v.SetDefault("firebase.database_url", "")
	v.SetDefault("firebase.auth_token", "")
	v.SetDefault("firebase.stream", true)
	v.SetDefault("firebase.poll_interval", 2*time.Second)
	v.SetDefault("firebase.timeout", 5*time.Second)

	v.SetDefault("simulator.tick", 5*time.Second)
	v.SetDefault("simulator.startup_lag", 500*time.Millisecond)
	v.SetDefault("simulator.subjects", []string{"A1. Bianca", "B2. Nera", "C3. Rossa"})
	v.SetDefault("simulator.initial_eggs", 0)
}

// Load reads config.yml from dir (missing file is fine: defaults apply), then
// environment overrides such as NEST_FEED_DRIVER. A .env file in the working
// directory is loaded first when present.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config in %q: %w", dir, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the acquisition layer cannot run with.
func (c *Config) Validate() error {
	switch c.Feed.Driver {
	case DriverSimulator, DriverMQTT, DriverRedis, DriverKafka, DriverFirebase:
	default:
		return fmt.Errorf("%w: %q", errUnknownDriver, c.Feed.Driver)
	}
	if c.Feed.Deadline <= 0 {
		return errBadDeadline
	}
	if strings.TrimSpace(c.Feed.Key) == "" {
		return errEmptyKey
	}
	return nil
}
