package feed

import (
	"fmt"

	"nest_dashboard/internal/config"
	"nest_dashboard/internal/logger"
)

// New builds the Source selected by feed.driver. The simulator driver returns a
// *Memory that the caller drives with the device simulator.
func New(cfg *config.Config, log *logger.Logger) (Source, error) {
	switch cfg.Feed.Driver {
	case config.DriverSimulator:
		return NewMemory(), nil
	case config.DriverMQTT:
		return NewMQTTSource(cfg.MQTT, log), nil
	case config.DriverRedis:
		return NewRedisSource(cfg.Redis, log), nil
	case config.DriverKafka:
		return NewKafkaSource(cfg.Kafka, log), nil
	case config.DriverFirebase:
		if cfg.Firebase.DatabaseURL == "" {
			return nil, fmt.Errorf("firebase.database_url is required for the firebase driver")
		}
		return NewFirebaseSource(cfg.Firebase, log), nil
	default:
		return nil, fmt.Errorf("unknown feed driver %q", cfg.Feed.Driver)
	}
}
