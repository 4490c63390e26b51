package client

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries the externally supplied tunables for a session. Every
// field has a sane default so a zero-configuration session still works
// against a local backend.
type Config struct {
	// Push channel and mutation gateway endpoints.
	SocketURL  string `env:"TURF_SOCKET_URL" envDefault:"ws://localhost:8080/ws"`
	GatewayURL string `env:"TURF_GATEWAY_URL" envDefault:"http://localhost:8080"`

	// Identity used to parameterize the push-channel URL.
	UserID string `env:"TURF_USER_ID"`
	Token  string `env:"TURF_TOKEN"`

	// Reconnection policy.
	InitialBackoff       time.Duration `env:"TURF_INITIAL_BACKOFF" envDefault:"1s"`
	MaxBackoff           time.Duration `env:"TURF_MAX_BACKOFF" envDefault:"30s"`
	MaxReconnectAttempts int           `env:"TURF_MAX_RECONNECT_ATTEMPTS" envDefault:"5"`

	// Heartbeat: a ping is emitted if nothing arrived for this long.
	IdlePingInterval time.Duration `env:"TURF_IDLE_PING_INTERVAL" envDefault:"30s"`
	ReadTimeout      time.Duration `env:"TURF_READ_TIMEOUT" envDefault:"90s"`
	WriteTimeout     time.Duration `env:"TURF_WRITE_TIMEOUT" envDefault:"5s"`

	// GPS validation bounds.
	MinAccuracyMeters float64 `env:"TURF_MIN_ACCURACY_METERS" envDefault:"0"`
	MaxAccuracyMeters float64 `env:"TURF_MAX_ACCURACY_METERS" envDefault:"100"`
	MaxSpeedKmh       float64 `env:"TURF_MAX_SPEED_KMH" envDefault:"200"`

	// Route geometry.
	LoopToleranceMeters float64 `env:"TURF_LOOP_TOLERANCE_METERS" envDefault:"50"`
}

// LoadConfig reads Config from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// validation returns the coordinate validation options derived from the
// configured bounds.
func (c Config) validation() ValidationOptions {
	return ValidationOptions{
		MinAccuracyMeters: c.MinAccuracyMeters,
		MaxAccuracyMeters: c.MaxAccuracyMeters,
		MaxSpeedKmh:       c.MaxSpeedKmh,
	}
}
