package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"3000"`
	AppURL    string `env:"APP_URL"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	TelemetryBuffer int `env:"TELEMETRY_BUFFER" default:"100"`
	CommandQueue    int `env:"COMMAND_QUEUE" default:"32"`

	MaxViewers      int     `env:"MAX_VIEWERS" default:"1000"`
	MaxViewersPerIP int     `env:"MAX_VIEWERS_PER_IP" default:"20"`
	WSUpgradeRate   float64 `env:"WS_UPGRADE_RATE" default:"2"`
	WSUpgradeBurst  int     `env:"WS_UPGRADE_BURST" default:"10"`

	WSPingInterval time.Duration `env:"WS_PING_INTERVAL" default:"30s"`
	WSPongWait     time.Duration `env:"WS_PONG_WAIT" default:"60s"`
	WSWriteWait    time.Duration `env:"WS_WRITE_WAIT" default:"5s"`

	// RadioLinkAddr is the host:port of the radio modem. Empty logs commands instead of sending them.
	RadioLinkAddr    string        `env:"RADIO_LINK_ADDR"`
	RadioLinkTimeout time.Duration `env:"RADIO_LINK_TIMEOUT" default:"2s"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	positive := []struct {
		name  string
		value int
	}{
		{"TELEMETRY_BUFFER", cfg.TelemetryBuffer},
		{"COMMAND_QUEUE", cfg.CommandQueue},
		{"MAX_VIEWERS", cfg.MaxViewers},
		{"MAX_VIEWERS_PER_IP", cfg.MaxViewersPerIP},
		{"WS_UPGRADE_BURST", cfg.WSUpgradeBurst},
	}
	for _, p := range positive {
		if p.value < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", p.name, p.value)
		}
	}

	if cfg.WSUpgradeRate <= 0 {
		return fmt.Errorf("WS_UPGRADE_RATE must be positive, got %g", cfg.WSUpgradeRate)
	}
	if cfg.MaxViewersPerIP > cfg.MaxViewers {
		return errors.New("MAX_VIEWERS_PER_IP must not exceed MAX_VIEWERS")
	}

	if cfg.WSPingInterval < 0 || cfg.WSPongWait < 0 || cfg.WSWriteWait <= 0 {
		return errors.New("WS_PING_INTERVAL and WS_PONG_WAIT must not be negative, WS_WRITE_WAIT must be positive")
	}
	if cfg.WSPingInterval > 0 && cfg.WSPongWait <= cfg.WSPingInterval {
		return fmt.Errorf("WS_PONG_WAIT (%s) must be longer than WS_PING_INTERVAL (%s)", cfg.WSPongWait, cfg.WSPingInterval)
	}

	if cfg.RadioLinkAddr != "" {
		if _, _, err := net.SplitHostPort(cfg.RadioLinkAddr); err != nil {
			return fmt.Errorf("RADIO_LINK_ADDR must be host:port: %w", err)
		}
		if cfg.RadioLinkTimeout <= 0 {
			return errors.New("RADIO_LINK_TIMEOUT must be positive")
		}
	}

	if cfg.AppURL != "" {
		u, err := url.Parse(cfg.AppURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("APP_URL must be an absolute URL, got %q", cfg.AppURL)
		}
	} else if cfg.IsProduction() {
		return errors.New("APP_URL is required in production")
	}

	return nil
}
