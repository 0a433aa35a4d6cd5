// Package config loads client and server settings from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// SendDestination is the fixed application address chat messages are published to.
	SendDestination = "/app/sendMessage"
	// RealtimePath is the websocket endpoint of the realtime channel.
	RealtimePath = "/ws-chat"

	DefaultMatchDebounce     = 1 * time.Second
	DefaultMatchPollInterval = 3 * time.Second
	DefaultReconnectDelay    = 5 * time.Second
)

// LogConfig is shared by every binary.
type LogConfig struct {
	FilePath string `env:"LOG_FILE_PATH"`
	Level    string `env:"LOG_LEVEL" envDefault:"info"`
	JSON     bool   `env:"LOG_JSON" envDefault:"false"`
}

// ClientConfig configures cmd/client and cmd/admin.
type ClientConfig struct {
	MatchServiceURL string        `env:"MATCH_SERVICE_URL" envDefault:"http://localhost:8080"`
	RealtimeURL     string        `env:"REALTIME_URL" envDefault:"ws://localhost:8080/ws-chat"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	// SessionStore selects the backend: "file", "memory" or "redis".
	SessionStore     string `env:"SESSION_STORE" envDefault:"file"`
	SessionStorePath string `env:"SESSION_STORE_PATH" envDefault:".anonchat/session.json"`
	RedisURL         string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisNamespace   string `env:"SESSION_STORE_NAMESPACE" envDefault:"default"`

	MatchDebounce     time.Duration `env:"MATCH_DEBOUNCE" envDefault:"1s"`
	MatchPollInterval time.Duration `env:"MATCH_POLL_INTERVAL" envDefault:"3s"`
	ReconnectDelay    time.Duration `env:"RECONNECT_DELAY" envDefault:"5s"`

	Region   string `env:"PROFILE_REGION" envDefault:"EU"`
	Country  string `env:"PROFILE_COUNTRY" envDefault:"UA"`
	Language string `env:"LANGUAGE" envDefault:"en"`

	Log LogConfig
}

// ServerConfig configures the reference backend in cmd/server.
type ServerConfig struct {
	ListenAddr        string        `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabaseDSN       string        `env:"DATABASE_DSN" envDefault:"host=localhost user=user password=password dbname=anonchat port=5432 sslmode=disable"`
	RedisURL          string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	MatchInterval     time.Duration `env:"MATCH_INTERVAL" envDefault:"500ms"`
	SendRatePerMinute int           `env:"SEND_RATE_PER_MINUTE" envDefault:"60"`
	SendBurst         int           `env:"SEND_BURST" envDefault:"10"`

	Log LogConfig
}

// LoadClient reads the client configuration.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{}
	if err := load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadServer reads the reference server configuration.
func LoadServer() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	if err := load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(target any) error {
	// Missing .env is fine, the process environment is used as is.
	_ = godotenv.Load()

	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
