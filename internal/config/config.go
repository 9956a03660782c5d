// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Gateway configures the WebSocket gateway service.
type Gateway struct {
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`
	GatewayName string `env:"GATEWAY_NAME"`
	NATSURL     string `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	AuthSecret  string `env:"AUTH_SECRET,notEmpty"`
}

// Matcher configures the matchmaking engine service.
type Matcher struct {
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8081"`
	NATSURL          string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	RedisAddr        string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	PostgresDSN      string        `env:"POSTGRES_DSN,notEmpty"`
	RoomTokenSecret  string        `env:"ROOM_TOKEN_SECRET,notEmpty"`
	AcceptTimeout    time.Duration `env:"ACCEPT_TIMEOUT" envDefault:"30s"`
	HeartbeatTimeout time.Duration `env:"HEARTBEAT_TIMEOUT" envDefault:"90s"`
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"10s"`
}

// LoadGateway parses the gateway configuration from the environment. An
// unset GATEWAY_NAME falls back to the hostname so each instance stays
// distinguishable.
func LoadGateway() (Gateway, error) {
	var cfg Gateway
	if err := env.Parse(&cfg); err != nil {
		return Gateway{}, fmt.Errorf("config: parse gateway env: %w", err)
	}
	if cfg.GatewayName == "" {
		host, err := os.Hostname()
		if err != nil {
			return Gateway{}, fmt.Errorf("config: resolve hostname: %w", err)
		}
		cfg.GatewayName = host
	}
	return cfg, nil
}

// LoadMatcher parses the matcher configuration from the environment.
func LoadMatcher() (Matcher, error) {
	var cfg Matcher
	if err := env.Parse(&cfg); err != nil {
		return Matcher{}, fmt.Errorf("config: parse matcher env: %w", err)
	}
	return cfg, nil
}
