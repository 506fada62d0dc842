package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full server configuration, populated from UPLINK_* environment
// variables. Defaults are usable out of the box for local operation.
type Config struct {
	HTTP      HTTPConfig
	WebSocket WebSocketConfig
	Relay     RelayConfig
	Log       LogConfig
}

type HTTPConfig struct {
	Host           string        `envconfig:"UPLINK_HOST" default:"0.0.0.0"`
	Port           int           `envconfig:"UPLINK_PORT" default:"8080"`
	ReadTimeout    time.Duration `envconfig:"UPLINK_HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout   time.Duration `envconfig:"UPLINK_HTTP_WRITE_TIMEOUT" default:"30s"`
	AllowedOrigins []string      `envconfig:"UPLINK_ALLOWED_ORIGINS" default:"*"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `envconfig:"UPLINK_WS_PING_INTERVAL" default:"30s"`
	PongWait       time.Duration `envconfig:"UPLINK_WS_PONG_WAIT" default:"60s"`
	WriteTimeout   time.Duration `envconfig:"UPLINK_WS_WRITE_TIMEOUT" default:"10s"`
	SendBufferSize int           `envconfig:"UPLINK_WS_SEND_BUFFER" default:"100"`
	MaxFrameSize   int64         `envconfig:"UPLINK_WS_MAX_FRAME" default:"8192"`
}

type RelayConfig struct {
	// AdminKey authorizes purge requests. An empty value disables purging
	// entirely. The default is intentionally weak and must be overridden
	// for any non-local deployment.
	AdminKey         string        `envconfig:"UPLINK_ADMIN_KEY" default:"trustno1"`
	HistoryCapacity  int           `envconfig:"UPLINK_HISTORY_CAPACITY" default:"50"`
	MaxMessageLength int           `envconfig:"UPLINK_MAX_MESSAGE_LENGTH" default:"500"`
	RateWindow       time.Duration `envconfig:"UPLINK_RATE_WINDOW" default:"1s"`
	RateThreshold    int           `envconfig:"UPLINK_RATE_THRESHOLD" default:"5"`
	RatePenalty      time.Duration `envconfig:"UPLINK_RATE_PENALTY" default:"5s"`
	EventBuffer      int           `envconfig:"UPLINK_EVENT_BUFFER" default:"1024"`
}

type LogConfig struct {
	Level  string `envconfig:"UPLINK_LOG_LEVEL" default:"info"`
	Format string `envconfig:"UPLINK_LOG_FORMAT" default:"text"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that would fail at runtime.
func (c *Config) Validate() error {
	if c.HTTP.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket ping interval must be positive")
	}
	if c.WebSocket.PongWait <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket pong wait must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket write timeout must be positive")
	}
	if c.WebSocket.SendBufferSize <= 0 {
		return fmt.Errorf("websocket send buffer size must be positive")
	}
	if c.WebSocket.MaxFrameSize <= 0 {
		return fmt.Errorf("websocket max frame size must be positive")
	}
	if c.Relay.HistoryCapacity <= 0 {
		return fmt.Errorf("history capacity must be positive")
	}
	if c.Relay.MaxMessageLength <= 0 {
		return fmt.Errorf("max message length must be positive")
	}
	if c.Relay.RateWindow <= 0 || c.Relay.RatePenalty <= 0 {
		return fmt.Errorf("rate limiter durations must be positive")
	}
	if c.Relay.RateThreshold <= 0 {
		return fmt.Errorf("rate threshold must be positive")
	}
	if c.Relay.EventBuffer <= 0 {
		return fmt.Errorf("event buffer must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json")
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}
