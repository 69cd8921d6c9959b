// Package server provides the listener settings the HTTP and WebSocket
// handlers run with.
package server

// Default listener settings.
const (
	DefaultPort          = ":3000"
	DefaultAllowedOrigin = "http://localhost:8080"
)

// Config holds the settings the HTTP surface needs.
//
// MaxMessageSize bounds inbound WebSocket frames; zero means no limit.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

func defaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		AllowedOrigins: []string{DefaultAllowedOrigin},
		MaxMessageSize: 0,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}

	if cfg.MaxMessageSize < 0 {
		cfg.MaxMessageSize = 0
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}
