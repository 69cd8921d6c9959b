// Package config loads runtime settings from defaults, an optional
// config.yaml and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Token modes accepted by auth.token_mode.
const (
	TokenModePseudo = "pseudo"
	TokenModeJWT    = "jwt"
)

// Database drivers accepted by database.driver.
const (
	DriverSQLite = "sqlite3"
	DriverPgx    = "pgx"
)

// Config is the full runtime configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig holds the HTTP and WebSocket listener settings.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects the user store backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// AuthConfig controls password hashing and session credentials.
type AuthConfig struct {
	TokenMode  string        `mapstructure:"token_mode"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

var envBindings = map[string][]string{
	"server.port":             {"PORT", "APP_SERVER_PORT"},
	"server.allowed_origins":  {"FRONTEND_URL", "ALLOWED_ORIGINS"},
	"server.max_message_size": {"MAX_MESSAGE_SIZE"},
	"server.shutdown_timeout": {"SHUTDOWN_TIMEOUT"},
	"database.driver":         {"DATABASE_DRIVER"},
	"database.dsn":            {"DATABASE_URL"},
	"auth.token_mode":         {"TOKEN_MODE"},
	"auth.jwt_secret":         {"JWT_SECRET"},
	"auth.token_ttl":          {"TOKEN_TTL"},
	"auth.bcrypt_cost":        {"BCRYPT_COST"},
}

// Load reads configuration using a fresh viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom reads configuration through v. Callers may preset values or a
// config file path on v before calling.
func LoadFrom(v *viper.Viper) (*Config, error) {
	if v.ConfigFileUsed() == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.sanitize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8080"})
	v.SetDefault("server.max_message_size", 0)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "vidigu.db")
	v.SetDefault("auth.token_mode", TokenModePseudo)
	v.SetDefault("auth.token_ttl", "1h")
	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)
}

func (c *Config) sanitize() {
	c.Server.Port = normalizePort(c.Server.Port)

	origins := make([]string, 0, len(c.Server.AllowedOrigins))
	for _, origin := range c.Server.AllowedOrigins {
		for _, part := range strings.Split(origin, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	c.Server.AllowedOrigins = origins

	if c.Server.MaxMessageSize < 0 {
		c.Server.MaxMessageSize = 0
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "sqlite" {
		c.Database.Driver = DriverSQLite
	}

	c.Auth.TokenMode = strings.ToLower(strings.TrimSpace(c.Auth.TokenMode))
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = time.Hour
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		c.Auth.BcryptCost = bcrypt.DefaultCost
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite, DriverPgx:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Auth.TokenMode {
	case TokenModePseudo:
	case TokenModeJWT:
		if c.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required when auth.token_mode is jwt")
		}
	default:
		return fmt.Errorf("unsupported token mode %q", c.Auth.TokenMode)
	}
	return nil
}

func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return ":3000"
	}
	if !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}
