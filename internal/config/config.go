package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// DefaultAPIBase is the Discord REST API version the gateway talks to
const DefaultAPIBase = "https://discord.com/api/v10/"

// Config holds all configuration for the gateway and the terminal client
type Config struct {
	Server  ServerConfig
	Discord DiscordConfig
	Logging LoggingConfig
	Client  ClientConfig
}

// ServerConfig holds the gateway HTTP server configuration
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// DiscordConfig holds upstream Discord REST configuration
type DiscordConfig struct {
	// APIBase is the versioned REST base, always ending in "/"
	APIBase string
	Timeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string // console or json
	File   string // empty means stdout
}

// ClientConfig holds terminal client configuration
type ClientConfig struct {
	GatewayURL string
	TokenStore string // file, sqlite or memory
	TokenPath  string
}

// Result provides config parts for fx dependency injection
type Result struct {
	fx.Out

	Config  *Config
	Server  *ServerConfig
	Discord *DiscordConfig
	Logging *LoggingConfig
	Client  *ClientConfig
}

// Out loads configuration and returns Result for fx injection
func Out() (Result, error) {
	cfg, err := Load()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Config:  cfg,
		Server:  &cfg.Server,
		Discord: &cfg.Discord,
		Logging: &cfg.Logging,
		Client:  &cfg.Client,
	}, nil
}

// Load loads configuration from .env (optional) and environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	upstreamTimeout, err := getDuration("UPSTREAM_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("HTTP_PORT", "8080"),
			ShutdownTimeout: shutdownTimeout,
		},
		Discord: DiscordConfig{
			APIBase: withTrailingSlash(getEnv("DISCORD_API_BASE", DefaultAPIBase)),
			Timeout: upstreamTimeout,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "console")),
			File:   getEnv("LOG_FILE", ""),
		},
		Client: ClientConfig{
			GatewayURL: strings.TrimRight(getEnv("GATEWAY_URL", "http://localhost:8080"), "/"),
			TokenStore: strings.ToLower(getEnv("TOKEN_STORE", "file")),
			TokenPath:  getEnv("TOKEN_STORE_PATH", defaultTokenPath()),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("HTTP_PORT is required")
	}

	if u, err := url.Parse(c.Discord.APIBase); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("DISCORD_API_BASE must be an absolute URL, got %q", c.Discord.APIBase)
	}

	if u, err := url.Parse(c.Client.GatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("GATEWAY_URL must be an absolute URL, got %q", c.Client.GatewayURL)
	}

	switch c.Client.TokenStore {
	case "file", "sqlite":
		if c.Client.TokenPath == "" {
			return fmt.Errorf("TOKEN_STORE_PATH is required for %s token store", c.Client.TokenStore)
		}
	case "memory":
	default:
		return fmt.Errorf("TOKEN_STORE must be one of file, sqlite, memory, got %q", c.Client.TokenStore)
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.Logging.Format)
	}

	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return d, nil
}

func withTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func defaultTokenPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "discord-bot-client.json"
	}
	return filepath.Join(dir, "discord-bot-client", "token.json")
}
