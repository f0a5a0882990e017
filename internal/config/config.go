package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Config represents the gateway configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	App     AppConfig     `yaml:"app"`
	OAuth   OAuthConfig   `yaml:"oauth"`
	Session SessionConfig `yaml:"session"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string `yaml:"host" default:"localhost"`
	Port        int    `yaml:"port" default:"8080"`
	MetricsPort int    `yaml:"metrics_port" default:"0"` // 0 means Port+10
}

// AppConfig holds the frontend-facing settings
type AppConfig struct {
	RootURL       string `yaml:"root_url" default:"/"`   // where the browser lands after a successful login
	AllowedOrigin string `yaml:"allowed_origin"`         // SPA origin for CORS; empty disables CORS headers
	SecureCookies bool   `yaml:"secure_cookies" default:"true"`
}

// OAuthConfig holds the provider client registration
type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURI  string   `yaml:"redirect_uri"`
	Scopes       []string `yaml:"scopes,omitempty"` // defaults to openid + read-only fantasy scope
	AuthURL      string   `yaml:"auth_url,omitempty"`
	TokenURL     string   `yaml:"token_url,omitempty"`
	APIBaseURL   string   `yaml:"api_base_url,omitempty"`
}

// SessionConfig holds session cookie configuration
type SessionConfig struct {
	Secret string `yaml:"secret"` // base64-encoded, signs the session cookie; generate with gen-secret
}

// StoreConfig selects and configures the session store backend
type StoreConfig struct {
	Backend  string         `yaml:"backend" default:"postgres"` // postgres, redis, memory
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	URL string `yaml:"url" default:"postgres://postgres@localhost:5432/fantasygate?sslmode=disable"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" default:"info"`  // debug, info, warn, error
	Format string `yaml:"format" default:"json"` // json, text
}

// DefaultConfigPaths defines the default locations to search for a config file
var DefaultConfigPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./configs/gateway.yaml",
	"./configs/gateway.yml",
	"/etc/fantasygate/config.yaml",
	"/etc/fantasygate/config.yml",
}

// expandEnvVars expands ${VAR} or $VAR references in the raw config file.
func expandEnvVars(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}

// Load reads the configuration from the given file (or the first default
// location that exists), layers environment variables on top, and
// validates the result. Missing provider credentials or session secret are
// a hard error so the process fails fast at startup instead of serving
// broken login flows.
func Load(configPath string) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		App: AppConfig{
			RootURL:       "/",
			SecureCookies: true,
		},
		OAuth: OAuthConfig{
			Scopes: []string{"openid", "fspt-r"},
		},
		Store: StoreConfig{
			Backend: "postgres",
			Postgres: PostgresConfig{
				URL: "postgres://postgres@localhost:5432/fantasygate?sslmode=disable",
			},
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" && fileExists(configPath) {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		data = expandEnvVars(data)

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(config)

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides lets deployment environments inject secrets without a
// config file. Environment variables take precedence over file values.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("YAHOO_CLIENT_ID"); v != "" {
		config.OAuth.ClientID = v
	}
	if v := os.Getenv("YAHOO_CLIENT_SECRET"); v != "" {
		config.OAuth.ClientSecret = v
	}
	if v := os.Getenv("REDIRECT_URI"); v != "" {
		config.OAuth.RedirectURI = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		config.Session.Secret = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		config.Store.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.Store.Redis.Addr = v
	}
}

func findConfigFile() string {
	for _, path := range DefaultConfigPaths {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// validate rejects configurations that cannot produce a working gateway.
func validate(config *Config) error {
	var missing []string
	if config.OAuth.ClientID == "" {
		missing = append(missing, "oauth.client_id")
	}
	if config.OAuth.ClientSecret == "" {
		missing = append(missing, "oauth.client_secret")
	}
	if config.OAuth.RedirectURI == "" {
		missing = append(missing, "oauth.redirect_uri")
	}
	if config.Session.Secret == "" {
		missing = append(missing, "session.secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch config.Store.Backend {
	case "postgres", "redis", "memory":
	default:
		return fmt.Errorf("store.backend must be one of postgres, redis, memory")
	}

	return nil
}
