// Package config provides configuration types and defaults for tasktime.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. TASKTIME_SERVER_ADDR.
const EnvPrefix = "TASKTIME"

// Config holds all configuration options for tasktime.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Client    ClientConfig    `mapstructure:"client"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig points at the authoritative session database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// AuthConfig configures bearer credential signing.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// RateLimitConfig is a per-caller token bucket.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// TracingConfig mirrors tracing.Config so it can be loaded by viper.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"` // "none", "stdout", "otlp"
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	ServiceName  string  `mapstructure:"service_name"`
}

// ClientConfig configures the client commands and the timer UI.
type ClientConfig struct {
	ServerURL  string        `mapstructure:"server_url"`
	Token      string        `mapstructure:"token"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	BatchChunk int           `mapstructure:"batch_chunk"`
	PollMin    time.Duration `mapstructure:"poll_min"`
	PollMax    time.Duration `mapstructure:"poll_max"`
	StatePath  string        `mapstructure:"state_path"`
}

// LogConfig selects log level and destination. An empty File logs to stderr.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":3001",
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(homeDir(), ".tasktime", "server.db"),
		},
		Auth: AuthConfig{
			JWTSecret: "dev-secret",
			TokenTTL:  7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			RPS:   5,
			Burst: 10,
		},
		Tracing: TracingConfig{
			Enabled:      false,
			Exporter:     "stdout",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
			ServiceName:  "tasktime",
		},
		Client: ClientConfig{
			ServerURL:  "http://localhost:3001",
			Timeout:    30 * time.Second,
			CacheTTL:   30 * time.Second,
			BatchChunk: 50,
			PollMin:    2 * time.Second,
			PollMax:    5 * time.Second,
			StatePath:  filepath.Join(homeDir(), ".tasktime", "client.db"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultConfigPath is where the YAML config file is looked up when --config is not set.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "tasktime", "config.yaml")
}

// SetDefaults registers every default with v so env overrides and Unmarshal see all keys.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)
	v.SetDefault("rate_limit.rps", d.RateLimit.RPS)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("client.server_url", d.Client.ServerURL)
	v.SetDefault("client.token", d.Client.Token)
	v.SetDefault("client.timeout", d.Client.Timeout)
	v.SetDefault("client.cache_ttl", d.Client.CacheTTL)
	v.SetDefault("client.batch_chunk", d.Client.BatchChunk)
	v.SetDefault("client.poll_min", d.Client.PollMin)
	v.SetDefault("client.poll_max", d.Client.PollMax)
	v.SetDefault("client.state_path", d.Client.StatePath)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

// Load reads .env (if present), then the YAML file at path (if non-empty and present), then
// TASKTIME_* environment variables, in increasing order of precedence.
func Load(v *viper.Viper, path string) (Config, error) {
	_ = godotenv.Load()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func isNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
