package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. HABITCITY_SERVER_PORT.
const EnvPrefix = "HABITCITY_"

// Config holds all habitcity configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"DATABASE_"`
	Policy    PolicyConfig    `yaml:"policy" envPrefix:"POLICY_"`
	Safety    SafetyConfig    `yaml:"safety" envPrefix:"SAFETY_"`
	Auth      AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`
}

type ServerConfig struct {
	Bind           string        `yaml:"bind" env:"BIND"`
	Port           int           `yaml:"port" env:"PORT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

type PolicyConfig struct {
	Backend        string        `yaml:"backend" env:"BACKEND"` // "grpc", "http", "none"
	Address        string        `yaml:"address" env:"ADDRESS"` // gRPC host:port
	URL            string        `yaml:"url" env:"URL"`         // HTTP base URL
	NormalizerPath string        `yaml:"normalizer" env:"NORMALIZER"`
	Deterministic  bool          `yaml:"deterministic" env:"DETERMINISTIC"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	LoadTimeout    time.Duration `yaml:"load_timeout" env:"LOAD_TIMEOUT"`
}

type SafetyConfig struct {
	MaxConsecutive  int           `yaml:"max_consecutive" env:"MAX_CONSECUTIVE"`
	HistorySize     int           `yaml:"history_size" env:"HISTORY_SIZE"`
	ConfidenceFloor float64       `yaml:"confidence_floor" env:"CONFIDENCE_FLOOR"`
	IdleTTL         time.Duration `yaml:"idle_ttl" env:"IDLE_TTL"`
	SweepInterval   time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

type AuthConfig struct {
	Secret   string `yaml:"secret" env:"SECRET"` // HS256 key; empty disables auth
	Issuer   string `yaml:"issuer" env:"ISSUER"`
	Audience string `yaml:"audience" env:"AUDIENCE"`
}

type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint" env:"ENDPOINT"` // OTLP/HTTP URL; empty disables export
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind:           "127.0.0.1",
			Port:           37778,
			RequestTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Policy: PolicyConfig{
			Backend:       "grpc",
			Address:       "127.0.0.1:50051",
			URL:           "http://127.0.0.1:8501",
			Deterministic: true,
			Timeout:       2 * time.Second,
			LoadTimeout:   5 * time.Second,
		},
		Safety: SafetyConfig{
			MaxConsecutive:  3,
			HistorySize:     10,
			ConfidenceFloor: 0.25,
			IdleTTL:         24 * time.Hour,
			SweepInterval:   10 * time.Minute,
		},
		Telemetry: TelemetryConfig{
			SampleRatio: 1,
		},
	}
}

// DefaultPath returns the config file location: $HABITCITY_CONFIG, or
// ~/.habitcity/config.yaml.
func DefaultPath() string {
	if override := strings.TrimSpace(os.Getenv(EnvPrefix + "CONFIG")); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".habitcity", "config.yaml")
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (a missing file is fine), then HABITCITY_* environment variables.
// An empty path means DefaultPath().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Policy.Backend {
	case "grpc", "http", "none", "":
	default:
		return fmt.Errorf("unknown policy backend: %q", c.Policy.Backend)
	}
	if c.Safety.ConfidenceFloor < 0 || c.Safety.ConfidenceFloor > 1 {
		return fmt.Errorf("safety.confidence_floor %v outside [0,1]", c.Safety.ConfidenceFloor)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio %v outside [0,1]", c.Telemetry.SampleRatio)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
