// Package config loads the cartstore configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	API     APIConfig     `koanf:"api"`
	Storage StorageConfig `koanf:"storage"`
	NATS    NATSConfig    `koanf:"nats"`
	Log     LogConfig     `koanf:"log"`
}

type APIConfig struct {
	BaseURL        string               `koanf:"baseurl" validate:"required,http_url"`
	Timeout        time.Duration        `koanf:"timeout" validate:"gt=0"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuitbreaker"`
}

type CircuitBreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutivefailures" validate:"gt=0"`
	OpenTimeout         time.Duration `koanf:"opentimeout" validate:"gt=0"`
}

type StorageConfig struct {
	Driver   string         `koanf:"driver" validate:"oneof=memory file redis postgres"`
	Key      string         `koanf:"key" validate:"required"`
	File     FileConfig     `koanf:"file"`
	Redis    RedisConfig    `koanf:"redis"`
	Postgres PostgresConfig `koanf:"postgres"`
}

type FileConfig struct {
	Dir string `koanf:"dir"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db" validate:"gte=0"`
}

type PostgresConfig struct {
	URL string `koanf:"url"`
}

// NATSConfig is optional; an empty URL disables event publishing.
type NATSConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

func (c Config) String() string {
	var b strings.Builder
	b.WriteString("\n--- API ---\n")
	b.WriteString(fmt.Sprintf("  baseurl: %s\n", c.API.BaseURL))
	b.WriteString(fmt.Sprintf("  timeout: %v\n", c.API.Timeout))
	b.WriteString(fmt.Sprintf("  circuitbreaker.consecutivefailures: %d\n", c.API.CircuitBreaker.ConsecutiveFailures))
	b.WriteString(fmt.Sprintf("  circuitbreaker.opentimeout: %v\n", c.API.CircuitBreaker.OpenTimeout))
	b.WriteString("\n--- Storage ---\n")
	b.WriteString(fmt.Sprintf("  driver: %s\n", c.Storage.Driver))
	b.WriteString(fmt.Sprintf("  key: %s\n", c.Storage.Key))
	switch c.Storage.Driver {
	case "file":
		b.WriteString(fmt.Sprintf("  file.dir: %s\n", c.Storage.File.Dir))
	case "redis":
		b.WriteString(fmt.Sprintf("  redis.addr: %s\n", c.Storage.Redis.Addr))
		b.WriteString(fmt.Sprintf("  redis.db: %d\n", c.Storage.Redis.DB))
	case "postgres":
		b.WriteString(fmt.Sprintf("  postgres.url: %s\n", maskURL(c.Storage.Postgres.URL)))
	}
	b.WriteString("\n--- NATS ---\n")
	b.WriteString(fmt.Sprintf("  url: %s\n", maskURL(c.NATS.URL)))
	b.WriteString("\n--- Log ---\n")
	b.WriteString(fmt.Sprintf("  level: %s\n", c.Log.Level))
	return b.String()
}

func maskURL(url string) string {
	if url == "" {
		return "<not configured>"
	}
	// Mask the URL by replacing the username and password with "****"
	parts := strings.Split(url, "@")
	if len(parts) == 2 {
		scheme := ""
		if i := strings.Index(parts[0], "://"); i >= 0 {
			scheme = parts[0][:i+3]
		}
		return scheme + "****@" + parts[1]
	}
	return url
}

const (
	envPrefix      = "cartstore_"
	defaultEnvFile = ".env"
)

func defaults() map[string]any {
	return map[string]any{
		"api.baseurl":                            "http://localhost:3333",
		"api.timeout":                            "5s",
		"api.circuitbreaker.consecutivefailures": 5,
		"api.circuitbreaker.opentimeout":         "30s",
		"storage.driver":                         "file",
		"storage.key":                            "@RocketShoes:cart",
		"storage.file.dir":                       defaultFileDir(),
		"storage.redis.addr":                     "localhost:6379",
		"nats.timeout":                           "2s",
		"log.level":                              "info",
	}
}

func defaultFileDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".cartstore"
	}
	return filepath.Join(dir, "cartstore")
}

// Load reads the configuration: defaults, then the yaml file at path (optional),
// then the .env file, then CARTSTORE_* environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	// 2. Load configuration from yaml file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("error loading YAML config %s: %w", path, err)
			}
			log.Printf("WARN: config file %s not found, using defaults", path)
		}
	}

	// 3. Load environment variables from .env file
	if envFileMap, err := godotenv.Read(defaultEnvFile); err == nil {
		envMap := make(map[string]any)
		for key, value := range envFileMap {
			if strings.HasPrefix(strings.ToLower(key), envPrefix) {
				envMap[keyTransformer(key)] = value
			}
		}
		if err := k.Load(confmap.Provider(envMap, "."), nil); err != nil {
			log.Printf("WARN: error loading .env config: %v", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		log.Printf("WARN: error reading .env file: %v", err)
	}

	// 4. Load environment variables from the system, the highest priority
	if err := k.Load(env.Provider(strings.ToUpper(envPrefix), ".", keyTransformer), nil); err != nil {
		log.Printf("WARN: error loading env vars: %v", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags first, then the settings each storage driver needs.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	switch c.Storage.Driver {
	case "file":
		if c.Storage.File.Dir == "" {
			return fmt.Errorf("storage.file.dir is not configured")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is not configured")
		}
	case "postgres":
		if !isValidPostgresURL(c.Storage.Postgres.URL) {
			return fmt.Errorf("storage.postgres.url must start with 'postgres://': %s", maskURL(c.Storage.Postgres.URL))
		}
	}
	return nil
}

// isValidPostgresURL checks if the provided URL is a valid PostgreSQL URL
func isValidPostgresURL(url string) bool {
	return strings.HasPrefix(url, "postgres://") ||
		strings.HasPrefix(url, "postgresql://")
}

// keyTransformer transforms environment variable keys to match the expected format
func keyTransformer(key string) string {
	key = strings.ToLower(key)
	key = strings.TrimPrefix(key, envPrefix)
	return strings.ReplaceAll(key, "_", ".")
}
