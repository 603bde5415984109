// Package config loads the billboard server configuration from defaults, an
// optional YAML file, a .env file and BILLBOARD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/example/billboard-server/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "BILLBOARD"

// Config captures the settings of the billboard server.
type Config struct {
	ListenAddr   string        `yaml:"listen_addr" envconfig:"LISTEN_ADDR"`
	OpsAddr      string        `yaml:"ops_addr" envconfig:"OPS_ADDR"`
	DatabasePath string        `yaml:"database_path" envconfig:"DATABASE_PATH"`
	SessionTTL   time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
	Timezone     string        `yaml:"timezone" envconfig:"TIMEZONE"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	LogLevel     string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat    string        `yaml:"log_format" envconfig:"LOG_FORMAT"`

	// AdminUsername and AdminPassword seed the first account when the
	// user table is empty. An empty AdminUsername disables seeding.
	AdminUsername string `yaml:"admin_username" envconfig:"ADMIN_USERNAME"`
	AdminPassword string `yaml:"admin_password" envconfig:"ADMIN_PASSWORD"`

	ContentCompression   string `yaml:"content_compression" envconfig:"CONTENT_COMPRESSION"`
	CompressionThreshold int    `yaml:"compression_threshold" envconfig:"COMPRESSION_THRESHOLD"`
}

// Options controls where Load looks for configuration sources.
type Options struct {
	// ConfigPath names a YAML file. When empty, BILLBOARD_CONFIG is consulted.
	ConfigPath string
	// EnvFile names a dotenv file loaded before the environment is read.
	// A missing file is ignored.
	EnvFile string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:           ":4000",
		OpsAddr:              ":9090",
		DatabasePath:         "billboard.db",
		SessionTTL:           24 * time.Hour,
		Timezone:             "Local",
		ReadTimeout:          30 * time.Second,
		WriteTimeout:         10 * time.Second,
		LogLevel:             "info",
		LogFormat:            "json",
		AdminUsername:        "admin",
		AdminPassword:        "password",
		ContentCompression:   "zstd",
		CompressionThreshold: 1024,
	}
}

// Load layers the configuration sources and validates the result.
//
// Later sources win: defaults, the YAML file, then the environment. Values
// from the dotenv file never override variables already set in the process.
func Load(opts Options) (Config, error) {
	cfg := Default()

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading %s: %w", envFile, err)
	}

	path := opts.ConfigPath
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvPrefix + "_CONFIG"))
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		var parseErr *envconfig.ParseError
		if errors.As(err, &parseErr) {
			return Config{}, fmt.Errorf("invalid configuration values: %s", parseErr.KeyName)
		}
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	// An empty file decodes to io.EOF and leaves the defaults in place.
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Validate reports missing and invalid settings, naming each offending key.
func (c Config) Validate() error {
	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if strings.TrimSpace(c.ListenAddr) == "" {
		missing = append(missing, "listen_addr")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		missing = append(missing, "database_path")
	}
	if c.AdminUsername != "" && c.AdminPassword == "" {
		missing = append(missing, "admin_password")
	}

	if c.SessionTTL <= 0 {
		invalid = append(invalid, "session_ttl")
	}
	if _, err := c.Location(); err != nil {
		invalid = append(invalid, "timezone")
	}
	if c.ReadTimeout <= 0 {
		invalid = append(invalid, "read_timeout")
	}
	if c.WriteTimeout <= 0 {
		invalid = append(invalid, "write_timeout")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		invalid = append(invalid, "log_level")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		invalid = append(invalid, "log_format")
	}
	switch strings.ToLower(c.ContentCompression) {
	case "zstd", "lz4", "none", "identity":
	default:
		invalid = append(invalid, "content_compression")
	}
	if c.CompressionThreshold < 0 {
		invalid = append(invalid, "compression_threshold")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// Location resolves Timezone. "Local" and the empty string select the host zone.
func (c Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Timezone)
	}
}
