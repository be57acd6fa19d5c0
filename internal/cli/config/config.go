package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up without an explicit path,
// with a .yml or .yaml extension
const FileName = "gqlmeta"

// EnvPrefix prefixes environment overrides, e.g. GQLMETA_SERVER_PORT
const EnvPrefix = "GQLMETA"

// Config represents the gqlmeta configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Hooks    HooksConfig    `mapstructure:"hooks"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	GraphQLPath     string        `mapstructure:"graphql_path"`
	Playground      bool          `mapstructure:"playground"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// AuthConfig configures bearer token verification
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Required  bool          `mapstructure:"required"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// SchemaConfig configures schema synthesis
type SchemaConfig struct {
	EntitiesFile           string `mapstructure:"entities_file"`
	CaseInsensitiveFilters bool   `mapstructure:"case_insensitive_filters"`
	DefaultPageSize        int    `mapstructure:"default_page_size"`
	MaxPageSize            int    `mapstructure:"max_page_size"`
}

// DatabaseConfig represents database configuration. Entities declared with
// an sql provider need it.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// RedisConfig enables the record cache when Addr is set
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// HooksConfig sizes the worker pool running async hooks
type HooksConfig struct {
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LoggingConfig configures the process logger
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

var defaults = map[string]any{
	"server.host":                     "0.0.0.0",
	"server.port":                     8080,
	"server.graphql_path":             "/graphql",
	"server.playground":               true,
	"server.shutdown_timeout":         30 * time.Second,
	"auth.jwt_secret":                 "",
	"auth.required":                   false,
	"auth.token_ttl":                  24 * time.Hour,
	"schema.entities_file":            "entities.yml",
	"schema.case_insensitive_filters": false,
	"schema.default_page_size":        50,
	"schema.max_page_size":            500,
	"database.driver":                 "postgres",
	"database.url":                    "",
	"redis.addr":                      "",
	"redis.password":                  "",
	"redis.db":                        0,
	"redis.ttl":                       5 * time.Minute,
	"hooks.workers":                   4,
	"hooks.queue_size":                100,
	"hooks.timeout":                   30 * time.Second,
	"logging.level":                   "info",
	"logging.format":                  "json",
	"logging.file":                    "",
	"logging.max_size_mb":             100,
	"logging.max_backups":             3,
	"logging.max_age_days":            28,
}

// Load reads the configuration from path, or from gqlmeta.yml in the
// current directory when path is empty. A missing default file is not an
// error. Environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// relative entity files are resolved against the config file
	if used := v.ConfigFileUsed(); used != "" && config.Schema.EntitiesFile != "" && !filepath.IsAbs(config.Schema.EntitiesFile) {
		config.Schema.EntitiesFile = filepath.Join(filepath.Dir(used), config.Schema.EntitiesFile)
	}
	return &config, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if !strings.HasPrefix(c.Server.GraphQLPath, "/") {
		errs = append(errs, fmt.Errorf("server.graphql_path must start with '/', got: %s", c.Server.GraphQLPath))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Auth.Required && c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.required needs auth.jwt_secret"))
	}
	if c.Schema.DefaultPageSize < 0 || c.Schema.MaxPageSize < 0 {
		errs = append(errs, errors.New("schema page sizes must not be negative"))
	}
	if c.Schema.MaxPageSize > 0 && c.Schema.DefaultPageSize > c.Schema.MaxPageSize {
		errs = append(errs, fmt.Errorf("schema.default_page_size (%d) exceeds schema.max_page_size (%d)",
			c.Schema.DefaultPageSize, c.Schema.MaxPageSize))
	}
	if c.Hooks.Workers < 1 || c.Hooks.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("hooks.workers must be at least 1 and hooks.queue_size not negative, got %d and %d",
			c.Hooks.Workers, c.Hooks.QueueSize))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres, sqlite or mysql, got: %s", c.Database.Driver))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got: %s", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// FindConfigFile walks up from the working directory to the nearest
// gqlmeta.yml or gqlmeta.yaml
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, ext := range []string{".yml", ".yaml"} {
			candidate := filepath.Join(dir, FileName+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s.yml found", FileName)
		}
		dir = parent
	}
}
