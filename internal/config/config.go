// Package config loads host configuration from file, environment, and defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every recognized host option.
type Config struct {
	Server struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`

	Database struct {
		Driver string `mapstructure:"driver"` // sqlite3, mysql, postgres
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Plugin struct {
		Directory string `mapstructure:"directory"`
		HotReload struct {
			Enabled bool `mapstructure:"enabled"`
		} `mapstructure:"hot-reload"`
		Validation struct {
			Enabled bool `mapstructure:"enabled"`
		} `mapstructure:"validation"`
	} `mapstructure:"plugin"`

	DataSource struct {
		Cache struct {
			DefaultTTLMs int `mapstructure:"default-ttl-ms"`
		} `mapstructure:"cache"`
		FetchTimeoutMs int `mapstructure:"fetch-timeout-ms"`
	} `mapstructure:"datasource"`
}

// FetchTimeout returns the per-fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.DataSource.FetchTimeoutMs) * time.Millisecond
}

// DefaultCacheTTL returns the default data-source cache TTL as a duration.
func (c *Config) DefaultCacheTTL() time.Duration {
	return time.Duration(c.DataSource.Cache.DefaultTTLMs) * time.Millisecond
}

// Load reads configuration from the given file (optional), environment
// variables prefixed SITEFORGE_, and built-in defaults, in that precedence
// order (env beats file beats defaults).
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "file:siteforge.db?_foreign_keys=on")
	v.SetDefault("plugin.directory", "./plugins")
	v.SetDefault("plugin.hot-reload.enabled", false)
	v.SetDefault("plugin.validation.enabled", true)
	v.SetDefault("datasource.cache.default-ttl-ms", 60000)
	v.SetDefault("datasource.fetch-timeout-ms", 10000)

	v.SetEnvPrefix("SITEFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("siteforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/siteforge")
		// Missing config file is fine - defaults and env carry the day.
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite3", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}
	if cfg.DataSource.FetchTimeoutMs <= 0 {
		return fmt.Errorf("datasource.fetch-timeout-ms must be positive")
	}
	if cfg.DataSource.Cache.DefaultTTLMs <= 0 {
		return fmt.Errorf("datasource.cache.default-ttl-ms must be positive")
	}
	return nil
}
