package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Cart     CartConfig     `mapstructure:"cart"`
	Session  SessionConfig  `mapstructure:"session"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// CatalogConfig selects where the product list comes from: file, http,
// postgres or memory.
type CatalogConfig struct {
	Source        string        `mapstructure:"source"`
	Path          string        `mapstructure:"path"`
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Retries       int           `mapstructure:"retries"`
	FeaturedLimit int           `mapstructure:"featured_limit"`
}

// CartConfig selects the persistence slot backend: memory, file, redis or
// postgres.
type CartConfig struct {
	Slot            string `mapstructure:"slot"`
	FileDir         string `mapstructure:"file_dir"`
	QuantityPolicy  string `mapstructure:"quantity_policy"`
	RateLimitPerMin int    `mapstructure:"rate_limit_per_min"`
}

type SessionConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

// Load reads config.yaml (or path when non-empty) with environment overrides.
// A missing config file is not an error; every key has a default.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Catalog.Source {
	case "file", "http", "postgres", "memory":
	default:
		return fmt.Errorf("catalog.source %q: want file, http, postgres or memory", c.Catalog.Source)
	}
	switch c.Cart.Slot {
	case "memory", "file", "redis", "postgres":
	default:
		return fmt.Errorf("cart.slot %q: want memory, file, redis or postgres", c.Cart.Slot)
	}
	if c.Catalog.Source == "http" && c.Catalog.URL == "" {
		return errors.New("catalog.url is required for the http source")
	}
	if (c.Catalog.Source == "postgres" || c.Cart.Slot == "postgres") && c.Database.DSN == "" {
		return errors.New("database.dsn is required for postgres backends")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_header_timeout", 5*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")

	v.SetDefault("catalog.source", "file")
	v.SetDefault("catalog.path", "data/products.json")
	v.SetDefault("catalog.url", "")
	v.SetDefault("catalog.timeout", 3*time.Second)
	v.SetDefault("catalog.retries", 0)
	v.SetDefault("catalog.featured_limit", 4)

	v.SetDefault("cart.slot", "memory")
	v.SetDefault("cart.file_dir", "var/carts")
	v.SetDefault("cart.quantity_policy", "clamp")
	v.SetDefault("cart.rate_limit_per_min", 120)

	v.SetDefault("session.secret", "")
	v.SetDefault("session.ttl", 30*24*time.Hour)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 30*24*time.Hour)

	v.SetDefault("database.dsn", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.token", "")
}
