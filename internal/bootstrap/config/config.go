package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"shelfd/internal/bootstrap/logging"
	"shelfd/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Routes   RoutesConfig   `mapstructure:"routes"`
	Resolver ResolverConfig `mapstructure:"resolver"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	SiteName string `mapstructure:"site_name"`
	SiteURL  string `mapstructure:"site_url"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type HTTPConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
}

type CacheConfig struct {
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	Coalesce            bool          `mapstructure:"coalesce"`
	CacheErrorResponses bool          `mapstructure:"cache_error_responses"`
}

type RoutesConfig struct {
	TTL RouteTTLConfig `mapstructure:"ttl"`
}

type RouteTTLConfig struct {
	Home   time.Duration `mapstructure:"home"`
	Detail time.Duration `mapstructure:"detail"`
	List   time.Duration `mapstructure:"list"`
	Read   time.Duration `mapstructure:"read"`
	Search time.Duration `mapstructure:"search"`
	Genres time.Duration `mapstructure:"genres"`
	Genre  time.Duration `mapstructure:"genre"`
	Type   time.Duration `mapstructure:"type"`
	Status time.Duration `mapstructure:"status"`
}

type ResolverConfig struct {
	// BatchSize 0 resolves a whole page in one grouped query.
	BatchSize int `mapstructure:"batch_size"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("http_addr", cfg.HTTP.Addr),
		slog.Bool("cache_coalesce", cfg.Cache.Coalesce),
	)

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Cache.SweepInterval <= 0 {
		return errors.New("cache.sweep_interval must be positive")
	}
	if c.Resolver.BatchSize < 0 {
		return errors.New("resolver.batch_size must not be negative")
	}

	ttls := map[string]time.Duration{
		"home":   c.Routes.TTL.Home,
		"detail": c.Routes.TTL.Detail,
		"list":   c.Routes.TTL.List,
		"read":   c.Routes.TTL.Read,
		"search": c.Routes.TTL.Search,
		"genres": c.Routes.TTL.Genres,
		"genre":  c.Routes.TTL.Genre,
		"type":   c.Routes.TTL.Type,
		"status": c.Routes.TTL.Status,
	}
	for name, ttl := range ttls {
		if ttl < 0 {
			return fmt.Errorf("routes.ttl.%s must not be negative", name)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "shelfd")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.site_name", "Shelf")
	v.SetDefault("app.site_url", "http://localhost:8080")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "data/shelf.sqlite")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_header_timeout", 5*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.request_timeout", 15*time.Second)

	v.SetDefault("cache.sweep_interval", 5*time.Minute)
	v.SetDefault("cache.coalesce", false)
	v.SetDefault("cache.cache_error_responses", true)

	v.SetDefault("routes.ttl.home", 180*time.Second)
	v.SetDefault("routes.ttl.detail", 180*time.Second)
	v.SetDefault("routes.ttl.list", 300*time.Second)
	v.SetDefault("routes.ttl.read", 600*time.Second)
	v.SetDefault("routes.ttl.search", 120*time.Second)
	v.SetDefault("routes.ttl.genres", 3600*time.Second)
	v.SetDefault("routes.ttl.genre", 300*time.Second)
	v.SetDefault("routes.ttl.type", 300*time.Second)
	v.SetDefault("routes.ttl.status", 300*time.Second)

	v.SetDefault("resolver.batch_size", 0)
}
