// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token        string  `yaml:"token"`
	Mode         string  `yaml:"mode"` // polling only for now
	Username     string  `yaml:"username"`
	Workers      int     `yaml:"workers"`       // update shards
	Language     string  `yaml:"language"`      // locale file under i18n/locales
	SingleTenant bool    `yaml:"single_tenant"` // all users share one channel pool
	AdminIDs     []int64 `yaml:"admin_ids"`
	RateLimit    int     `yaml:"rate_limit"` // messages per user per minute, 0 disables
}

type AuthConfig struct {
	Password string `yaml:"password"` // empty disables the gate
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
}

type AdminConfig struct {
	JWTSecret string        `yaml:"jwt_secret"` // empty disables the operator API
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres | sqlite
	URL      string `yaml:"url"`
	Path     string `yaml:"path"` // sqlite file
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string `yaml:"url"` // empty keeps sessions in memory
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SessionConfig struct {
	IdleTTL   time.Duration `yaml:"idle_ttl"`
	SweepSpec string        `yaml:"sweep_spec"` // robfig/cron spec
}

type BroadcastConfig struct {
	RatePerSec int           `yaml:"rate_per_sec"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
}

type Config struct {
	Bot       BotConfig       `yaml:"bot"`
	Auth      AuthConfig      `yaml:"auth"`
	Log       LogConfig       `yaml:"log"`
	HTTP      HTTPConfig      `yaml:"http"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Session   SessionConfig   `yaml:"session"`
	Broadcast BroadcastConfig `yaml:"broadcast"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads .env (if present), the YAML file at path (if present), then
// applies environment overrides, defaults and validation.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	var b []byte
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			b = data
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse builds a Config from YAML bytes plus the process environment.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if len(b) > 0 {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)

	// defaults
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "en"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3000
	}
	if cfg.HTTP.Timeout <= 0 {
		cfg.HTTP.Timeout = 10 * time.Second
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 30 * time.Minute
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/channels.db"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Session.IdleTTL <= 0 {
		cfg.Session.IdleTTL = 24 * time.Hour
	}
	if cfg.Session.SweepSpec == "" {
		cfg.Session.SweepSpec = "@every 1m"
	}
	if cfg.Broadcast.RatePerSec <= 0 {
		cfg.Broadcast.RatePerSec = 25
	}
	if cfg.Broadcast.LockTTL <= 0 {
		cfg.Broadcast.LockTTL = 10 * time.Minute
	}

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, errors.New("database.url is required for the postgres driver")
		}
	case "sqlite":
	default:
		return nil, fmt.Errorf("database.driver %q is not supported", cfg.Database.Driver)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("BOT_TOKEN", &cfg.Bot.Token)
	setString("BOT_PASSWORD", &cfg.Auth.Password)
	setString("DATABASE_URL", &cfg.Database.URL)
	setString("DATABASE_DRIVER", &cfg.Database.Driver)
	setString("REDIS_URL", &cfg.Redis.URL)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("ADMIN_JWT_SECRET", &cfg.Admin.JWTSecret)
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if v := os.Getenv("SINGLE_TENANT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Bot.SingleTenant = b
		}
	}
}
