// Package config loads scanner configuration. Sources are layered in this
// order: struct defaults, an optional YAML file, then environment variables
// (a .env file in the working directory is read first if present).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hama-scanner/internal/indicator"
	"hama-scanner/internal/monitor"
)

// Config holds all application configuration.
type Config struct {
	LogLevel    string `yaml:"log_level" default:"info" validate:"oneof=trace debug info warn error"`
	MetricsAddr string `yaml:"metrics_addr" default:":9090"`

	// Indicator preset name, see indicator.PresetNames.
	Preset  string   `yaml:"preset" default:"hama100" validate:"required"`
	Symbols []string `yaml:"symbols"`

	Redis    RedisConfig      `yaml:"redis"`
	SQLite   SQLiteConfig     `yaml:"sqlite"`
	Monitor  monitor.Settings `yaml:"monitor"`
	Refresh  RefreshConfig    `yaml:"refresh"`
	Telegram TelegramConfig   `yaml:"telegram"`
	Webhook  WebhookConfig    `yaml:"webhook"`
	Kafka    KafkaConfig      `yaml:"kafka"`
	Gateway  GatewayConfig    `yaml:"gateway"`
}

// RedisConfig enables the snapshot cache, gainers list and signal publisher.
// An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"min=0"`

	BreakerFailures int           `yaml:"breaker_failures" default:"5" validate:"min=1"`
	BreakerReset    time.Duration `yaml:"breaker_reset" default:"30s"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" default:"data/bars.db" validate:"required"`
	// When set, bars of this timeframe are resampled up to the monitor
	// timeframe if the store has too few bars at that timeframe.
	BaseTimeframe string `yaml:"base_timeframe"`
	// Signals kept in the journal after pruning.
	JournalKeep int `yaml:"journal_keep" default:"10000" validate:"min=1"`
}

// RefreshConfig drives the snapshot freshness refresher.
type RefreshConfig struct {
	TTL       time.Duration `yaml:"ttl" default:"15m" validate:"gt=0"`
	Retention time.Duration `yaml:"retention" default:"24h" validate:"min=0"`
	Interval  time.Duration `yaml:"interval" default:"5m" validate:"gt=0"`
	Workers   int           `yaml:"workers" default:"4" validate:"min=1,max=64"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id" validate:"required_with=Token"`
}

type WebhookConfig struct {
	URL string `yaml:"url" validate:"omitempty,url"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" default:"hama.signals"`
}

type GatewayConfig struct {
	Enabled    bool `yaml:"enabled" default:"true"`
	ReplaySize int  `yaml:"replay_size" default:"500" validate:"min=1"`
	// Relay signals published to Redis by other scanner processes.
	RelayRedis bool `yaml:"relay_redis"`
}

// AsyncQueue is the per-sink buffer used for network notifiers.
const AsyncQueue = 256

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration. path may be empty, in which case only defaults
// and the environment are used.
func Load(path string) (*Config, error) {
	// Missing .env is fine.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Symbols = normalizeSymbols(cfg.Symbols)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section, including the monitor settings and preset.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := indicator.Preset(c.Preset); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return c.Monitor.Validate()
}

// Params resolves the configured indicator preset.
func (c *Config) Params() indicator.Params {
	p, _ := indicator.Preset(c.Preset)
	return p
}

func (c *Config) applyEnv() error {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)
	c.Preset = getEnv("HAMA_PRESET", c.Preset)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.SQLite.Path = getEnv("SQLITE_PATH", c.SQLite.Path)
	c.SQLite.BaseTimeframe = getEnv("BASE_TIMEFRAME", c.SQLite.BaseTimeframe)

	c.Telegram.Token = getEnv("TELEGRAM_BOT_TOKEN", c.Telegram.Token)
	c.Webhook.URL = getEnv("WEBHOOK_URL", c.Webhook.URL)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = splitList(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	var errs []error
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: TELEGRAM_CHAT_ID: %w", err))
		}
		c.Telegram.ChatID = id
	}
	if v := os.Getenv("CHECK_INTERVAL_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: CHECK_INTERVAL_SECONDS: %w", err))
		}
		c.Monitor.CheckIntervalSeconds = n
	}
	if v := os.Getenv("SIGNAL_COOLDOWN_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: SIGNAL_COOLDOWN_SECONDS: %w", err))
		}
		c.Monitor.SignalCooldownSeconds = n
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeSymbols upper-cases, trims and de-duplicates, keeping order.
func normalizeSymbols(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
