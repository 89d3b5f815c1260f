// Package config loads library configuration from the environment,
// with an optional YAML file underneath. The environment variable names
// are the ones the karaoke services have always used, so a lift into
// this library needs no deployment changes.
//
// Precedence, lowest to highest: built-in defaults, YAML file, then
// environment. Callers load a Config once at startup and pass it down;
// there are no package-level globals.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/svidal-nlive/karaoke-shared/errors"
	"github.com/svidal-nlive/karaoke-shared/notify"
	"github.com/svidal-nlive/karaoke-shared/retry"
	"github.com/svidal-nlive/karaoke-shared/status"
)

// Dirs holds the pipeline's working directories.
type Dirs struct {
	Input  string `yaml:"input" json:"input"`
	Queue  string `yaml:"queue" json:"queue"`
	Meta   string `yaml:"meta" json:"meta"`
	Stems  string `yaml:"stems" json:"stems"`
	Output string `yaml:"output" json:"output"`
	Org    string `yaml:"org" json:"org"`
	Logs   string `yaml:"logs" json:"logs"`
}

// Retry holds the stage retry policy settings.
type Retry struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	Multiplier  float64       `yaml:"multiplier" json:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// Policy converts the settings to a retry.Policy with jitter enabled.
func (r Retry) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		Multiplier:  r.Multiplier,
		MaxDelay:    r.MaxDelay,
		Jitter:      true,
	}
}

// Config is the full library configuration.
type Config struct {
	Redis    status.RedisConfig `yaml:"redis" json:"redis"`
	NATSURL  string             `yaml:"nats_url" json:"nats_url"`
	Notify   notify.Config      `yaml:"notify" json:"notify"`
	Dirs     Dirs               `yaml:"dirs" json:"dirs"`
	Retry    Retry              `yaml:"retry" json:"retry"`
	LogLevel string             `yaml:"log_level" json:"log_level"`
}

// Default returns the built-in defaults, matching what the services
// assume when nothing is configured.
func Default() Config {
	return Config{
		Redis: status.RedisConfig{
			Addr: "redis:6379",
		},
		Dirs: Dirs{
			Input:  "/input",
			Queue:  "/queue",
			Meta:   "/meta",
			Stems:  "/stems",
			Output: "/output",
			Org:    "/organized",
			Logs:   "/logs",
		},
		Retry: Retry{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			Multiplier:  2.0,
			MaxDelay:    time.Minute,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty or the file does not exist), then the
// environment, then validation.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Optional file; environment alone is a valid setup.
		case err != nil:
			return Config{}, errors.WrapInvalid(err, "config", "Load", "read file")
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, errors.WrapInvalid(err, "config", "Load", "parse yaml")
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays the original service environment variables.
func (c *Config) applyEnv() {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	if host != "" {
		if port == "" {
			port = "6379"
		}
		c.Redis.Addr = net.JoinHostPort(host, port)
	}
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	setString(&c.NATSURL, "NATS_URL")

	setString(&c.Notify.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Notify.Telegram.ChatID, "TELEGRAM_CHAT_ID")
	setString(&c.Notify.Slack.WebhookURL, "SLACK_WEBHOOK_URL")
	if v := os.Getenv("NOTIFY_EMAILS"); v != "" {
		c.Notify.Email.Recipients = splitList(v)
	}
	setString(&c.Notify.Email.Server, "SMTP_SERVER")
	setInt(&c.Notify.Email.Port, "SMTP_PORT")
	setString(&c.Notify.Email.Username, "SMTP_USERNAME")
	setString(&c.Notify.Email.Password, "SMTP_PASSWORD")
	setString(&c.Notify.Email.From, "SMTP_FROM")

	setString(&c.Dirs.Input, "INPUT_DIR")
	setString(&c.Dirs.Queue, "QUEUE_DIR")
	setString(&c.Dirs.Meta, "META_DIR")
	setString(&c.Dirs.Stems, "STEMS_DIR")
	setString(&c.Dirs.Output, "OUTPUT_DIR")
	setString(&c.Dirs.Org, "ORG_DIR")
	setString(&c.Dirs.Logs, "LOGS_DIR")

	setInt(&c.Retry.MaxAttempts, "MAX_RETRIES")
	setString(&c.LogLevel, "LOG_LEVEL")
}

// Validate checks values that would otherwise fail deep inside a
// service at an awkward time.
func (c Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: retry max_attempts must be >= 1, got %d",
				errors.ErrInvalidConfig, c.Retry.MaxAttempts),
			"config", "Validate", "retry")
	}
	if c.Retry.Multiplier < 1 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: retry multiplier must be >= 1, got %g",
				errors.ErrInvalidConfig, c.Retry.Multiplier),
			"config", "Validate", "retry")
	}
	if p := c.Notify.Email.Port; p < 0 || p > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: smtp port %d out of range", errors.ErrInvalidConfig, p),
			"config", "Validate", "smtp")
	}
	return nil
}

// Level parses LogLevel into a slog.Level.
func (c Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: unknown log level %q", errors.ErrInvalidConfig, c.LogLevel),
			"config", "Level", "parse")
	}
}

// NewLogger builds the service logger writing JSON lines to w at the
// configured level. Unparseable levels fall back to info so logging
// itself never takes a service down.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
