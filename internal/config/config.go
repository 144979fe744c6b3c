// Package config loads satprep settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultBankURL      = "https://qbank-api.collegeboard.org/msreportingquestionbank-prod/questionbank/digital"
	DefaultDisclosedURL = "https://saic.collegeboard.org/disclosed"
)

// Config holds all runtime settings.
type Config struct {
	// DBPath is the SQLite file. Empty means the XDG default.
	DBPath string

	QuestionBank QuestionBankConfig
	Session      SessionConfig
	Stats        StatsConfig
	Server       ServerConfig
	Log          LogConfig
}

// QuestionBankConfig locates the remote question bank.
type QuestionBankConfig struct {
	BankURL      string
	DisclosedURL string
	Timeout      time.Duration // per request
	BatchSize    int
}

// SessionConfig tunes persistence of the running session.
type SessionConfig struct {
	HistoryLimit int
	SaveDebounce time.Duration
	Heartbeat    time.Duration
}

// StatsConfig configures where answer statistics are published in addition
// to the local store. An empty AMQPURL disables publishing.
type StatsConfig struct {
	AMQPURL    string
	Exchange   string
	RoutingKey string
}

// ServerConfig configures `satprep serve`.
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // empty means stderr
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		QuestionBank: QuestionBankConfig{
			BankURL:      DefaultBankURL,
			DisclosedURL: DefaultDisclosedURL,
			Timeout:      15 * time.Second,
			BatchSize:    22,
		},
		Session: SessionConfig{
			HistoryLimit: 20,
			SaveDebounce: time.Second,
			Heartbeat:    30 * time.Second,
		},
		Stats: StatsConfig{
			Exchange:   "satprep.statistics",
			RoutingKey: "answer.checked",
		},
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadEnvFile loads variables from path into the process environment
// without overriding values already set. An empty path loads ./.env and a
// missing default file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ConfigFromEnv builds a Config from SATPREP_* environment variables,
// falling back to defaults for unset values.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	cfg.DBPath = envOr("SATPREP_DB", cfg.DBPath)

	cfg.QuestionBank.BankURL = envOr("SATPREP_BANK_URL", cfg.QuestionBank.BankURL)
	cfg.QuestionBank.DisclosedURL = envOr("SATPREP_DISCLOSED_URL", cfg.QuestionBank.DisclosedURL)
	cfg.QuestionBank.Timeout = envDuration("SATPREP_HTTP_TIMEOUT", cfg.QuestionBank.Timeout)
	cfg.QuestionBank.BatchSize = envInt("SATPREP_BATCH_SIZE", cfg.QuestionBank.BatchSize)

	cfg.Session.HistoryLimit = envInt("SATPREP_HISTORY_LIMIT", cfg.Session.HistoryLimit)
	cfg.Session.SaveDebounce = envDuration("SATPREP_SAVE_DEBOUNCE", cfg.Session.SaveDebounce)
	cfg.Session.Heartbeat = envDuration("SATPREP_HEARTBEAT", cfg.Session.Heartbeat)

	cfg.Stats.AMQPURL = envOr("SATPREP_STATS_AMQP_URL", cfg.Stats.AMQPURL)
	cfg.Stats.Exchange = envOr("SATPREP_STATS_EXCHANGE", cfg.Stats.Exchange)
	cfg.Stats.RoutingKey = envOr("SATPREP_STATS_ROUTING_KEY", cfg.Stats.RoutingKey)

	cfg.Server.Addr = envOr("SATPREP_HTTP_ADDR", cfg.Server.Addr)
	cfg.Server.CORSOrigins = csvOr("SATPREP_CORS_ORIGINS", cfg.Server.CORSOrigins)

	cfg.Log.Level = envOr("SATPREP_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envOr("SATPREP_LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = envOr("SATPREP_LOG_FILE", cfg.Log.File)

	return cfg
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	for name, raw := range map[string]string{
		"SATPREP_BANK_URL":      c.QuestionBank.BankURL,
		"SATPREP_DISCLOSED_URL": c.QuestionBank.DisclosedURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.QuestionBank.BatchSize <= 0 {
		return fmt.Errorf("SATPREP_BATCH_SIZE must be positive, got %d", c.QuestionBank.BatchSize)
	}
	if c.Session.HistoryLimit <= 0 {
		return fmt.Errorf("SATPREP_HISTORY_LIMIT must be positive, got %d", c.Session.HistoryLimit)
	}
	if c.Session.SaveDebounce < 0 {
		return fmt.Errorf("SATPREP_SAVE_DEBOUNCE must not be negative")
	}
	if c.Session.Heartbeat <= 0 {
		return fmt.Errorf("SATPREP_HEARTBEAT must be positive")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("SATPREP_LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func csvOr(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
