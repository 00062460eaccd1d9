package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	LockLocal = "local"
	LockRedis = "redis"
)

// Duration is a time.Duration written as a Go duration string in JSON ("24h")
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"90s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Config is the server configuration
type Config struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	Debug bool   `json:"debug"`

	Store   StoreConfig   `json:"store"`
	Lock    LockConfig    `json:"lock"`
	Cleanup CleanupConfig `json:"cleanup"`
	Ngrok   NgrokConfig   `json:"ngrok"`
}

// StoreConfig selects where games live
type StoreConfig struct {
	Driver           string `json:"driver"`            // "memory" or "postgres"
	SnapshotPath     string `json:"snapshot_path"`     // memory only; empty disables snapshots
	SnapshotSchedule string `json:"snapshot_schedule"` // cron spec
	PostgresDSN      string `json:"postgres_dsn"`
}

// LockConfig selects how per-game locks are shared
type LockConfig struct {
	Driver        string   `json:"driver"` // "local" or "redis"
	RedisAddr     string   `json:"redis_addr"`
	RedisPassword string   `json:"redis_password"`
	RedisDB       int      `json:"redis_db"`
	TTL           Duration `json:"ttl"`
}

// CleanupConfig controls removal of idle games
type CleanupConfig struct {
	Schedule string   `json:"schedule"` // cron spec; empty disables cleanup
	GameTTL  Duration `json:"game_ttl"`
}

// NgrokConfig controls the optional public tunnel
type NgrokConfig struct {
	Enabled   bool   `json:"enabled"`
	AuthToken string `json:"auth_token"`
	Domain    string `json:"domain"`
}

// Default returns the configuration used when nothing else is given
func Default() *Config {
	return &Config{
		Host: "localhost",
		Port: 8080,
		Store: StoreConfig{
			Driver:           StoreMemory,
			SnapshotSchedule: "@every 1m",
		},
		Lock: LockConfig{
			Driver:    LockLocal,
			RedisAddr: "localhost:6379",
			TTL:       Duration(10 * time.Second),
		},
		Cleanup: CleanupConfig{
			Schedule: "@hourly",
			GameTTL:  Duration(24 * time.Hour),
		},
	}
}

// LoadFile reads a JSON file on top of the defaults. Fields missing from the
// file keep their default value.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// Addr returns host:port
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks the configuration for contradictions
func (c *Config) Validate() error {
	var problems []string

	if c.Port < 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}

	switch c.Store.Driver {
	case StoreMemory:
		if c.Store.SnapshotPath != "" && c.Store.SnapshotSchedule != "" {
			if _, err := cron.ParseStandard(c.Store.SnapshotSchedule); err != nil {
				problems = append(problems, fmt.Sprintf("snapshot schedule %q: %v", c.Store.SnapshotSchedule, err))
			}
		}
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			problems = append(problems, "postgres store needs a DSN")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Lock.Driver {
	case LockLocal:
	case LockRedis:
		if c.Lock.RedisAddr == "" {
			problems = append(problems, "redis lock needs an address")
		}
		if c.Lock.TTL <= 0 {
			problems = append(problems, "redis lock TTL must be positive")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown lock driver %q", c.Lock.Driver))
	}

	if c.Cleanup.Schedule != "" {
		if _, err := cron.ParseStandard(c.Cleanup.Schedule); err != nil {
			problems = append(problems, fmt.Sprintf("cleanup schedule %q: %v", c.Cleanup.Schedule, err))
		}
		if c.Cleanup.GameTTL <= 0 {
			problems = append(problems, "game TTL must be positive")
		}
	}

	if c.Ngrok.Enabled && c.Ngrok.AuthToken == "" {
		problems = append(problems, "ngrok enabled without an auth token")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
