// Package config reads the daemon configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/danpasecinic/taskwarden/internal/logging"
	"github.com/danpasecinic/taskwarden/internal/task"
)

const (
	JournalMemory   = "memory"
	JournalPostgres = "postgres"
)

// Config is the daemon configuration
type Config struct {
	Listen        string
	MaxTasks      int
	SweepInterval time.Duration
	StopRetries   int
	StopInterval  time.Duration
	Demo          bool
	JournalType   string
	DatabaseURL   string
	Log           logging.Options
}

// Default returns the configuration used when no variable is set
func Default() Config {
	return Config{
		Listen:        ":8080",
		MaxTasks:      task.DefaultMaxTasks,
		SweepInterval: task.DefaultSweepInterval,
		StopRetries:   task.DefaultStopRetries,
		StopInterval:  task.DefaultStopInterval,
		JournalType:   JournalMemory,
		Log:           logging.DefaultOptions(),
	}
}

// Load reads a .env file if one exists, then the process environment
func Load() (Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, starting from Default
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	p := parser{lookup: lookup}

	p.str("WARDEN_LISTEN", &cfg.Listen)
	p.integer("WARDEN_MAX_TASKS", &cfg.MaxTasks)
	p.duration("WARDEN_SWEEP_INTERVAL", &cfg.SweepInterval)
	p.integer("WARDEN_STOP_RETRIES", &cfg.StopRetries)
	p.duration("WARDEN_STOP_INTERVAL", &cfg.StopInterval)
	p.boolean("WARDEN_DEMO", &cfg.Demo)
	p.str("JOURNAL_TYPE", &cfg.JournalType)
	p.str("DATABASE_URL", &cfg.DatabaseURL)
	p.str("LOG_LEVEL", &cfg.Log.Level)
	p.str("LOG_FORMAT", &cfg.Log.Format)
	p.str("LOG_FILE", &cfg.Log.File)

	if p.err != nil {
		return Config{}, p.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and cross-field requirements
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("WARDEN_LISTEN must not be empty")
	}
	if c.MaxTasks <= 0 {
		return fmt.Errorf("WARDEN_MAX_TASKS must be positive, got %d", c.MaxTasks)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("WARDEN_SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.StopRetries <= 0 {
		return fmt.Errorf("WARDEN_STOP_RETRIES must be positive, got %d", c.StopRetries)
	}
	if c.StopInterval <= 0 {
		return fmt.Errorf("WARDEN_STOP_INTERVAL must be positive, got %s", c.StopInterval)
	}

	switch c.JournalType {
	case JournalMemory:
	case JournalPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required when JOURNAL_TYPE=postgres")
		}
	default:
		return fmt.Errorf("unknown JOURNAL_TYPE: %s (valid options: memory, postgres)", c.JournalType)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// TaskConfig returns the registry settings carried by c
func (c Config) TaskConfig() task.Config {
	return task.Config{
		MaxTasks:      c.MaxTasks,
		SweepInterval: c.SweepInterval,
		StopRetries:   c.StopRetries,
		StopInterval:  c.StopInterval,
	}
}

// parser keeps the first error so callers can parse every variable in a row
type parser struct {
	lookup func(string) (string, bool)
	err    error
}

func (p *parser) get(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (p *parser) str(key string, dst *string) {
	if v, ok := p.get(key); ok {
		*dst = v
	}
}

func (p *parser) integer(key string, dst *int) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("%s: invalid integer %q", key, v)
		return
	}
	*dst = n
}

func (p *parser) duration(key string, dst *time.Duration) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.err = fmt.Errorf("%s: invalid duration %q", key, v)
		return
	}
	*dst = d
}

func (p *parser) boolean(key string, dst *bool) {
	v, ok := p.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = fmt.Errorf("%s: invalid boolean %q", key, v)
		return
	}
	*dst = b
}
