package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Index    IndexConfig    `koanf:"index"`
	Purge    PurgeConfig    `koanf:"purge"`
	Lookup   LookupConfig   `koanf:"lookup"`
	Tasks    TasksConfig    `koanf:"tasks"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// IndexConfig controls the write path: the global on/off switch, the
// debounce policy and the exclusion lists.
type IndexConfig struct {
	Enabled           bool     `koanf:"enabled"`
	DebounceWindow    string   `koanf:"debounce_window"` // parsed and validated on startup
	SampleProbability float64  `koanf:"sample_probability"`
	SamplingEnabled   bool     `koanf:"sampling_enabled"`
	ExcludedGroups    []string `koanf:"excluded_groups"`
	ExcludedRanges    []string `koanf:"excluded_ranges"` // CIDR notation
}

// PurgeConfig controls the periodic retention sweep.
type PurgeConfig struct {
	Enabled      bool   `koanf:"enabled"`
	RetentionAge string `koanf:"retention_age"`
	Interval     string `koanf:"interval"`
	BatchSize    int    `koanf:"batch_size"`
}

type LookupConfig struct {
	BatchSize int `koanf:"batch_size"`
}

type TasksConfig struct {
	WorkerCount int `koanf:"worker_count"`
	QueueDepth  int `koanf:"queue_depth"`
}

func (c IndexConfig) Window() (time.Duration, error) {
	return time.ParseDuration(c.DebounceWindow)
}

func (c PurgeConfig) Retention() (time.Duration, error) {
	return time.ParseDuration(c.RetentionAge)
}

func (c PurgeConfig) SweepInterval() (time.Duration, error) {
	return time.ParseDuration(c.Interval)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	window, err := c.Index.Window()
	if err != nil {
		return fmt.Errorf("invalid index.debounce_window %q: %w", c.Index.DebounceWindow, err)
	}
	if window <= 0 {
		return fmt.Errorf("index.debounce_window must be > 0")
	}
	if c.Index.SampleProbability <= 0 || c.Index.SampleProbability > 1 {
		return fmt.Errorf("index.sample_probability must be in (0, 1]")
	}
	// Malformed excluded ranges are skipped at writer construction, not here:
	// a bad entry in an operator-supplied list must not block startup.

	retention, err := c.Purge.Retention()
	if err != nil {
		return fmt.Errorf("invalid purge.retention_age %q: %w", c.Purge.RetentionAge, err)
	}
	if retention <= 0 {
		return fmt.Errorf("purge.retention_age must be > 0")
	}
	interval, err := c.Purge.SweepInterval()
	if err != nil {
		return fmt.Errorf("invalid purge.interval %q: %w", c.Purge.Interval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("purge.interval must be > 0")
	}
	if c.Purge.BatchSize <= 0 {
		return fmt.Errorf("purge.batch_size must be > 0")
	}

	if c.Lookup.BatchSize <= 0 {
		return fmt.Errorf("lookup.batch_size must be > 0")
	}
	if c.Tasks.WorkerCount <= 0 {
		return fmt.Errorf("tasks.worker_count must be > 0")
	}
	if c.Tasks.QueueDepth <= 0 {
		return fmt.Errorf("tasks.queue_depth must be > 0")
	}

	return nil
}

// ParseExcludedRanges parses the configured CIDR list, skipping malformed
// entries. A bad entry is reported in the second return rather than treated
// as a match-all or a startup failure.
func (c IndexConfig) ParseExcludedRanges() ([]netip.Prefix, []string) {
	var (
		prefixes  []netip.Prefix
		malformed []string
	)
	for _, raw := range c.ExcludedRanges {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			// Bare addresses are accepted as single-address ranges.
			addr, addrErr := netip.ParseAddr(entry)
			if addrErr != nil {
				malformed = append(malformed, entry)
				continue
			}
			prefix = netip.PrefixFrom(addr, addr.BitLen())
		}
		prefixes = append(prefixes, prefix)
	}
	return prefixes, malformed
}

// Load parses config from file + env and validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":              8080,
		"server.host":              "0.0.0.0",
		"server.mode":              "release",
		"database.type":            "postgres",
		"database.dsn":             "",
		"database.max_open_conns":  25,
		"database.max_idle_conns":  25,
		"database.auto_migrate":    true,
		"index.enabled":            true,
		"index.debounce_window":    "1h",
		"index.sample_probability": 0.05,
		"index.sampling_enabled":   true,
		"index.excluded_groups":    []string{},
		"index.excluded_ranges":    []string{},
		"purge.enabled":            true,
		"purge.retention_age":      "2160h", // 90 days
		"purge.interval":           "1h",
		"purge.batch_size":         1000,
		"lookup.batch_size":        500,
		"tasks.worker_count":       4,
		"tasks.queue_depth":        1024,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("CENTRALINDEX_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CENTRALINDEX_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
