package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level tempomig configuration.
type Config struct {
	Source   SourceConfig   `toml:"source"`
	Database DatabaseConfig `toml:"database"`
	Backup   BackupConfig   `toml:"backup"`
	Verify   VerifyConfig   `toml:"verify"`
	Logging  LoggingConfig  `toml:"logging"`
}

type SourceConfig struct {
	Path string `toml:"path"`
}

type DatabaseConfig struct {
	URL         string `toml:"url"`
	MaxConns    int    `toml:"max_conns"`
	MinConns    int    `toml:"min_conns"`
	SlowQueryMS int    `toml:"slow_query_ms"`
}

type BackupConfig struct {
	Dir string `toml:"dir"`
}

type VerifyConfig struct {
	SumTolerance float64 `toml:"sum_tolerance"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Path: "activity.json",
		},
		Database: DatabaseConfig{
			MaxConns:    10,
			MinConns:    1,
			SlowQueryMS: 500,
		},
		Backup: BackupConfig{
			Dir: "./backups",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration with priority: defaults → tempomig.toml → env vars
// → CLI flags. The flags parameter allows CLI flag overrides to be passed in.
func Load(configPath string, flags map[string]string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		configPath = "tempomig.toml"
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	applyFlags(cfg, flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (or set TEMPO_DATABASE_URL)")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database.max_conns must be at least 1, got %d", c.Database.MaxConns)
	}
	if c.Database.MinConns < 0 {
		return fmt.Errorf("database.min_conns must be non-negative, got %d", c.Database.MinConns)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed database.max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Database.SlowQueryMS < 0 {
		return fmt.Errorf("database.slow_query_ms must be non-negative, got %d", c.Database.SlowQueryMS)
	}
	if c.Backup.Dir == "" {
		return fmt.Errorf("backup.dir is required")
	}
	if c.Verify.SumTolerance < 0 {
		return fmt.Errorf("verify.sum_tolerance must be non-negative, got %g", c.Verify.SumTolerance)
	}
	if c.Logging.Level != "" {
		switch c.Logging.Level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.level must be one of: debug, info, warn, error; got %q", c.Logging.Level)
		}
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

// SlowThreshold returns the slow-statement logging threshold as a duration.
func (c *Config) SlowThreshold() time.Duration {
	return time.Duration(c.Database.SlowQueryMS) * time.Millisecond
}

// GenerateDefault writes a commented default tempomig.toml to the given path.
func GenerateDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultTOML), 0o644)
}

// ToTOML returns the config serialized as TOML.
func (c *Config) ToTOML() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// envInt reads an integer from the named environment variable.
// Returns an error if the value is set but not a valid integer.
func envInt(name string, dest *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q is not an integer", name, v)
	}
	*dest = n
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("TEMPO_SOURCE_PATH"); v != "" {
		cfg.Source.Path = v
	}
	if v := os.Getenv("TEMPO_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if err := envInt("TEMPO_DATABASE_MAX_CONNS", &cfg.Database.MaxConns); err != nil {
		return err
	}
	if err := envInt("TEMPO_DATABASE_MIN_CONNS", &cfg.Database.MinConns); err != nil {
		return err
	}
	if err := envInt("TEMPO_DATABASE_SLOW_QUERY_MS", &cfg.Database.SlowQueryMS); err != nil {
		return err
	}
	if v := os.Getenv("TEMPO_BACKUP_DIR"); v != "" {
		cfg.Backup.Dir = v
	}
	if v := os.Getenv("TEMPO_VERIFY_SUM_TOLERANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid value for TEMPO_VERIFY_SUM_TOLERANCE: %q is not a number", v)
		}
		cfg.Verify.SumTolerance = f
	}
	if v := os.Getenv("TEMPO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TEMPO_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	return nil
}

func applyFlags(cfg *Config, flags map[string]string) {
	if v := flags["source"]; v != "" {
		cfg.Source.Path = v
	}
	if v := flags["database-url"]; v != "" {
		cfg.Database.URL = v
	}
	if v := flags["backup-dir"]; v != "" {
		cfg.Backup.Dir = v
	}
	if v := flags["log-level"]; v != "" {
		cfg.Logging.Level = v
	}
}

const defaultTOML = `# tempomig configuration.
# Values may be overridden with TEMPO_* environment variables and CLI flags.

[source]
# Path to the legacy activity.json document.
path = "activity.json"

[database]
# PostgreSQL connection string for the migration target.
url = ""
max_conns = 10
min_conns = 1
# Statements slower than this are logged at warn level.
slow_query_ms = 500

[backup]
# Directory for pre-migration snapshots of the source file and target schema.
dir = "./backups"

[verify]
# Maximum absolute drift allowed between source and target total-time sums.
sum_tolerance = 0.0

[logging]
# Level: debug, info, warn, error.
level = "info"
# Format: text or json.
format = "text"
`
