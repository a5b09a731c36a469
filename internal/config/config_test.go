package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tempo-bot/tempomig/internal/testutil"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	testutil.Equal(t, "activity.json", cfg.Source.Path)
	testutil.Equal(t, 10, cfg.Database.MaxConns)
	testutil.Equal(t, 1, cfg.Database.MinConns)
	testutil.Equal(t, 500, cfg.Database.SlowQueryMS)
	testutil.Equal(t, "./backups", cfg.Backup.Dir)
	testutil.Equal(t, 0.0, cfg.Verify.SumTolerance)
	testutil.Equal(t, "info", cfg.Logging.Level)
	testutil.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TEMPO_DATABASE_URL", "postgres://localhost/tempo")
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"), nil)
	testutil.NoError(t, err)
	testutil.Equal(t, 10, cfg.Database.MaxConns)
	testutil.Equal(t, "postgres://localhost/tempo", cfg.Database.URL)
}

func TestLoadFromTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempomig.toml")
	content := `
[source]
path = "/data/activity.json"

[database]
url = "postgres://db.internal/tempo"
max_conns = 4
slow_query_ms = 250

[verify]
sum_tolerance = 2.5
`
	testutil.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, nil)
	testutil.NoError(t, err)
	testutil.Equal(t, "/data/activity.json", cfg.Source.Path)
	testutil.Equal(t, "postgres://db.internal/tempo", cfg.Database.URL)
	testutil.Equal(t, 4, cfg.Database.MaxConns)
	testutil.Equal(t, 250, cfg.Database.SlowQueryMS)
	testutil.Equal(t, 2.5, cfg.Verify.SumTolerance)
	// Unset sections keep their defaults.
	testutil.Equal(t, "./backups", cfg.Backup.Dir)
}

func TestEnvOverridesTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempomig.toml")
	testutil.NoError(t, os.WriteFile(path, []byte(`
[database]
url = "postgres://from-file/tempo"
`), 0o644))

	t.Setenv("TEMPO_DATABASE_URL", "postgres://from-env/tempo")
	t.Setenv("TEMPO_DATABASE_MAX_CONNS", "3")
	t.Setenv("TEMPO_LOG_LEVEL", "debug")

	cfg, err := Load(path, nil)
	testutil.NoError(t, err)
	testutil.Equal(t, "postgres://from-env/tempo", cfg.Database.URL)
	testutil.Equal(t, 3, cfg.Database.MaxConns)
	testutil.Equal(t, "debug", cfg.Logging.Level)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("TEMPO_DATABASE_URL", "postgres://from-env/tempo")
	t.Setenv("TEMPO_SOURCE_PATH", "/env/activity.json")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.toml"), map[string]string{
		"database-url": "postgres://from-flag/tempo",
		"source":       "/flag/activity.json",
	})
	testutil.NoError(t, err)
	testutil.Equal(t, "postgres://from-flag/tempo", cfg.Database.URL)
	testutil.Equal(t, "/flag/activity.json", cfg.Source.Path)
}

func TestEnvInvalidInteger(t *testing.T) {
	t.Setenv("TEMPO_DATABASE_URL", "postgres://localhost/tempo")
	t.Setenv("TEMPO_DATABASE_MAX_CONNS", "many")
	_, err := Load(filepath.Join(t.TempDir(), "none.toml"), nil)
	testutil.ErrorContains(t, err, "TEMPO_DATABASE_MAX_CONNS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing url", func(c *Config) { c.Database.URL = "" }, "database.url is required"},
		{"zero max conns", func(c *Config) { c.Database.MaxConns = 0 }, "max_conns"},
		{"negative min conns", func(c *Config) { c.Database.MinConns = -1 }, "min_conns"},
		{"min exceeds max", func(c *Config) { c.Database.MinConns = 20 }, "cannot exceed"},
		{"negative slow query", func(c *Config) { c.Database.SlowQueryMS = -1 }, "slow_query_ms"},
		{"empty backup dir", func(c *Config) { c.Backup.Dir = "" }, "backup.dir"},
		{"negative tolerance", func(c *Config) { c.Verify.SumTolerance = -0.5 }, "sum_tolerance"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Database.URL = "postgres://localhost/tempo"
			tt.mutate(cfg)
			err := cfg.Validate()
			testutil.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSlowThreshold(t *testing.T) {
	cfg := Default()
	testutil.Equal(t, int64(500), cfg.SlowThreshold().Milliseconds())
}

func TestGenerateDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "tempomig.toml")
	testutil.NoError(t, GenerateDefault(path))

	data, err := os.ReadFile(path)
	testutil.NoError(t, err)
	testutil.True(t, strings.Contains(string(data), "[database]"))

	t.Setenv("TEMPO_DATABASE_URL", "postgres://localhost/tempo")
	cfg, err := Load(path, nil)
	testutil.NoError(t, err)
	testutil.Equal(t, 500, cfg.Database.SlowQueryMS)
}

func TestToTOML(t *testing.T) {
	cfg := Default()
	cfg.Database.URL = "postgres://localhost/tempo"
	out, err := cfg.ToTOML()
	testutil.NoError(t, err)
	testutil.True(t, strings.Contains(out, "max_conns = 10"))
}
