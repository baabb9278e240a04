package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	if yaml != "" {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Empty(t, cfg.API.BaseURL)
	assert.True(t, cfg.Activity.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Activity.Cadence)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, filepath.Join(cfg.StateDir, "journal.db"), cfg.JournalPath())
	assert.Equal(t, filepath.Join(cfg.StateDir, "session.yaml"), cfg.SessionPath())
	assert.Equal(t, "localhost:8080", cfg.WebAddr())
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	cfg, err := Load(newViper(t, `
state_dir: /tmp/aletheia-test
api:
  base_url: https://planner.example.com/
  timeout: 5s
activity:
  cadence: 100ms
  templates:
    - message: "Planning {goal}"
    - level: WARN
      source: MONITOR
      message: "Session {session} ready"
journal:
  enabled: false
  path: /tmp/j.db
web:
  host: 0.0.0.0
  port: 9090
`))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/aletheia-test", cfg.StateDir)
	assert.Equal(t, "https://planner.example.com/", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 100*time.Millisecond, cfg.Activity.Cadence)
	require.Len(t, cfg.Activity.Templates, 2)
	assert.Equal(t, "WARN", cfg.Activity.Templates[1].Level)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, "/tmp/j.db", cfg.JournalPath())
	assert.Equal(t, "0.0.0.0:9090", cfg.WebAddr())
}

func TestLoad_RejectsSchemaViolations(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown api key":   "api:\n  retries: 3\n",
		"bad timeout":       "api:\n  timeout: soon\n",
		"bad base url":      "api:\n  base_url: ftp://x\n",
		"bad template":      "activity:\n  templates:\n    - level: LOUD\n      message: x\n",
		"port out of range": "web:\n  port: 70000\n",
		"bad flag":          "journal:\n  enabled: maybe\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(newViper(t, doc))
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), "config schema validation failed"), err.Error())
		})
	}
}

func TestLoad_RejectsZeroTimeout(t *testing.T) {
	t.Parallel()

	_, err := Load(newViper(t, "api:\n  timeout: 0s\n"))
	assert.EqualError(t, err, "api.timeout must be > 0")
}

func TestResolveBaseURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://planner.example.com", ResolveBaseURL(" https://planner.example.com/ ", "localhost"))
	assert.Equal(t, LocalBaseURL, ResolveBaseURL("", "localhost"))
	assert.Equal(t, LocalBaseURL, ResolveBaseURL("", "127.0.0.1"))
	assert.Equal(t, LocalBaseURL, ResolveBaseURL("", "[::1]"))
	assert.Equal(t, ProductionBaseURL, ResolveBaseURL("", "aletheia.example.com"))
	assert.Equal(t, ProductionBaseURL, ResolveBaseURL("", "0.0.0.0"))
	assert.Equal(t, ProductionBaseURL, ResolveBaseURL("", ""))
}
