// Package config provides configuration loading and management for aletheia.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backend locations used when no base URL is configured.
const (
	LocalBaseURL      = "http://localhost:8000"
	ProductionBaseURL = "https://aletheia-backend-yu1n.onrender.com"
)

// Config is the root configuration.
type Config struct {
	StateDir string         `json:"state_dir" mapstructure:"state_dir" yaml:"state_dir"`
	API      APIConfig      `json:"api"       mapstructure:"api"       yaml:"api"`
	Activity ActivityConfig `json:"activity"  mapstructure:"activity"  yaml:"activity"`
	Journal  JournalConfig  `json:"journal"   mapstructure:"journal"   yaml:"journal"`
	Session  SessionConfig  `json:"session"   mapstructure:"session"   yaml:"session"`
	Web      WebConfig      `json:"web"       mapstructure:"web"       yaml:"web"`
}

// APIConfig locates the planning backend.
type APIConfig struct {
	BaseURL string        `json:"base_url,omitempty" mapstructure:"base_url" yaml:"base_url,omitempty"`
	Timeout time.Duration `json:"timeout"            mapstructure:"timeout"  yaml:"timeout"`
}

// ActivityConfig controls the simulated activity log.
type ActivityConfig struct {
	Enabled   bool             `json:"enabled"             mapstructure:"enabled"   yaml:"enabled"`
	Cadence   time.Duration    `json:"cadence"             mapstructure:"cadence"   yaml:"cadence"`
	Templates []TemplateConfig `json:"templates,omitempty" mapstructure:"templates" yaml:"templates,omitempty"`
}

// TemplateConfig overrides one line of the activity replay.
type TemplateConfig struct {
	Level   string `json:"level,omitempty"  mapstructure:"level"   yaml:"level,omitempty"`
	Source  string `json:"source,omitempty" mapstructure:"source"  yaml:"source,omitempty"`
	Message string `json:"message"          mapstructure:"message" yaml:"message"`
}

// JournalConfig controls the local request journal.
type JournalConfig struct {
	Enabled bool   `json:"enabled"        mapstructure:"enabled" yaml:"enabled"`
	Path    string `json:"path,omitempty" mapstructure:"path"    yaml:"path,omitempty"`
}

// SessionConfig locates the local session file.
type SessionConfig struct {
	Path string `json:"path,omitempty" mapstructure:"path" yaml:"path,omitempty"`
}

// WebConfig configures the web dashboard listener.
type WebConfig struct {
	Host string `json:"host" mapstructure:"host" yaml:"host"`
	Port int    `json:"port" mapstructure:"port" yaml:"port"`
}

// Defaults returns the default settings keyed by their viper path.
func Defaults() map[string]any {
	return map[string]any{
		"state_dir":        DefaultStateDir(),
		"api.base_url":     "",
		"api.timeout":      "30s",
		"activity.enabled": true,
		"activity.cadence": "500ms",
		"journal.enabled":  true,
		"journal.path":     "",
		"session.path":     "",
		"web.host":         "localhost",
		"web.port":         8080,
	}
}

// DefaultStateDir is ~/.aletheia, or .aletheia when no home is known.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".aletheia"
	}
	return filepath.Join(home, ".aletheia")
}

// Validate checks semantic constraints the schema cannot express.
func (c Config) Validate() error {
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if c.Activity.Enabled && c.Activity.Cadence <= 0 {
		return fmt.Errorf("activity.cadence must be > 0")
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be between 1 and 65535")
	}
	if strings.TrimSpace(c.StateDir) == "" {
		return fmt.Errorf("state_dir must not be empty")
	}
	return nil
}

// JournalPath returns the journal database location.
func (c Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.StateDir, "journal.db")
}

// SessionPath returns the session file location.
func (c Config) SessionPath() string {
	if c.Session.Path != "" {
		return c.Session.Path
	}
	return filepath.Join(c.StateDir, "session.yaml")
}

// LogPath returns the file the terminal dashboard logs to.
func (c Config) LogPath() string {
	return filepath.Join(c.StateDir, "aletheia.log")
}

// WebAddr returns the listen address of the web dashboard.
func (c Config) WebAddr() string {
	return net.JoinHostPort(c.Web.Host, fmt.Sprint(c.Web.Port))
}

// ResolveBaseURL picks the planning backend. An explicit URL wins; a
// dashboard served from a loopback host talks to a local backend; anything
// else goes to production.
func ResolveBaseURL(explicit, servingHost string) string {
	if u := strings.TrimRight(strings.TrimSpace(explicit), "/"); u != "" {
		return u
	}
	if isLoopback(servingHost) {
		return LocalBaseURL
	}
	return ProductionBaseURL
}

func isLoopback(host string) bool {
	host = strings.Trim(strings.TrimSpace(host), "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
