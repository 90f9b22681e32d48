package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Storage    StorageConfig     `yaml:"storage"`
	Auth       AuthConfig        `yaml:"auth"`
	Sources    SourcesConfig     `yaml:"sources"`
	Summarizer SummarizerConfig  `yaml:"summarizer"`
	Schedule   ScheduleConfig    `yaml:"schedule"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Sources.Validate(); err != nil {
		return err
	}
	if err := c.Summarizer.Validate(); err != nil {
		return err
	}
	return c.Schedule.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig holds the path to the store's base directory.
type StorageConfig struct {
	BaseDir string `yaml:"base_dir"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseDir, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SourcesConfig configures the event sources.
type SourcesConfig struct {
	Git                GitConfig         `yaml:"git"`
	AgentRoots         map[string]string `yaml:"agent_roots"`
	BrowserHistoryPath string            `yaml:"browser_history_path"`
}

// Validate validates the sources configuration.
func (c *SourcesConfig) Validate() error {
	return c.Git.Validate()
}

// GitConfig configures local repository watching.
type GitConfig struct {
	Enabled    bool     `yaml:"enabled"`
	WatchPaths []string `yaml:"watch_paths"`
	ScanDepth  int      `yaml:"scan_depth"`
}

// Validate validates the git configuration.
func (c *GitConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.WatchPaths, validation.Required),
		validation.Field(&c.ScanDepth, validation.Required, validation.Min(1), validation.Max(10)),
	)
}

// SummarizerConfig configures the daily note generator.
type SummarizerConfig struct {
	Model     string `yaml:"model"`
	APIBase   string `yaml:"api_base"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Validate validates the summarizer configuration.
func (c *SummarizerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.APIBase, validation.Required),
		validation.Field(&c.APIKeyEnv, validation.Required),
	)
}

// ScheduleConfig configures background timing.
type ScheduleConfig struct {
	IngestMinutes int `yaml:"ingest_minutes"`
	DailyHour     int `yaml:"daily_hour"`
}

// Validate validates the schedule configuration.
func (c *ScheduleConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.IngestMinutes, validation.Required, validation.Min(1), validation.Max(24*60)),
		validation.Field(&c.DailyHour, validation.Min(0), validation.Max(23)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			BaseDir: "~/.amber",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Sources: SourcesConfig{
			Git: GitConfig{
				Enabled:    true,
				WatchPaths: []string{"~/src"},
				ScanDepth:  3,
			},
		},
		Summarizer: SummarizerConfig{
			Model:     "gpt-4o-mini",
			APIBase:   "https://api.openai.com/v1",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Schedule: ScheduleConfig{
			IngestMinutes: 15,
			DailyHour:     22,
		},
	}
}
