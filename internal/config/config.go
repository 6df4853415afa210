package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`

	// APICORSOrigins lists browser origins allowed to call the HTTP API.
	APICORSOrigins []string `toml:"api_cors_origins"`
}

// Stages contains configuration for the stage transition controller.
type Stages struct {
	ConflictRetries int  `toml:"conflict_retries"`
	NotifyOwner     bool `toml:"notify_owner"`
}

// Notifications contains configuration shared by every delivery channel.
type Notifications struct {
	SendTimeout         int  `toml:"send_timeout"`
	DedupWindowSeconds  int  `toml:"dedup_window_seconds"`
	DefaultPushEnabled  bool `toml:"default_push_enabled"`
	DefaultEmailEnabled bool `toml:"default_email_enabled"`
}

// Push contains configuration for ntfy push delivery.
type Push struct {
	NtfyBaseURL string `toml:"ntfy_base_url"`
}

// Email contains SMTP settings for email delivery.
type Email struct {
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// Twilio contains credentials for SMS and WhatsApp delivery.
type Twilio struct {
	AccountSID   string `toml:"account_sid"`
	AuthToken    string `toml:"auth_token"`
	SMSFrom      string `toml:"sms_from"`
	WhatsAppFrom string `toml:"whatsapp_from"`
}

// Reminders contains configuration for the reminder poll loop.
type Reminders struct {
	PollInterval       int `toml:"poll_interval"`
	GraceWindow        int `toml:"grace_window"`
	PollTimeout        int `toml:"poll_timeout"`
	BatchLimit         int `toml:"batch_limit"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for crmflow.
//
// Configuration sections by subsystem:
//   - Paths: database/log directories and API bind address
//   - Stages: optimistic concurrency retries and owner notifications
//   - Notifications: per-channel send timeout, dedup window, preference defaults
//   - Push: ntfy server used for push subscriptions
//   - Email: SMTP relay settings
//   - Twilio: SMS and WhatsApp credentials
//   - Reminders: poll cadence, grace window, and batch sizing
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Stages        Stages        `toml:"stages"`
	Notifications Notifications `toml:"notifications"`
	Push          Push          `toml:"push"`
	Email         Email         `toml:"email"`
	Twilio        Twilio        `toml:"twilio"`
	Reminders     Reminders     `toml:"reminders"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file next to the configuration file
// seeds environment fallbacks without overriding variables that are already set.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(resolvedPath), ".env")); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("crmflow.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "crmflow.db")
}

// SocketPath returns the daemon IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "crmflow.sock")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "crmflow.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "crmflow.pid")
}

// SendTimeout returns the per-channel delivery timeout.
func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.Notifications.SendTimeout) * time.Second
}

// DedupWindow returns the notification dedup window; zero disables dedup.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.Notifications.DedupWindowSeconds) * time.Second
}

// PollInterval returns the delay between reminder poll cycles.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Reminders.PollInterval) * time.Second
}

// GraceWindow returns how far in the past a due reminder may still fire.
func (c *Config) GraceWindow() time.Duration {
	return time.Duration(c.Reminders.GraceWindow) * time.Second
}

// PollTimeout bounds a single reminder poll cycle.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Reminders.PollTimeout) * time.Second
}

// EmailConfigured reports whether SMTP delivery has enough settings to send.
func (c *Config) EmailConfigured() bool {
	return strings.TrimSpace(c.Email.SMTPHost) != "" && strings.TrimSpace(c.Email.From) != ""
}

// TwilioConfigured reports whether Twilio credentials are present.
func (c *Config) TwilioConfigured() bool {
	return strings.TrimSpace(c.Twilio.AccountSID) != "" && strings.TrimSpace(c.Twilio.AuthToken) != ""
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
