package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmflow/internal/config"
)

func writeConfig(t *testing.T, dir string, payload any) string {
	t.Helper()
	data, err := toml.Marshal(payload)
	require.NoError(t, err, "marshal config")
	path := filepath.Join(dir, "crmflow.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")

	cfg, resolved, exists, err := config.Load(missing)
	require.NoError(t, err)
	assert.False(t, exists, "config file should be reported absent")
	assert.Equal(t, missing, resolved)
	assert.Equal(t, filepath.Join(xdg.DataHome, "crmflow"), cfg.Paths.DataDir)
	assert.Equal(t, filepath.Join(cfg.Paths.DataDir, "logs"), cfg.Paths.LogDir)
	assert.Equal(t, "127.0.0.1:7490", cfg.Paths.APIBind)
	assert.Zero(t, cfg.DedupWindow(), "dedup disabled by default")
	assert.Equal(t, 3, cfg.Stages.ConflictRetries)
	assert.Equal(t, 60, cfg.Reminders.PollInterval)
	assert.Equal(t, 300, cfg.Reminders.GraceWindow)
	assert.False(t, cfg.EmailConfigured())
	assert.False(t, cfg.TwilioConfigured())
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Reminders struct {
			PollInterval int `toml:"poll_interval"`
			GraceWindow  int `toml:"grace_window"`
		} `toml:"reminders"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Reminders.PollInterval = 30
	custom.Reminders.GraceWindow = 120
	custom.Logging.Format = "JSON"
	path := writeConfig(t, tempDir, custom)

	cfg, resolved, exists, err := config.Load(path)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, path, resolved)
	assert.Equal(t, filepath.Join(tempDir, "data"), cfg.Paths.DataDir)
	assert.Equal(t, filepath.Join(tempDir, "data", "crmflow.db"), cfg.DatabasePath())
	assert.Equal(t, "json", cfg.Logging.Format, "format is normalized")
	assert.Equal(t, float64(30), cfg.PollInterval().Seconds())

	require.NoError(t, cfg.EnsureDirectories())
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		assert.DirExists(t, dir)
	}
}

func TestLoadReadsDotEnvNextToConfig(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	os.Unsetenv("TWILIO_ACCOUNT_SID")
	os.Unsetenv("TWILIO_AUTH_TOKEN")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	path := writeConfig(t, tempDir, custom)

	env := "TWILIO_ACCOUNT_SID=AC123\nTWILIO_AUTH_TOKEN=secret\nTWILIO_WHATSAPP_NUMBER=+33100000000\n"
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, ".env"), []byte(env), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("TWILIO_WHATSAPP_NUMBER")
	})

	cfg, _, _, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.TwilioConfigured(), "twilio credentials from .env: %+v", cfg.Twilio)
	assert.Equal(t, "whatsapp:+33100000000", cfg.Twilio.WhatsAppFrom)
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"retries", func(c *config.Config) { c.Stages.ConflictRetries = 0 }, "stages.conflict_retries"},
		{"send timeout", func(c *config.Config) { c.Notifications.SendTimeout = 0 }, "notifications.send_timeout"},
		{"dedup", func(c *config.Config) { c.Notifications.DedupWindowSeconds = -1 }, "dedup_window_seconds"},
		{"send vs poll timeout", func(c *config.Config) { c.Notifications.SendTimeout = 30 }, "less than reminders.poll_timeout"},
		{"grace", func(c *config.Config) { c.Reminders.GraceWindow = 10 }, "grace_window"},
		{"email from", func(c *config.Config) { c.Email.SMTPHost = "smtp.example.com" }, "email.from"},
		{"twilio pair", func(c *config.Config) { c.Twilio.AccountSID = "AC1" }, "twilio.account_sid"},
		{"ntfy url", func(c *config.Config) { c.Push.NtfyBaseURL = "ntfy.sh" }, "push.ntfy_base_url"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	require.NoError(t, config.CreateSample(path))

	cfg, _, exists, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 10, cfg.Notifications.SendTimeout)
	assert.NoError(t, cfg.Validate())
}
