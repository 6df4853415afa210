package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	defaultConfigPath            = "~/.config/crmflow/config.toml"
	defaultAPIBind               = "127.0.0.1:7490"
	defaultConflictRetries       = 3
	defaultSendTimeout           = 10
	defaultNtfyBaseURL           = "https://ntfy.sh"
	defaultSMTPPort              = 587
	defaultReminderPollInterval  = 60
	defaultReminderGraceWindow   = 300
	defaultReminderPollTimeout   = 30
	defaultReminderBatchLimit    = 100
	defaultReminderRetryInterval = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
)

func defaultDataDir() string {
	return filepath.Join(xdg.DataHome, "crmflow")
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	dataDir := defaultDataDir()
	return Config{
		Paths: Paths{
			DataDir: dataDir,
			LogDir:  filepath.Join(dataDir, "logs"),
			APIBind: defaultAPIBind,
		},
		Stages: Stages{
			ConflictRetries: defaultConflictRetries,
			NotifyOwner:     true,
		},
		Notifications: Notifications{
			SendTimeout:         defaultSendTimeout,
			DefaultEmailEnabled: true,
		},
		Push: Push{
			NtfyBaseURL: defaultNtfyBaseURL,
		},
		Email: Email{
			SMTPPort: defaultSMTPPort,
		},
		Reminders: Reminders{
			PollInterval:       defaultReminderPollInterval,
			GraceWindow:        defaultReminderGraceWindow,
			PollTimeout:        defaultReminderPollTimeout,
			BatchLimit:         defaultReminderBatchLimit,
			ErrorRetryInterval: defaultReminderRetryInterval,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
