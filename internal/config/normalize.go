package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePush()
	c.normalizeEmail()
	c.normalizeTwilio()
	c.normalizeReminders()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir()
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("CRMFLOW_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	origins := c.Paths.APICORSOrigins[:0]
	for _, origin := range c.Paths.APICORSOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.Paths.APICORSOrigins = origins
	return nil
}

func (c *Config) normalizePush() {
	c.Push.NtfyBaseURL = strings.TrimRight(strings.TrimSpace(c.Push.NtfyBaseURL), "/")
	if c.Push.NtfyBaseURL == "" {
		c.Push.NtfyBaseURL = defaultNtfyBaseURL
	}
}

func (c *Config) normalizeEmail() {
	c.Email.SMTPHost = strings.TrimSpace(c.Email.SMTPHost)
	c.Email.Username = strings.TrimSpace(c.Email.Username)
	c.Email.From = strings.TrimSpace(c.Email.From)
	if c.Email.SMTPPort <= 0 {
		c.Email.SMTPPort = defaultSMTPPort
	}
	if c.Email.Password == "" {
		if value, ok := os.LookupEnv("CRMFLOW_SMTP_PASSWORD"); ok {
			c.Email.Password = value
		}
	}
}

func (c *Config) normalizeTwilio() {
	lookup := func(current *string, keys ...string) {
		*current = strings.TrimSpace(*current)
		if *current != "" {
			return
		}
		for _, key := range keys {
			if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
				*current = strings.TrimSpace(value)
				return
			}
		}
	}
	lookup(&c.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
	lookup(&c.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
	lookup(&c.Twilio.SMSFrom, "TWILIO_PHONE_NUMBER")
	lookup(&c.Twilio.WhatsAppFrom, "TWILIO_WHATSAPP_NUMBER")
	if c.Twilio.WhatsAppFrom != "" && !strings.HasPrefix(c.Twilio.WhatsAppFrom, "whatsapp:") {
		c.Twilio.WhatsAppFrom = "whatsapp:" + c.Twilio.WhatsAppFrom
	}
}

func (c *Config) normalizeReminders() {
	if c.Reminders.BatchLimit <= 0 {
		c.Reminders.BatchLimit = defaultReminderBatchLimit
	}
	if c.Reminders.ErrorRetryInterval <= 0 {
		c.Reminders.ErrorRetryInterval = defaultReminderRetryInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
