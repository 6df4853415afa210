package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	if err := c.validateTwilio(); err != nil {
		return err
	}
	if err := c.validateReminders(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStages() error {
	if c.Stages.ConflictRetries < 1 {
		return errors.New("stages.conflict_retries must be >= 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.SendTimeout <= 0 {
		return errors.New("notifications.send_timeout must be positive")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	if !strings.HasPrefix(c.Push.NtfyBaseURL, "http://") && !strings.HasPrefix(c.Push.NtfyBaseURL, "https://") {
		return fmt.Errorf("push.ntfy_base_url must be an http(s) URL, got %q", c.Push.NtfyBaseURL)
	}
	return nil
}

func (c *Config) validateEmail() error {
	if c.Email.SMTPHost != "" && c.Email.From == "" {
		return errors.New("email.from must be set when email.smtp_host is configured")
	}
	if c.Email.From != "" && !strings.Contains(c.Email.From, "@") {
		return fmt.Errorf("email.from %q is not an email address", c.Email.From)
	}
	return nil
}

func (c *Config) validateTwilio() error {
	if (c.Twilio.AccountSID == "") != (c.Twilio.AuthToken == "") {
		return errors.New("twilio.account_sid and twilio.auth_token must be set together")
	}
	return nil
}

func (c *Config) validateReminders() error {
	if err := ensurePositiveMap(map[string]int{
		"reminders.poll_interval": c.Reminders.PollInterval,
		"reminders.grace_window":  c.Reminders.GraceWindow,
		"reminders.poll_timeout":  c.Reminders.PollTimeout,
	}); err != nil {
		return err
	}
	if c.Notifications.SendTimeout >= c.Reminders.PollTimeout {
		return errors.New("notifications.send_timeout must be less than reminders.poll_timeout")
	}
	if c.Reminders.GraceWindow < c.Reminders.PollInterval {
		return errors.New("reminders.grace_window must be >= reminders.poll_interval or due reminders can be skipped")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
