package testsupport

import (
	"path/filepath"
	"testing"

	"crmflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// External channels are left unconfigured so no test reaches the network.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Paths.APIToken = ""
	cfgVal.Push.NtfyBaseURL = ""
	cfgVal.Email = config.Email{SMTPPort: 587}
	cfgVal.Twilio = config.Twilio{}
	cfgVal.Notifications.SendTimeout = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithDedupWindow enables notification dedup for the given number of seconds.
func WithDedupWindow(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.DedupWindowSeconds = seconds
	}
}

// WithNotifyOwner toggles owner notifications on stage transitions.
func WithNotifyOwner(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Stages.NotifyOwner = enabled
	}
}

// WithConflictRetries overrides the transition retry budget.
func WithConflictRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Stages.ConflictRetries = n
	}
}

// WithAPIToken sets the bearer token required by the HTTP API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
