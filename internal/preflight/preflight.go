package preflight

import (
	"context"

	"crmflow/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Severity maps a result onto the status-line vocabulary.
func (r Result) Severity() string {
	if r.Passed {
		return "ok"
	}
	return "error"
}

// RunAll executes the checks that apply to cfg. Network probes run only for
// channels that are configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Push.NtfyBaseURL != "" {
		results = append(results, CheckNtfy(ctx, cfg.Push.NtfyBaseURL))
	}
	if cfg.EmailConfigured() {
		results = append(results, CheckSMTP(ctx, cfg.Email.SMTPHost, cfg.Email.SMTPPort))
	}
	return results
}
