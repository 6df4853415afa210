package daemonctl_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmflow/internal/daemon"
	"crmflow/internal/daemonctl"
	"crmflow/internal/engine"
	"crmflow/internal/ipc"
	"crmflow/internal/logging"
	"crmflow/internal/testsupport"
)

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	status, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Equal(t, cfg.DatabasePath(), status.DatabasePath)
	assert.Equal(t, cfg.LockPath(), status.LockFilePath)
	assert.Equal(t, []string{"in_app"}, status.Channels)

	checks := map[string]string{}
	for _, line := range status.SystemChecks {
		checks[line.Label] = line.Severity
	}
	assert.Equal(t, "warn", checks["crmflow"])
	assert.Equal(t, "info", checks["Database"], "database file has not been created")
	assert.Equal(t, "info", checks["Push"])
	assert.Equal(t, "warn", checks["Email"])
	assert.Equal(t, "info", checks["Twilio"])
}

func TestBuildStatusSnapshotDatabaseReachable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MustOpenStore(t, cfg)

	status, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	require.NoError(t, err)
	var found bool
	for _, line := range status.SystemChecks {
		if line.Label == "Database" {
			found = true
			assert.Equal(t, "ok", line.Severity, line.Detail)
		}
	}
	assert.True(t, found)
}

func TestBuildStatusSnapshotRequiresConfig(t *testing.T) {
	_, err := daemonctl.BuildStatusSnapshot(context.Background(), "/nonexistent.sock", nil)
	require.Error(t, err)
}

func TestBuildStatusSnapshotOnline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	st := testsupport.MustOpenStore(t, cfg)
	eng, err := engine.New(cfg, st, logging.NewNop())
	require.NoError(t, err)
	d, err := daemon.New(cfg, eng, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logging.NewNop())
	if err != nil && strings.Contains(err.Error(), "operation not permitted") {
		t.Skipf("skipping IPC server test: %v", err)
	}
	require.NoError(t, err)
	srv.Serve()
	t.Cleanup(srv.Close)
	require.NoError(t, d.Start(ctx))

	status, err := daemonctl.BuildStatusSnapshot(context.Background(), cfg.SocketPath(), cfg)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	require.NotEmpty(t, status.SystemChecks)
	assert.Equal(t, "ok", status.SystemChecks[0].Severity)

	running, pid, err := daemonctl.ProcessInfo(cfg.SocketPath())
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	result, err := daemonctl.EnsureStarted(cfg.SocketPath(), "/bin/false", daemonctl.LaunchOptions{}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, daemonctl.StartStateAlreadyRunning, result.State)
	assert.False(t, result.Launched)
}

func TestConfiguredChannels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Push.NtfyBaseURL = "https://ntfy.example.com"
	cfg.Email.SMTPHost = "smtp.example.com"
	cfg.Email.From = "crm@example.com"
	assert.Equal(t, []string{"in_app", "push", "email"}, daemonctl.ConfiguredChannels(cfg))
}

func TestProcessInfoOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	running, pid, err := daemonctl.ProcessInfo(cfg.SocketPath())
	require.NoError(t, err)
	assert.False(t, running)
	assert.Zero(t, pid)
}

func TestStopAndTerminateNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.StopAndTerminate(cfg.SocketPath(), cfg, 100*time.Millisecond)
	require.ErrorIs(t, err, daemonctl.ErrDaemonNotRunning)
}

func TestWaitForShutdownWithoutSocket(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, daemonctl.WaitForShutdown(cfg.SocketPath(), time.Second))
}

func TestLaunchRequiresExecutable(t *testing.T) {
	err := daemonctl.Launch("  ", daemonctl.LaunchOptions{})
	require.Error(t, err)
}

func TestForceKillProcessGuards(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "crmflow.pid")

	_, err := daemonctl.ForceKillProcess(pidPath, "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to determine daemon pid")

	require.NoError(t, os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644))
	_, err = daemonctl.ForceKillProcess(pidPath, "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to kill current process")
}

func TestRestartFailsWhenLaunchFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.Restart(cfg.SocketPath(), cfg, filepath.Join(t.TempDir(), "missing-binary"), daemonctl.LaunchOptions{}, 100*time.Millisecond, 200*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launch daemon")
}

func TestBuildSystemChecksIncludesDirectoryAccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, cfg.EnsureDirectories())

	lines := daemonctl.BuildSystemChecks(context.Background(), cfg, true)
	severities := map[string]string{}
	for _, line := range lines {
		severities[line.Label] = line.Severity
	}
	assert.Equal(t, "ok", severities["crmflow"])
	assert.Equal(t, "ok", severities["Data directory"])
	assert.Equal(t, "ok", severities["Log directory"])
	assert.NotContains(t, severities, "SMTP relay")
}
