package main

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmflow/internal/api"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("crmflow", statusError, "Not running", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "crmflow:", "[ERROR] Not running")
	assert.Equal(t, want, got)
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("crmflow", statusOK, "Running", true)
	assert.True(t, len(got) > len(ansiGreen)+len(ansiReset))
	assert.Equal(t, ansiGreen, got[:len(ansiGreen)])
	assert.Equal(t, ansiReset, got[len(got)-len(ansiReset):])
}

func TestStatusKindFromSeverity(t *testing.T) {
	cases := map[string]statusKind{
		"ok":      statusOK,
		"WARN":    statusWarn,
		"warning": statusWarn,
		"error":   statusError,
		"info":    statusInfo,
		"":        statusInfo,
	}
	for severity, want := range cases {
		assert.Equal(t, want, statusKindFromSeverity(severity), "severity %q", severity)
	}
}

func TestReminderLines(t *testing.T) {
	lines := reminderLines(api.DaemonStatus{Reminders: api.RunnerStatus{
		Running:    true,
		LastFired:  2,
		TotalFired: 5,
		LastError:  "timeout: reminders: poll",
	}}, false)
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "never")
	assert.Contains(t, lines[2], "2 last poll, 5 total")
	assert.Contains(t, lines[3], "[ERROR]")
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "only")
	assert.Equal(t, "\n", out[len(out)-1:])
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestShouldColorizeNonFile(t *testing.T) {
	assert.False(t, shouldColorize(io.Discard))
}
