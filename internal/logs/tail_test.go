package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmflow/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crmflow.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestLastReturnsTrailingLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")

	lines, offset, err := logs.Last(path, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, lines)
	assert.EqualValues(t, 6, offset)

	lines, _, err = logs.Last(path, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "none.log"), 5)
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Zero(t, offset)
}

func TestLastRejectsDirectory(t *testing.T) {
	_, _, err := logs.Last(t.TempDir(), 5)
	require.Error(t, err)
}

func TestReadFromSkipsPartialLine(t *testing.T) {
	path := writeLog(t, "one\ntw")

	lines, offset, err := logs.ReadFrom(path, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, lines)
	assert.EqualValues(t, 4, offset)

	appendLog(t, path, "o\nthree\n")
	lines, offset, err = logs.ReadFrom(path, offset)
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, lines)
	assert.EqualValues(t, 14, offset)
}

func TestReadFromRestartsAfterTruncation(t *testing.T) {
	path := writeLog(t, "x\n")
	require.NoError(t, os.WriteFile(path, []byte("fresh\n"), 0o644))

	lines, _, err := logs.ReadFrom(path, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, lines)
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := writeLog(t, "start\n")
	_, offset, err := logs.Last(path, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	appendLog(t, path, "later\n")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "later"
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "follow did not stop after cancel")
	}
}
