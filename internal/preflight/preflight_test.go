package preflight

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmflow/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	assert.True(t, result.Passed, result.Detail)
	assert.Equal(t, "ok", result.Severity())
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	assert.False(t, result.Passed)
	assert.NotEmpty(t, result.Detail)
	assert.Equal(t, "error", result.Severity())
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	assert.False(t, CheckDirectoryAccess("test", f).Passed)
}

func TestCheckNtfy(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if healthy.Load() {
			_, _ = w.Write([]byte(`{"healthy":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"healthy":false}`))
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/")
	assert.True(t, result.Passed, result.Detail)

	healthy.Store(false)
	assert.False(t, CheckNtfy(context.Background(), srv.URL).Passed)

	result = CheckNtfy(context.Background(), " ")
	assert.False(t, result.Passed)
	assert.Equal(t, "missing url", result.Detail)
}

func TestCheckSMTP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen not permitted: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	result := CheckSMTP(context.Background(), "127.0.0.1", port)
	assert.True(t, result.Passed, result.Detail)

	_ = ln.Close()
	assert.False(t, CheckSMTP(context.Background(), "127.0.0.1", port).Passed, "closed port")
	assert.False(t, CheckSMTP(context.Background(), "", 25).Passed, "missing host")
}

func TestRunAllSkipsUnconfiguredChannels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	require.NoError(t, cfg.EnsureDirectories())

	results := RunAll(context.Background(), cfg)
	require.Len(t, results, 2, "only directory checks expected")
	for _, r := range results {
		assert.True(t, r.Passed, "%s: %s", r.Name, r.Detail)
	}
	assert.Nil(t, RunAll(context.Background(), nil))
}
