package testsupport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"crmflow/internal/config"
	"crmflow/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	require.NoError(t, err, "store.Open")
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}
