package services_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crmflow/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrInvalidArgument, "stages", "transition", "unknown stage", base)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrInvalidArgument)
	assert.ErrorIs(t, err, base)
	for _, fragment := range []string{"stages", "transition", "unknown stage"} {
		assert.Contains(t, err.Error(), fragment)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	assert.ErrorIs(t, err, services.ErrTransient)
	assert.Contains(t, err.Error(), "service failure")
}

func TestClassification(t *testing.T) {
	tests := []struct {
		marker    error
		status    int
		kind      string
		transient bool
	}{
		{services.ErrNotFound, http.StatusNotFound, "not_found", false},
		{services.ErrInvalidArgument, http.StatusBadRequest, "invalid_argument", false},
		{services.ErrPermissionDenied, http.StatusForbidden, "permission_denied", false},
		{services.ErrConcurrencyConflict, http.StatusConflict, "concurrency_conflict", true},
		{services.ErrTimeout, http.StatusGatewayTimeout, "timeout", true},
		{services.ErrTransient, http.StatusInternalServerError, "internal", true},
	}
	for _, tc := range tests {
		err := fmt.Errorf("outer: %w", services.Wrap(tc.marker, "test", "op", "", nil))
		assert.Equal(t, tc.status, services.HTTPStatus(err), "%v status", tc.marker)
		assert.Equal(t, tc.kind, services.Kind(err), "%v kind", tc.marker)
		assert.Equal(t, tc.transient, services.IsTransient(err), "%v transient", tc.marker)
	}
}
