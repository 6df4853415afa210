package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"crmflow/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithActor(ctx, "alice")
	ctx = services.WithEntityID(ctx, "lead-1")
	ctx = services.WithUserID(ctx, "bob")
	ctx = services.WithRequestID(ctx, "req-123")

	actor, ok := services.ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "alice", actor)

	entityID, ok := services.EntityIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "lead-1", entityID)

	userID, ok := services.UserIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "bob", userID)

	requestID, ok := services.RequestIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-123", requestID)
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithActor(ctx, "")
	ctx = services.WithEntityID(ctx, "")

	_, ok := services.ActorFromContext(ctx)
	assert.False(t, ok)
	_, ok = services.EntityIDFromContext(ctx)
	assert.False(t, ok)
}
