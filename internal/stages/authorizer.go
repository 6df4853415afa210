package stages

import (
	"context"
	"strings"

	"crmflow/internal/services"
	"crmflow/internal/store"
)

// Authorizer decides whether actor may change entity.
type Authorizer interface {
	CanTransition(ctx context.Context, actor string, entity *store.Entity) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, actor string, entity *store.Entity) error

// CanTransition implements Authorizer.
func (f AuthorizerFunc) CanTransition(ctx context.Context, actor string, entity *store.Entity) error {
	return f(ctx, actor, entity)
}

// AllowIdentified permits any non-empty actor.
type AllowIdentified struct{}

// CanTransition implements Authorizer.
func (AllowIdentified) CanTransition(_ context.Context, actor string, _ *store.Entity) error {
	if strings.TrimSpace(actor) == "" {
		return services.Wrap(services.ErrPermissionDenied, "stages", "authorize", "actor is required", nil)
	}
	return nil
}
