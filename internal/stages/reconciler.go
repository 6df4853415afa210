package stages

import (
	"context"
	"log/slog"

	"crmflow/internal/logging"
	"crmflow/internal/services"
)

// Reconciler re-derives an entity's stage from related data and feeds the
// result through Controller.Transition under the system actor.
type Reconciler struct {
	controller *Controller
	logger     *slog.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(c *Controller, logger *slog.Logger) *Reconciler {
	return &Reconciler{controller: c, logger: logging.NewComponentLogger(logger, "reconciler")}
}

// Reconcile computes the suggested stage of entityID from snap and applies
// it. EntityType and CurrentStage of snap are taken from the stored entity.
func (r *Reconciler) Reconcile(ctx context.Context, entityID string, snap Snapshot) (*TransitionResult, error) {
	entity, err := r.controller.Entity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	snap.EntityType = entity.Type
	snap.CurrentStage = entity.Stage
	suggested := ComputeSuggestedStage(snap)

	res, err := r.controller.Transition(ctx, entityID, suggested, services.SystemActor)
	if err != nil {
		return nil, err
	}
	if res.Applied {
		r.logger.Info("stage reconciled",
			logging.String(logging.FieldEntityID, entityID),
			logging.String(logging.FieldStage, suggested),
			logging.String(logging.FieldEventType, "stage_reconciled"),
		)
	}
	return res, nil
}
