package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"crmflow/internal/clock"
	"crmflow/internal/logging"
	"crmflow/internal/notifications"
	"crmflow/internal/services"
	"crmflow/internal/store"
	"crmflow/internal/timeline"
)

const defaultConflictRetries = 3

// Notifier delivers owner notifications after a transition.
type Notifier interface {
	Notify(ctx context.Context, d notifications.Draft, opts notifications.FanOutOptions) (*store.Notification, notifications.DeliveryReport, error)
}

// Options configures a Controller.
type Options struct {
	Store           *store.Store
	Timeline        *timeline.Recorder
	Notifier        Notifier
	Authorizer      Authorizer
	Clock           clock.Clock
	Logger          *slog.Logger
	ConflictRetries int
	NotifyOwner     bool
}

// Controller applies forward-only stage transitions and maintains the
// stage history of every entity.
type Controller struct {
	store       *store.Store
	timeline    *timeline.Recorder
	notifier    Notifier
	authorizer  Authorizer
	clock       clock.Clock
	logger      *slog.Logger
	retries     int
	notifyOwner bool
}

// TransitionResult is the outcome of Transition. History is the open
// interval after the call; Applied is false for ignored non-forward moves.
type TransitionResult struct {
	Entity  *store.Entity
	History *store.StageInterval
	Applied bool
}

// NewEntity describes an entity to create. Stage defaults to the first stage
// of the type and ID to a random UUID.
type NewEntity struct {
	ID      string
	Type    string
	Name    string
	OwnerID string
	Stage   string
}

// NewController constructs a Controller.
func NewController(opts Options) *Controller {
	retries := opts.ConflictRetries
	if retries <= 0 {
		retries = defaultConflictRetries
	}
	authorizer := opts.Authorizer
	if authorizer == nil {
		authorizer = AllowIdentified{}
	}
	return &Controller{
		store:       opts.Store,
		timeline:    opts.Timeline,
		notifier:    opts.Notifier,
		authorizer:  authorizer,
		clock:       clock.OrSystem(opts.Clock),
		logger:      logging.NewComponentLogger(opts.Logger, "stages"),
		retries:     retries,
		notifyOwner: opts.NotifyOwner,
	}
}

// Entity returns the entity with id.
func (c *Controller) Entity(ctx context.Context, id string) (*store.Entity, error) {
	e, err := c.store.GetEntity(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "stages", "get_entity", "load entity", err)
	}
	if e == nil {
		return nil, services.Wrap(services.ErrNotFound, "stages", "get_entity", "entity "+id, nil)
	}
	return e, nil
}

// CreateEntity stores a new entity, opens its first stage interval and
// records an entity_created timeline event.
func (c *Controller) CreateEntity(ctx context.Context, in NewEntity, actor string) (*store.Entity, error) {
	set, ok := Lookup(in.Type)
	if !ok {
		return nil, services.Wrap(services.ErrInvalidArgument, "stages", "create_entity", "unknown entity type "+in.Type, nil)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, services.Wrap(services.ErrInvalidArgument, "stages", "create_entity", "name is required", nil)
	}
	stage := strings.TrimSpace(in.Stage)
	if stage == "" {
		stage = set.First()
	}
	if !set.Contains(stage) {
		return nil, services.Wrap(services.ErrInvalidArgument, "stages", "create_entity",
			fmt.Sprintf("stage %q is not valid for %s", stage, set.EntityType), nil)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := c.clock.Now()
	entity := &store.Entity{
		ID:        id,
		Type:      set.EntityType,
		Name:      name,
		Stage:     stage,
		OwnerID:   strings.TrimSpace(in.OwnerID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.authorizer.CanTransition(ctx, actor, entity); err != nil {
		return nil, err
	}
	existing, err := c.store.GetEntity(ctx, id)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "stages", "create_entity", "check existing entity", err)
	}
	if existing != nil {
		return nil, services.Wrap(services.ErrInvalidArgument, "stages", "create_entity", "entity "+id+" already exists", nil)
	}
	if err := c.store.CreateEntity(ctx, entity); err != nil {
		return nil, services.Wrap(services.ErrTransient, "stages", "create_entity", "persist entity", err)
	}

	c.record(ctx, timeline.Draft{
		SubjectID:   entity.ID,
		SubjectType: entity.Type,
		EventType:   timeline.EventEntityCreated,
		Title:       fmt.Sprintf("%s created", entity.Name),
		Metadata:    map[string]any{"stage": entity.Stage},
		Author:      actor,
	})
	c.logger.Info("entity created",
		logging.String(logging.FieldEntityID, entity.ID),
		logging.String(logging.FieldEntityType, entity.Type),
		logging.String(logging.FieldStage, entity.Stage),
		logging.String(logging.FieldEventType, "entity_created"),
	)
	return entity, nil
}

// Transition moves entityID to proposed when that advances its lifecycle.
// A proposed stage at or before the current one is ignored and reported with
// Applied=false. A lost race against a concurrent transition is retried
// against fresh state; when retries run out the error wraps
// services.ErrConcurrencyConflict.
func (c *Controller) Transition(ctx context.Context, entityID, proposed, actor string) (*TransitionResult, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, services.Wrap(services.ErrPermissionDenied, "stages", "transition", "actor is required", nil)
	}
	proposed = strings.TrimSpace(proposed)
	logger := c.logger.With(
		logging.String(logging.FieldEntityID, entityID),
		logging.String(logging.FieldActor, actor),
	)

	authorized := false
	for attempt := 0; attempt <= c.retries; attempt++ {
		entity, err := c.Entity(ctx, entityID)
		if err != nil {
			return nil, err
		}
		set, ok := Lookup(entity.Type)
		if !ok {
			return nil, services.Wrap(services.ErrInvalidArgument, "stages", "transition", "unknown entity type "+entity.Type, nil)
		}
		if !set.Contains(proposed) {
			return nil, services.Wrap(services.ErrInvalidArgument, "stages", "transition",
				fmt.Sprintf("stage %q is not valid for %s", proposed, entity.Type), nil)
		}
		if !authorized {
			if err := c.authorizer.CanTransition(ctx, actor, entity); err != nil {
				return nil, err
			}
			authorized = true
		}

		if !set.IsForward(entity.Stage, proposed) {
			open, err := c.store.OpenInterval(ctx, entity.ID)
			if err != nil {
				return nil, services.Wrap(services.ErrTransient, "stages", "transition", "load open interval", err)
			}
			logger.Debug("non-forward transition ignored",
				logging.String(logging.FieldStage, entity.Stage),
				logging.String("proposed_stage", proposed),
			)
			return &TransitionResult{Entity: entity, History: open, Applied: false}, nil
		}

		now := c.clock.Now()
		previous := entity.Stage
		opened, err := c.store.AdvanceStage(ctx, entity.ID, previous, proposed, now)
		if errors.Is(err, store.ErrStageConflict) {
			logger.Debug("stage transition conflict; retrying",
				logging.Int("attempt", attempt+1),
				logging.String(logging.FieldEventType, "stage_transition_conflict"),
			)
			continue
		}
		if err != nil {
			return nil, services.Wrap(services.ErrTransient, "stages", "transition", "advance stage", err)
		}

		entity.Stage = proposed
		entity.UpdatedAt = now
		logger.Info("stage transition applied",
			logging.String("previous_stage", previous),
			logging.String(logging.FieldStage, proposed),
			logging.String(logging.FieldEventType, "stage_transition_applied"),
		)
		c.afterTransition(ctx, entity, previous, actor)
		return &TransitionResult{Entity: entity, History: opened, Applied: true}, nil
	}

	logging.WarnWithContext(logger, "stage transition abandoned after conflicts", "stage_transition_conflict_exhausted",
		logging.Int("attempts", c.retries+1),
		logging.Alert("write_contention"),
		logging.String(logging.FieldErrorHint, "another writer is changing this entity; retry the request"),
		logging.String(logging.FieldImpact, "stage unchanged"),
	)
	return nil, services.Wrap(services.ErrConcurrencyConflict, "stages", "transition",
		fmt.Sprintf("gave up after %d attempts", c.retries+1), store.ErrStageConflict)
}

// History returns the stage intervals of entityID, oldest first.
func (c *Controller) History(ctx context.Context, entityID string) ([]store.StageInterval, error) {
	if _, err := c.Entity(ctx, entityID); err != nil {
		return nil, err
	}
	out, err := c.store.ListIntervals(ctx, entityID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "stages", "history", "list intervals", err)
	}
	return out, nil
}

func (c *Controller) afterTransition(ctx context.Context, entity *store.Entity, previous, actor string) {
	c.record(ctx, timeline.Draft{
		SubjectID:   entity.ID,
		SubjectType: entity.Type,
		EventType:   timeline.EventStatusChanged,
		Title:       fmt.Sprintf("%s → %s", Label(previous), Label(entity.Stage)),
		Metadata: map[string]any{
			"previousStage": previous,
			"newStage":      entity.Stage,
		},
		Author: actor,
	})

	if !c.notifyOwner || c.notifier == nil || entity.OwnerID == "" || entity.OwnerID == actor {
		return
	}
	_, _, err := c.notifier.Notify(ctx, notifications.Draft{
		UserID:     entity.OwnerID,
		Type:       notifications.TypeStageChanged,
		Priority:   notifications.PriorityNormal,
		Title:      fmt.Sprintf("%s: %s", entity.Name, Label(entity.Stage)),
		Message:    fmt.Sprintf("%s moved from %s to %s", entity.Name, Label(previous), Label(entity.Stage)),
		LinkedType: entity.Type,
		LinkedID:   entity.ID,
		LinkedName: entity.Name,
		Metadata: map[string]any{
			"previousStage": previous,
			"newStage":      entity.Stage,
		},
		CreatedBy: actor,
	}, notifications.FanOutOptions{})
	if err != nil {
		logging.WarnWithContext(c.logger, "owner notification failed", "stage_notification_failed",
			logging.String(logging.FieldEntityID, entity.ID),
			logging.String(logging.FieldUserID, entity.OwnerID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "owner not notified of stage change"),
		)
	}
}

func (c *Controller) record(ctx context.Context, d timeline.Draft) {
	if c.timeline == nil {
		return
	}
	if _, err := c.timeline.Append(ctx, d); err != nil {
		logging.WarnWithContext(c.logger, "timeline append failed", "timeline_append_failed",
			logging.String(logging.FieldEntityID, d.SubjectID),
			logging.String("timeline_event_type", d.EventType),
			logging.Error(err),
			logging.String(logging.FieldImpact, "audit trail missing this change"),
		)
	}
}
