package timeline

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"crmflow/internal/clock"
	"crmflow/internal/logging"
	"crmflow/internal/services"
	"crmflow/internal/store"
)

// Well-known event types.
const (
	EventEntityCreated = "entity_created"
	EventStatusChanged = "status_changed"
	EventNote          = "note"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

// Draft is the caller-supplied part of a timeline event.
type Draft struct {
	SubjectID   string
	SubjectType string
	EventType   string
	Title       string
	Description string
	Metadata    map[string]any
	Author      string
}

// QueryOptions pages through a subject's timeline. Before is the id of the
// last event of the previous page.
type QueryOptions struct {
	Before string
	Limit  int
}

// Recorder appends and reads timeline events. There is no update or delete.
type Recorder struct {
	store  *store.Store
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	entropy io.Reader
}

// NewRecorder constructs a Recorder.
func NewRecorder(st *store.Store, clk clock.Clock, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:   st,
		clock:   clock.OrSystem(clk),
		logger:  logging.NewComponentLogger(logger, "timeline"),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (r *Recorder) nextID() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(r.clock.Now()), r.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Append assigns an id and creation time to d, persists it and returns the
// stored event.
func (r *Recorder) Append(ctx context.Context, d Draft) (*store.TimelineEvent, error) {
	if err := validateDraft(d); err != nil {
		return nil, err
	}
	id, err := r.nextID()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "timeline", "append", "generate id", err)
	}
	ev := &store.TimelineEvent{
		ID:          id,
		SubjectID:   d.SubjectID,
		SubjectType: d.SubjectType,
		EventType:   d.EventType,
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Metadata:    d.Metadata,
		Author:      d.Author,
		CreatedAt:   r.clock.Now(),
	}
	if err := r.store.InsertTimelineEvent(ctx, ev); err != nil {
		return nil, services.Wrap(services.ErrTransient, "timeline", "append", "persist event", err)
	}
	r.logger.Debug("timeline event recorded",
		logging.String(logging.FieldEntityID, ev.SubjectID),
		logging.String(logging.FieldEventType, ev.EventType),
		logging.String("timeline_id", ev.ID),
	)
	return ev, nil
}

// Query returns events for subjectID newest first.
func (r *Recorder) Query(ctx context.Context, subjectID string, opts QueryOptions) ([]*store.TimelineEvent, error) {
	if strings.TrimSpace(subjectID) == "" {
		return nil, services.Wrap(services.ErrInvalidArgument, "timeline", "query", "subject id is required", nil)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	events, err := r.store.ListTimeline(ctx, subjectID, opts.Before, limit)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "timeline", "query", "list events", err)
	}
	return events, nil
}

func validateDraft(d Draft) error {
	missing := make([]string, 0, 5)
	if strings.TrimSpace(d.SubjectID) == "" {
		missing = append(missing, "subjectId")
	}
	if strings.TrimSpace(d.SubjectType) == "" {
		missing = append(missing, "subjectType")
	}
	if strings.TrimSpace(d.EventType) == "" {
		missing = append(missing, "eventType")
	}
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(d.Author) == "" {
		missing = append(missing, "author")
	}
	if len(missing) == 0 {
		return nil
	}
	return services.Wrap(services.ErrInvalidArgument, "timeline", "append",
		"missing required fields: "+strings.Join(missing, ", "), nil)
}
