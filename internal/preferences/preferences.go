package preferences

import (
	"context"
	"log/slog"
	"strings"

	"crmflow/internal/clock"
	"crmflow/internal/logging"
	"crmflow/internal/services"
	"crmflow/internal/store"
)

// Preference is the effective channel opt-in of a user. Stored is false when
// the values come from defaults because the user never saved preferences.
type Preference struct {
	UserID           string
	PushEnabled      bool
	EmailEnabled     bool
	PushSubscription string
	Stored           bool
}

// Update is the input to Set. A nil PushSubscription keeps the stored one.
type Update struct {
	PushEnabled      bool
	EmailEnabled     bool
	PushSubscription *string
}

// Defaults apply to users without a stored row.
type Defaults struct {
	PushEnabled  bool
	EmailEnabled bool
}

// Service reads and writes notification preferences.
type Service struct {
	store    *store.Store
	clock    clock.Clock
	defaults Defaults
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(st *store.Store, clk clock.Clock, defaults Defaults, logger *slog.Logger) *Service {
	return &Service{
		store:    st,
		clock:    clock.OrSystem(clk),
		defaults: defaults,
		logger:   logging.NewComponentLogger(logger, "preferences"),
	}
}

// Get returns the stored preferences of userID, or the defaults.
func (s *Service) Get(ctx context.Context, userID string) (Preference, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Preference{}, services.Wrap(services.ErrInvalidArgument, "preferences", "get", "user id is required", nil)
	}
	row, err := s.store.GetPreference(ctx, userID)
	if err != nil {
		return Preference{}, services.Wrap(services.ErrTransient, "preferences", "get", "load preference", err)
	}
	if row == nil {
		return Preference{
			UserID:       userID,
			PushEnabled:  s.defaults.PushEnabled,
			EmailEnabled: s.defaults.EmailEnabled,
		}, nil
	}
	return Preference{
		UserID:           row.UserID,
		PushEnabled:      row.PushEnabled,
		EmailEnabled:     row.EmailEnabled,
		PushSubscription: row.PushSubscription,
		Stored:           true,
	}, nil
}

// Set saves preferences for userID, creating the row on first write.
func (s *Service) Set(ctx context.Context, userID string, u Update) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return services.Wrap(services.ErrInvalidArgument, "preferences", "set", "user id is required", nil)
	}
	if u.PushSubscription != nil {
		trimmed := strings.TrimSpace(*u.PushSubscription)
		u.PushSubscription = &trimmed
	}
	if err := s.store.UpsertPreference(ctx, userID, u.PushEnabled, u.EmailEnabled, u.PushSubscription, s.clock.Now()); err != nil {
		return services.Wrap(services.ErrTransient, "preferences", "set", "save preference", err)
	}
	s.logger.Info("preferences updated",
		logging.String(logging.FieldUserID, userID),
		logging.Bool("push_enabled", u.PushEnabled),
		logging.Bool("email_enabled", u.EmailEnabled),
	)
	return nil
}
