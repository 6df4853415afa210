package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetPreference returns the stored preference row for userID, or nil when
// the user never saved one.
func (s *Store) GetPreference(ctx context.Context, userID string) (*Preference, error) {
	var (
		p          Preference
		push       int
		email      int
		sub        sql.NullString
		updatedRaw string
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT user_id, push_enabled, email_enabled, push_subscription, updated_at
        FROM notification_preferences WHERE user_id = ?`, userID,
	).Scan(&p.UserID, &push, &email, &sub, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	p.PushEnabled = push != 0
	p.EmailEnabled = email != 0
	p.PushSubscription = sub.String
	if t, err := parseTimeString(updatedRaw); err == nil {
		p.UpdatedAt = t
	}
	return &p, nil
}

// UpsertPreference creates or updates the preference row of userID. A nil
// subscription keeps the stored one; an empty string clears it.
func (s *Store) UpsertPreference(ctx context.Context, userID string, pushEnabled, emailEnabled bool, subscription *string, at time.Time) error {
	var (
		subValue any
		replace  int
	)
	if subscription != nil {
		subValue = nullableString(*subscription)
		replace = 1
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO notification_preferences (user_id, push_enabled, email_enabled, push_subscription, updated_at)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            push_enabled = excluded.push_enabled,
            email_enabled = excluded.email_enabled,
            push_subscription = CASE WHEN ? = 1 THEN excluded.push_subscription ELSE notification_preferences.push_subscription END,
            updated_at = excluded.updated_at`,
		userID, boolToInt(pushEnabled), boolToInt(emailEnabled), subValue, formatTime(at), replace,
	)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}
