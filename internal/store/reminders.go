package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const reminderColumns = "id, event_id, user_id, reminder_time, reminder_type, notification_sent, created_at, updated_at"

func scanReminder(scanner interface{ Scan(dest ...any) error }, extra ...any) (*Reminder, error) {
	var (
		r          Reminder
		timeRaw    string
		sent       int
		createdRaw string
		updatedRaw string
	)
	dest := append([]any{&r.ID, &r.EventID, &r.UserID, &timeRaw, &r.ReminderType, &sent, &createdRaw, &updatedRaw}, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	r.NotificationSent = sent != 0
	if t, err := parseTimeString(timeRaw); err == nil {
		r.ReminderTime = t
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		r.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		r.UpdatedAt = t
	}
	return &r, nil
}

// UpsertReminder inserts r or, when a reminder already exists for the same
// event and user, overwrites its time and type and resets it to unsent. The
// stored row is returned.
func (s *Store) UpsertReminder(ctx context.Context, r *Reminder) (*Reminder, error) {
	stamp := formatTime(r.UpdatedAt)
	_, err := s.execWithRetry(ctx,
		`INSERT INTO event_reminders (`+reminderColumns+`) VALUES (?, ?, ?, ?, ?, 0, ?, ?)
        ON CONFLICT(event_id, user_id) DO UPDATE SET
            reminder_time = excluded.reminder_time,
            reminder_type = excluded.reminder_type,
            notification_sent = 0,
            updated_at = excluded.updated_at`,
		r.ID, r.EventID, r.UserID, formatTime(r.ReminderTime), r.ReminderType, stamp, stamp,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert reminder: %w", err)
	}
	return s.GetReminder(ctx, r.EventID, r.UserID)
}

// GetReminder returns the reminder for eventID and userID, or nil.
func (s *Store) GetReminder(ctx context.Context, eventID, userID string) (*Reminder, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+reminderColumns+` FROM event_reminders WHERE event_id = ? AND user_id = ?`,
		eventID, userID,
	)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

// DeleteReminder removes the reminder for eventID and userID.
func (s *Store) DeleteReminder(ctx context.Context, eventID, userID string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM event_reminders WHERE event_id = ? AND user_id = ?`, eventID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete reminder: %w", err)
	}
	return res.RowsAffected()
}

// CountReminders returns the number of reminder rows for eventID and userID.
func (s *Store) CountReminders(ctx context.Context, eventID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM event_reminders WHERE event_id = ? AND user_id = ?`, eventID, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reminders: %w", err)
	}
	return n, nil
}

// DueReminders returns unsent reminders whose time lies in [from, to],
// oldest first. Rows are fully read before returning so callers may issue
// further statements.
func (s *Store) DueReminders(ctx context.Context, from, to time.Time, limit int) ([]*DueReminder, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT r.id, r.event_id, r.user_id, r.reminder_time, r.reminder_type, r.notification_sent,
                r.created_at, r.updated_at, e.title, e.starts_at
        FROM event_reminders r
        JOIN calendar_events e ON e.id = r.event_id
        WHERE r.notification_sent = 0 AND r.reminder_time >= ? AND r.reminder_time <= ?
        ORDER BY r.reminder_time, r.id
        LIMIT ?`,
		formatTime(from), formatTime(to), clampLimit(limit, 100, 1000),
	)
	if err != nil {
		return nil, fmt.Errorf("select due reminders: %w", err)
	}
	defer rows.Close()

	var out []*DueReminder
	for rows.Next() {
		var (
			title     string
			startsRaw string
		)
		r, err := scanReminder(rows, &title, &startsRaw)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		due := &DueReminder{Reminder: *r, EventTitle: title}
		if t, err := parseTimeString(startsRaw); err == nil {
			due.EventStartsAt = t
		}
		out = append(out, due)
	}
	return out, rows.Err()
}

// ClaimReminder marks reminder id as sent if it is still unsent. It reports
// whether this call performed the flip; concurrent callers see false.
func (s *Store) ClaimReminder(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE event_reminders SET notification_sent = 1 WHERE id = ? AND notification_sent = 0`, id,
	)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	return n == 1, nil
}
