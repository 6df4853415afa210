package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const calendarColumns = "id, title, starts_at, owner_id, created_at"

func scanCalendarEvent(scanner interface{ Scan(dest ...any) error }) (*CalendarEvent, error) {
	var (
		ev         CalendarEvent
		startsRaw  string
		owner      sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&ev.ID, &ev.Title, &startsRaw, &owner, &createdRaw); err != nil {
		return nil, err
	}
	ev.OwnerID = owner.String
	if t, err := parseTimeString(startsRaw); err == nil {
		ev.StartsAt = t
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		ev.CreatedAt = t
	}
	return &ev, nil
}

// InsertCalendarEvent stores a calendar event.
func (s *Store) InsertCalendarEvent(ctx context.Context, ev *CalendarEvent) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO calendar_events (`+calendarColumns+`) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.Title, formatTime(ev.StartsAt), nullableString(ev.OwnerID), formatTime(ev.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert calendar event %s: %w", ev.ID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}
	return nil
}

// GetCalendarEvent returns the calendar event with id, or nil.
func (s *Store) GetCalendarEvent(ctx context.Context, id string) (*CalendarEvent, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+calendarColumns+` FROM calendar_events WHERE id = ?`, id)
	ev, err := scanCalendarEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get calendar event: %w", err)
	}
	return ev, nil
}
