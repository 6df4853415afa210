package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const notificationColumns = "id, user_id, type, priority, title, message, linked_type, linked_id, linked_name, metadata, is_read, read_at, created_by, created_at"

func scanNotification(scanner interface{ Scan(dest ...any) error }) (*Notification, error) {
	var (
		n          Notification
		linkedType sql.NullString
		linkedID   sql.NullString
		linkedName sql.NullString
		metadata   sql.NullString
		isRead     int
		readRaw    sql.NullString
		createdBy  sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&n.ID, &n.UserID, &n.Type, &n.Priority, &n.Title, &n.Message,
		&linkedType, &linkedID, &linkedName, &metadata, &isRead, &readRaw, &createdBy, &createdRaw); err != nil {
		return nil, err
	}
	n.LinkedType = linkedType.String
	n.LinkedID = linkedID.String
	n.LinkedName = linkedName.String
	n.Metadata = decodeMetadata(metadata.String)
	n.IsRead = isRead != 0
	n.ReadAt = parseOptionalTime(readRaw.String, readRaw.Valid)
	n.CreatedBy = createdBy.String
	if t, err := parseTimeString(createdRaw); err == nil {
		n.CreatedAt = t
	}
	return &n, nil
}

func (s *Store) queryNotifications(ctx context.Context, query string, args ...any) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// InsertNotification stores n as unread.
func (s *Store) InsertNotification(ctx context.Context, n *Notification) error {
	meta, err := encodeMetadata(n.Metadata)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO notifications (`+notificationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)`,
		n.ID, n.UserID, n.Type, n.Priority, n.Title, n.Message,
		nullableString(n.LinkedType), nullableString(n.LinkedID), nullableString(n.LinkedName),
		meta, nullableString(n.CreatedBy), formatTime(n.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// GetNotification returns the notification with id, or nil.
func (s *Store) GetNotification(ctx context.Context, id string) (*Notification, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// FindRecentUnread returns the newest unread notification for userID with the
// same type, linked id and title created at or after since, or nil.
func (s *Store) FindRecentUnread(ctx context.Context, userID, typ, linkedID, title string, since time.Time) (*Notification, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+notificationColumns+` FROM notifications
        WHERE user_id = ? AND type = ? AND COALESCE(linked_id, '') = ? AND title = ?
          AND is_read = 0 AND created_at >= ?
        ORDER BY created_at DESC LIMIT 1`,
		userID, typ, linkedID, title, formatTime(since),
	)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recent notification: %w", err)
	}
	return n, nil
}

// MarkNotificationRead flips one notification to read. It returns the number
// of rows changed; an already-read notification yields 0.
func (s *Store) MarkNotificationRead(ctx context.Context, id string, at time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE notifications SET is_read = 1, read_at = ? WHERE id = ? AND is_read = 0`,
		formatTime(at), id,
	)
	if err != nil {
		return 0, fmt.Errorf("mark notification read: %w", err)
	}
	return res.RowsAffected()
}

// MarkAllNotificationsRead flips every unread notification of userID.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE notifications SET is_read = 1, read_at = ? WHERE user_id = ? AND is_read = 0`,
		formatTime(at), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.RowsAffected()
}

// ListNotifications returns notifications for userID newest first.
func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	out, err := s.queryNotifications(ctx, query, userID, clampLimit(limit, 50, 500))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// CountUnread returns the number of unread notifications for userID.
func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM notifications WHERE user_id = ? AND is_read = 0`, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// CountNotifications returns how many notifications exist for userID and type.
// An empty type counts every notification of the user.
func (s *Store) CountNotifications(ctx context.Context, userID, typ string) (int, error) {
	query := `SELECT COUNT(1) FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if typ != "" {
		query += ` AND type = ?`
		args = append(args, typ)
	}
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx), query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}
