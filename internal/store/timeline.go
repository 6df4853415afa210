package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const timelineColumns = "id, subject_id, subject_type, event_type, title, description, metadata, author, created_at"

func scanTimelineEvent(scanner interface{ Scan(dest ...any) error }) (*TimelineEvent, error) {
	var (
		ev          TimelineEvent
		description sql.NullString
		metadata    sql.NullString
		createdRaw  string
	)
	if err := scanner.Scan(&ev.ID, &ev.SubjectID, &ev.SubjectType, &ev.EventType, &ev.Title,
		&description, &metadata, &ev.Author, &createdRaw); err != nil {
		return nil, err
	}
	ev.Description = description.String
	ev.Metadata = decodeMetadata(metadata.String)
	if t, err := parseTimeString(createdRaw); err == nil {
		ev.CreatedAt = t
	}
	return &ev, nil
}

// InsertTimelineEvent appends ev. Rows in the timeline table cannot be
// updated or deleted.
func (s *Store) InsertTimelineEvent(ctx context.Context, ev *TimelineEvent) error {
	meta, err := encodeMetadata(ev.Metadata)
	if err != nil {
		return err
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO timeline (`+timelineColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SubjectID, ev.SubjectType, ev.EventType, ev.Title,
		nullableString(ev.Description), meta, ev.Author, formatTime(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert timeline event: %w", err)
	}
	return nil
}

// GetTimelineEvent returns the event with id, or nil.
func (s *Store) GetTimelineEvent(ctx context.Context, id string) (*TimelineEvent, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+timelineColumns+` FROM timeline WHERE id = ?`, id)
	ev, err := scanTimelineEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get timeline event: %w", err)
	}
	return ev, nil
}

// ListTimeline returns events for subjectID newest first. When before is set
// only events with a smaller id are returned.
func (s *Store) ListTimeline(ctx context.Context, subjectID, before string, limit int) ([]*TimelineEvent, error) {
	query := `SELECT ` + timelineColumns + ` FROM timeline WHERE subject_id = ?`
	args := []any{subjectID}
	if before != "" {
		query += ` AND id < ?`
		args = append(args, before)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, clampLimit(limit, 50, 500))

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	defer rows.Close()

	var out []*TimelineEvent
	for rows.Next() {
		ev, err := scanTimelineEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
